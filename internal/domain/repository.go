package domain

import (
	"context"
	"time"
)

// ResultRepository defines the durable keyed store of verification results.
// All writes are idempotent upserts keyed by the composite ResultKey.
type ResultRepository interface {
	Upsert(ctx context.Context, result *VerificationResult) error
	Get(ctx context.Context, key ResultKey) (*VerificationResult, error)
	ExistsCompleted(ctx context.Context, key ResultKey) (bool, error)
	ExistsAny(ctx context.Context, key ResultKey) (bool, error)
	GetAll(ctx context.Context) ([]VerificationResult, error)
	GetByProperty(ctx context.Context, property string) ([]VerificationResult, error)
	GetAllByPropertyAndSite(ctx context.Context, property, site string) ([]VerificationResult, error)
	GetFailed(ctx context.Context) ([]VerificationResult, error)
	DeleteByID(ctx context.Context, id string) error
	Stats(ctx context.Context) (*StoreStats, error)
	UpdateSyncStatus(ctx context.Context, id, syncStatus, syncError string) error
	FindDuplicateGroups(ctx context.Context) ([]DuplicateGroup, error)
	RemoveDuplicates(ctx context.Context) (int, error)
}

// CatalogClient defines the read-only catalog service boundary: which
// attributes to verify, where they apply, prior exemplar values, and the
// schema documents governing each site/productType pair.
type CatalogClient interface {
	// ListAttributes returns the ordered list of attribute names to verify.
	ListAttributes(ctx context.Context) ([]string, error)
	// GetApplicability maps site code to productType code for one attribute.
	GetApplicability(ctx context.Context, property string) (map[string]string, error)
	// GetExemplars returns prior exemplar values for one attribute, tagged by site.
	GetExemplars(ctx context.Context, property string) ([]Exemplar, error)
	// GetSchemaURL returns the schema document location for a pair.
	GetSchemaURL(ctx context.Context, site, productType string) (string, error)
	// FetchSchema downloads and decodes a schema document.
	FetchSchema(ctx context.Context, url string) (*SchemaDocument, error)
}

// Exemplar is a prior known-good value for an attribute on one site.
type Exemplar struct {
	Site  string `json:"site"`
	Value string `json:"value"`
}

// GenerationRequest carries everything the AI backend needs to produce
// candidate values for one attribute on one site/productType pair.
type GenerationRequest struct {
	Property    string
	Schema      *SchemaNode
	Exemplar    string
	Marketplace string
	LanguageTag string
}

// GenerationClient defines the AI text-generation boundary. The response is
// raw text expected, but not guaranteed, to parse as a JSON array.
type GenerationClient interface {
	Generate(ctx context.Context, req *GenerationRequest) (string, error)
}

// SyncClient submits one grouped result to the remote system of record.
type SyncClient interface {
	SubmitGroup(ctx context.Context, group *SyncGroup) error
}

// SchemaCache caches fetched schema documents for the duration of a run.
type SchemaCache interface {
	Get(ctx context.Context, key string) (interface{}, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}
