package domain

import (
	"fmt"
	"time"
)

// Verification status values for a stored result.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Sync status values. Empty string means the result has never been
// considered for sync.
const (
	SyncPending = "pending"
	SyncSyncing = "syncing"
	SyncSynced  = "synced"
	SyncFailed  = "sync_failed"
)

// ResultKey is the composite identity of a verification result.
type ResultKey struct {
	Site        string
	ProductType string
	Property    string
}

// String renders the key in its canonical "site-productType-property" form,
// which is also the primary key in the result store.
func (k ResultKey) String() string {
	return fmt.Sprintf("%s-%s-%s", k.Site, k.ProductType, k.Property)
}

// VerificationResult is the durable outcome of verifying one attribute for
// one site/productType pair. Exactly one live record exists per ResultKey;
// re-processing the same key overwrites.
type VerificationResult struct {
	ID            string    `json:"id"`
	Site          string    `json:"site"`
	ProductType   string    `json:"productType"`
	Property      string    `json:"property"`
	GeneratedData string    `json:"generatedData"` // canonical compact JSON, or ""
	Status        string    `json:"status"`        // completed | failed
	ErrorMessage  string    `json:"errorMessage,omitempty"`
	Marketplace   string    `json:"marketplace,omitempty"`
	LanguageTag   string    `json:"languageTag,omitempty"`
	SyncStatus    string    `json:"syncStatus,omitempty"` // pending | syncing | synced | sync_failed
	SyncError     string    `json:"syncError,omitempty"`
	SyncedAt      time.Time `json:"syncedAt,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Key returns the composite identity of the result.
func (r *VerificationResult) Key() ResultKey {
	return ResultKey{Site: r.Site, ProductType: r.ProductType, Property: r.Property}
}

// StoreStats summarizes the result store.
type StoreStats struct {
	Total       int       `json:"total"`
	Completed   int       `json:"completed"`
	Failed      int       `json:"failed"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// DuplicateGroup collects records that collide on (site, property) across
// different productType values — the same logical attribute materialized
// more than once. Resolution keeps the most recently updated record.
type DuplicateGroup struct {
	Site     string
	Property string
	Results  []VerificationResult
}
