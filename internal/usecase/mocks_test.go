package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
)

// MockResultRepository is an in-memory implementation of
// domain.ResultRepository for tests.
type MockResultRepository struct {
	mu          sync.Mutex
	data        map[string]domain.VerificationResult
	upsertError error
}

func NewMockResultRepository() *MockResultRepository {
	return &MockResultRepository{data: make(map[string]domain.VerificationResult)}
}

func (m *MockResultRepository) Upsert(ctx context.Context, result *domain.VerificationResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertError != nil {
		return m.upsertError
	}
	if result.ID == "" {
		result.ID = result.Key().String()
	}
	now := time.Now()
	if existing, ok := m.data[result.ID]; ok {
		result.CreatedAt = existing.CreatedAt
	} else if result.CreatedAt.IsZero() {
		result.CreatedAt = now
	}
	result.UpdatedAt = now
	m.data[result.ID] = *result
	return nil
}

func (m *MockResultRepository) Get(ctx context.Context, key domain.ResultKey) (*domain.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.data[key.String()]; ok {
		copied := r
		return &copied, nil
	}
	return nil, domain.ErrResultNotFound
}

func (m *MockResultRepository) ExistsCompleted(ctx context.Context, key domain.ResultKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[key.String()]
	return ok && r.Status == domain.StatusCompleted, nil
}

func (m *MockResultRepository) ExistsAny(ctx context.Context, key domain.ResultKey) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key.String()]
	return ok, nil
}

func (m *MockResultRepository) GetAll(ctx context.Context) ([]domain.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.VerificationResult
	for _, r := range m.data {
		results = append(results, r)
	}
	return results, nil
}

func (m *MockResultRepository) GetByProperty(ctx context.Context, property string) ([]domain.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.VerificationResult
	for _, r := range m.data {
		if r.Property == property {
			results = append(results, r)
		}
	}
	return results, nil
}

func (m *MockResultRepository) GetAllByPropertyAndSite(ctx context.Context, property, site string) ([]domain.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.VerificationResult
	for _, r := range m.data {
		if r.Property == property && r.Site == site {
			results = append(results, r)
		}
	}
	return results, nil
}

func (m *MockResultRepository) GetFailed(ctx context.Context) ([]domain.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []domain.VerificationResult
	for _, r := range m.data {
		if r.Status == domain.StatusFailed {
			results = append(results, r)
		}
	}
	return results, nil
}

func (m *MockResultRepository) DeleteByID(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return domain.ErrResultNotFound
	}
	delete(m.data, id)
	return nil
}

func (m *MockResultRepository) Stats(ctx context.Context) (*domain.StoreStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.StoreStats{Total: len(m.data)}
	for _, r := range m.data {
		switch r.Status {
		case domain.StatusCompleted:
			stats.Completed++
		case domain.StatusFailed:
			stats.Failed++
		}
		if r.UpdatedAt.After(stats.LastUpdated) {
			stats.LastUpdated = r.UpdatedAt
		}
	}
	return stats, nil
}

func (m *MockResultRepository) UpdateSyncStatus(ctx context.Context, id, syncStatus, syncError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.data[id]
	if !ok {
		return domain.ErrResultNotFound
	}
	r.SyncStatus = syncStatus
	r.SyncError = syncError
	if syncStatus == domain.SyncSynced {
		r.SyncedAt = time.Now()
	}
	m.data[id] = r
	return nil
}

func (m *MockResultRepository) FindDuplicateGroups(ctx context.Context) ([]domain.DuplicateGroup, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byPair := make(map[string][]domain.VerificationResult)
	for _, r := range m.data {
		k := r.Site + "\x00" + r.Property
		byPair[k] = append(byPair[k], r)
	}
	var groups []domain.DuplicateGroup
	for _, results := range byPair {
		if len(results) < 2 {
			continue
		}
		// Newest first.
		for i := 0; i < len(results); i++ {
			for j := i + 1; j < len(results); j++ {
				if results[j].UpdatedAt.After(results[i].UpdatedAt) {
					results[i], results[j] = results[j], results[i]
				}
			}
		}
		groups = append(groups, domain.DuplicateGroup{
			Site:     results[0].Site,
			Property: results[0].Property,
			Results:  results,
		})
	}
	return groups, nil
}

func (m *MockResultRepository) RemoveDuplicates(ctx context.Context) (int, error) {
	groups, _ := m.FindDuplicateGroups(ctx)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for _, g := range groups {
		for _, loser := range g.Results[1:] {
			delete(m.data, loser.ID)
			removed++
		}
	}
	return removed, nil
}

func (m *MockResultRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// MockCatalogClient is a canned-response catalog client.
type MockCatalogClient struct {
	attributes    []string
	applicability map[string]map[string]string
	exemplars     map[string][]domain.Exemplar
	schemaDocs    map[string]*domain.SchemaDocument
	listError     error
}

func NewMockCatalogClient() *MockCatalogClient {
	return &MockCatalogClient{
		applicability: make(map[string]map[string]string),
		exemplars:     make(map[string][]domain.Exemplar),
		schemaDocs:    make(map[string]*domain.SchemaDocument),
	}
}

func (m *MockCatalogClient) ListAttributes(ctx context.Context) ([]string, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	return m.attributes, nil
}

func (m *MockCatalogClient) GetApplicability(ctx context.Context, property string) (map[string]string, error) {
	return m.applicability[property], nil
}

func (m *MockCatalogClient) GetExemplars(ctx context.Context, property string) ([]domain.Exemplar, error) {
	return m.exemplars[property], nil
}

func (m *MockCatalogClient) GetSchemaURL(ctx context.Context, site, productType string) (string, error) {
	return "mock://" + site + "/" + productType, nil
}

func (m *MockCatalogClient) FetchSchema(ctx context.Context, url string) (*domain.SchemaDocument, error) {
	if doc, ok := m.schemaDocs[url]; ok {
		return doc, nil
	}
	return nil, domain.ErrCatalogAPIFailure
}

// MockGenerationClient returns canned text per property.
type MockGenerationClient struct {
	mu         sync.Mutex
	responses  map[string]string
	err        error
	calls      int
	onGenerate func()
}

func NewMockGenerationClient() *MockGenerationClient {
	return &MockGenerationClient{responses: make(map[string]string)}
}

func (m *MockGenerationClient) Generate(ctx context.Context, req *domain.GenerationRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.onGenerate != nil {
		m.onGenerate()
	}
	if m.err != nil {
		return "", m.err
	}
	return m.responses[req.Property], nil
}

func (m *MockGenerationClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// MockSyncClient records submitted groups.
type MockSyncClient struct {
	mu        sync.Mutex
	submitted []domain.SyncGroup
	err       error
}

func (m *MockSyncClient) SubmitGroup(ctx context.Context, group *domain.SyncGroup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.submitted = append(m.submitted, *group)
	return nil
}

// MockSchemaCache is a plain map-backed cache without expiry.
type MockSchemaCache struct {
	mu   sync.Mutex
	data map[string]interface{}
}

func NewMockSchemaCache() *MockSchemaCache {
	return &MockSchemaCache{data: make(map[string]interface{})}
}

func (m *MockSchemaCache) Get(ctx context.Context, key string) (interface{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockSchemaCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockSchemaCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MockSchemaCache) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok, nil
}
