package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
	"github.com/hxinn/amazon-listing-ai-assistant/pkg/metrics"
)

// Run status values.
const (
	RunIdle      = "idle"
	RunRunning   = "running"
	RunPaused    = "paused"
	RunCompleted = "completed"
)

// RunState is the externally visible snapshot of a verification run. All
// progress lives here rather than in scattered component state.
type RunState struct {
	RunID            string    `json:"runId,omitempty"`
	Status           string    `json:"status"`
	CurrentAttribute string    `json:"currentAttribute,omitempty"`
	AttributeIndex   int       `json:"attributeIndex"`
	TotalAttributes  int       `json:"totalAttributes"`
	Processed        int       `json:"processed"`
	Completed        int       `json:"completed"`
	Failed           int       `json:"failed"`
	Skipped          int       `json:"skipped"`
	StartedAt        time.Time `json:"startedAt,omitempty"`
	FinishedAt       time.Time `json:"finishedAt,omitempty"`
	LastError        string    `json:"lastError,omitempty"`
}

// OrchestratorConfig holds orchestrator tuning.
type OrchestratorConfig struct {
	// BatchSize is the number of subtasks dispatched concurrently within
	// one attribute. Each batch is fully awaited before the next begins.
	BatchSize int
	// PriorityMarkets orders the sites whose exemplar values are preferred.
	PriorityMarkets []string
	// RestrictedField is stripped from generated structures at every depth.
	RestrictedField string
	// SchemaCacheTTL bounds how long fetched schema documents are reused.
	SchemaCacheTTL time.Duration
	// MaxConcurrentGenerations bounds in-flight AI calls, independently of
	// BatchSize. Defaults to 1 (fully serialized).
	MaxConcurrentGenerations int
}

// Orchestrator drives the per-attribute, per-site/productType fan-out:
// discovery, generation, repair, validation and persistence.
type Orchestrator struct {
	repo      domain.ResultRepository
	catalog   domain.CatalogClient
	generator domain.GenerationClient
	cache     domain.SchemaCache
	gate      *Gate
	validator *SchemaValidator
	repair    *RepairEngine
	log       *zap.Logger

	batchSize       int
	priorityMarkets []string
	schemaCacheTTL  time.Duration

	mu        sync.Mutex
	state     RunState
	cancelled atomic.Bool
}

// NewOrchestrator creates an orchestrator with dependencies.
func NewOrchestrator(
	repo domain.ResultRepository,
	catalog domain.CatalogClient,
	generator domain.GenerationClient,
	cache domain.SchemaCache,
	config OrchestratorConfig,
	log *zap.Logger,
) *Orchestrator {
	batchSize := config.BatchSize
	if batchSize < 1 {
		batchSize = 3
	}
	ttl := config.SchemaCacheTTL
	if ttl == 0 {
		ttl = time.Hour
	}
	return &Orchestrator{
		repo:            repo,
		catalog:         catalog,
		generator:       generator,
		cache:           cache,
		gate:            NewGate(config.MaxConcurrentGenerations),
		validator:       NewSchemaValidator(),
		repair:          NewRepairEngine(config.RestrictedField),
		log:             log.Named("orchestrator"),
		batchSize:       batchSize,
		priorityMarkets: config.PriorityMarkets,
		schemaCacheTTL:  ttl,
		state:           RunState{Status: RunIdle},
	}
}

// State returns a snapshot of the current run.
func (o *Orchestrator) State() RunState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Cancel requests a cooperative pause. In-flight subtasks run to completion
// and are persisted; the run stops at the next batch boundary.
func (o *Orchestrator) Cancel() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Status != RunRunning {
		return domain.ErrNoRunActive
	}
	o.cancelled.Store(true)
	return nil
}

func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Status == RunRunning {
		return domain.ErrRunActive
	}
	o.cancelled.Store(false)
	o.state = RunState{
		RunID:     uuid.NewString(),
		Status:    RunRunning,
		StartedAt: time.Now(),
	}
	return nil
}

func (o *Orchestrator) finish(status, lastError string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.state.Status = status
	o.state.FinishedAt = time.Now()
	o.state.LastError = lastError
}

func (o *Orchestrator) update(fn func(*RunState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
}

// subtask is one pending (attribute, site, productType) verification.
type subtask struct {
	property    string
	site        string
	productType string
	exemplars   []domain.Exemplar
}

// Run executes a full verification pass over every tracked attribute.
// Attributes are processed strictly sequentially; within one attribute,
// subtasks run in fixed-size batches, each fully awaited before the next.
// Only cancellation stops the run; individual subtask failures do not.
func (o *Orchestrator) Run(ctx context.Context) (RunState, error) {
	if err := o.begin(); err != nil {
		return o.State(), err
	}

	properties, err := o.catalog.ListAttributes(ctx)
	if err != nil {
		o.finish(RunIdle, err.Error())
		return o.State(), fmt.Errorf("attribute discovery failed: %w", err)
	}
	o.update(func(s *RunState) { s.TotalAttributes = len(properties) })

	o.log.Info("verification run started",
		zap.String("runId", o.State().RunID),
		zap.Int("attributes", len(properties)))

	for i, property := range properties {
		if o.cancelled.Load() {
			o.finish(RunPaused, "")
			o.log.Info("run paused between attributes", zap.String("attribute", property))
			return o.State(), nil
		}
		o.update(func(s *RunState) {
			s.AttributeIndex = i
			s.CurrentAttribute = property
		})

		paused, err := o.processAttribute(ctx, property)
		if err != nil {
			// Discovery failures are attribute-scoped; the run moves on.
			o.log.Warn("attribute processing error",
				zap.String("attribute", property), zap.Error(err))
			o.update(func(s *RunState) { s.LastError = err.Error() })
			continue
		}
		if paused {
			o.finish(RunPaused, "")
			o.log.Info("run paused mid-attribute", zap.String("attribute", property))
			return o.State(), nil
		}
	}

	o.finish(RunCompleted, "")
	state := o.State()
	o.log.Info("verification run completed",
		zap.Int("processed", state.Processed),
		zap.Int("completed", state.Completed),
		zap.Int("failed", state.Failed),
		zap.Int("skipped", state.Skipped))
	return state, nil
}

// processAttribute fans out one attribute over its applicable pairs.
// Returns true if the run was paused mid-attribute.
func (o *Orchestrator) processAttribute(ctx context.Context, property string) (bool, error) {
	exemplars, err := o.catalog.GetExemplars(ctx, property)
	if err != nil {
		return false, fmt.Errorf("exemplar lookup failed: %w", err)
	}

	applicability, err := o.catalog.GetApplicability(ctx, property)
	if err != nil {
		return false, fmt.Errorf("applicability lookup failed: %w", err)
	}

	var pending []subtask
	for _, site := range sortedKeys(applicability) {
		key := domain.ResultKey{Site: site, ProductType: applicability[site], Property: property}
		done, err := o.repo.ExistsCompleted(ctx, key)
		if err != nil {
			o.log.Warn("reuse check failed", zap.String("key", key.String()), zap.Error(err))
		}
		if done {
			o.update(func(s *RunState) { s.Skipped++ })
			o.observe("skipped")
			continue
		}
		pending = append(pending, subtask{
			property:    property,
			site:        site,
			productType: applicability[site],
			exemplars:   exemplars,
		})
	}

	for start := 0; start < len(pending); start += o.batchSize {
		if o.cancelled.Load() {
			return true, nil
		}
		end := start + o.batchSize
		if end > len(pending) {
			end = len(pending)
		}

		g, gCtx := errgroup.WithContext(ctx)
		for _, task := range pending[start:end] {
			t := task
			g.Go(func() error {
				result := o.processSubtask(gCtx, t)
				o.record(gCtx, result)
				return nil
			})
		}
		_ = g.Wait()
	}
	return false, nil
}

// record persists a subtask result and folds it into the run counters.
// Storage failures are logged; the in-memory result still counts.
func (o *Orchestrator) record(ctx context.Context, result *domain.VerificationResult) {
	if err := o.repo.Upsert(ctx, result); err != nil {
		o.log.Error("failed to persist result",
			zap.String("key", result.Key().String()), zap.Error(err))
	}
	o.update(func(s *RunState) {
		s.Processed++
		if result.Status == domain.StatusCompleted {
			s.Completed++
		} else {
			s.Failed++
		}
	})
	o.observe(result.Status)
}

func (o *Orchestrator) observe(outcome string) {
	if metrics.SubtasksTotal != nil {
		metrics.SubtasksTotal.WithLabelValues(outcome).Inc()
	}
}

// processSubtask runs the full pipeline for one pair: schema resolution,
// generation, repair, validation. It always returns a result; every failure
// mode becomes a failed record with a descriptive message.
func (o *Orchestrator) processSubtask(ctx context.Context, t subtask) *domain.VerificationResult {
	result := &domain.VerificationResult{
		Site:        t.site,
		ProductType: t.productType,
		Property:    t.property,
		SyncStatus:  domain.SyncPending,
	}
	result.ID = result.Key().String()

	doc, err := o.getSchemaDoc(ctx, t.site, t.productType)
	if err != nil {
		return o.fail(result, fmt.Sprintf("schema fetch failed: %v", err))
	}
	result.Marketplace = doc.Marketplace
	result.LanguageTag = doc.LanguageTag

	fragment, ok := doc.Properties[t.property]
	if !ok {
		return o.fail(result, fmt.Sprintf("%v: %s for %s/%s",
			domain.ErrPropertyNotInSchema, t.property, t.site, t.productType))
	}

	resolver := NewSchemaResolver(doc)
	resolved, err := resolver.ResolveRefs(fragment)
	if err != nil {
		return o.fail(result, fmt.Sprintf("schema resolution failed: %v", err))
	}

	exemplar := o.selectExemplar(t.exemplars)

	var raw string
	genErr := o.gate.Execute(ctx, func() error {
		var err error
		raw, err = o.generator.Generate(ctx, &domain.GenerationRequest{
			Property:    t.property,
			Schema:      resolved,
			Exemplar:    exemplar,
			Marketplace: doc.Marketplace,
			LanguageTag: doc.LanguageTag,
		})
		return err
	})
	if genErr != nil {
		return o.fail(result, fmt.Sprintf("generation failed: %v", genErr))
	}

	repaired := o.repair.Repair(raw)
	result.GeneratedData = repaired.Compressed
	if !repaired.IsValidArray {
		return o.fail(result, fmt.Sprintf("repair failed: %s", repaired.ValidationError))
	}

	var parsed interface{}
	if err := json.Unmarshal([]byte(repaired.Compressed), &parsed); err != nil {
		return o.fail(result, fmt.Sprintf("repaired output is not valid JSON: %v", err))
	}

	if errs := o.validator.Validate(parsed, resolved); len(errs) > 0 {
		return o.fail(result, "validation failed: "+aggregateErrors(errs))
	}

	result.Status = domain.StatusCompleted
	return result
}

func (o *Orchestrator) fail(result *domain.VerificationResult, message string) *domain.VerificationResult {
	result.Status = domain.StatusFailed
	result.ErrorMessage = message
	return result
}

// aggregateErrors concatenates every violated constraint path and keyword
// into one message.
func aggregateErrors(errs []domain.ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// selectExemplar prefers priority markets in configured order, else the
// first available exemplar.
func (o *Orchestrator) selectExemplar(exemplars []domain.Exemplar) string {
	if len(exemplars) == 0 {
		return ""
	}
	for _, market := range o.priorityMarkets {
		for _, e := range exemplars {
			if e.Site == market {
				return e.Value
			}
		}
	}
	return exemplars[0].Value
}

// getSchemaDoc fetches the schema document for a pair, with a per-run
// cache keyed by site+productType so repeated pairs hit the network once.
func (o *Orchestrator) getSchemaDoc(ctx context.Context, site, productType string) (*domain.SchemaDocument, error) {
	cacheKey := fmt.Sprintf("schema:%s:%s", site, productType)
	if cached, err := o.cache.Get(ctx, cacheKey); err == nil {
		if doc, ok := cached.(*domain.SchemaDocument); ok {
			return doc, nil
		}
	}

	url, err := o.catalog.GetSchemaURL(ctx, site, productType)
	if err != nil {
		return nil, err
	}
	doc, err := o.catalog.FetchSchema(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := o.cache.Set(ctx, cacheKey, doc, o.schemaCacheTTL); err != nil {
		o.log.Warn("failed to cache schema document", zap.String("key", cacheKey), zap.Error(err))
	}
	return doc, nil
}

// RetryFailed re-runs the pipeline for currently failed records only,
// without re-discovering applicability. Exemplars are fetched once per
// property.
func (o *Orchestrator) RetryFailed(ctx context.Context) (RunState, error) {
	if err := o.begin(); err != nil {
		return o.State(), err
	}

	failed, err := o.repo.GetFailed(ctx)
	if err != nil {
		o.finish(RunIdle, err.Error())
		return o.State(), err
	}
	o.update(func(s *RunState) { s.TotalAttributes = len(failed) })
	o.log.Info("retrying failed results", zap.Int("count", len(failed)))

	exemplarsByProperty := make(map[string][]domain.Exemplar)
	for i, record := range failed {
		if o.cancelled.Load() {
			o.finish(RunPaused, "")
			return o.State(), nil
		}
		o.update(func(s *RunState) {
			s.AttributeIndex = i
			s.CurrentAttribute = record.Property
		})

		exemplars, ok := exemplarsByProperty[record.Property]
		if !ok {
			exemplars, err = o.catalog.GetExemplars(ctx, record.Property)
			if err != nil {
				o.log.Warn("exemplar lookup failed during retry",
					zap.String("property", record.Property), zap.Error(err))
			}
			exemplarsByProperty[record.Property] = exemplars
		}

		result := o.processSubtask(ctx, subtask{
			property:    record.Property,
			site:        record.Site,
			productType: record.ProductType,
			exemplars:   exemplars,
		})
		o.record(ctx, result)
	}

	o.finish(RunCompleted, "")
	return o.State(), nil
}

// Cleanup removes duplicate records, then re-normalizes every stored
// record through the repair engine. A record stored as failed purely for
// formatting reasons is promoted to completed once its data repairs to a
// valid array that passes schema validation. Cleanup claims the run slot
// like Run and RetryFailed do, so it never overlaps an active run.
func (o *Orchestrator) Cleanup(ctx context.Context) (removed, promoted, normalized int, err error) {
	if err := o.begin(); err != nil {
		return 0, 0, 0, err
	}

	removed, err = o.repo.RemoveDuplicates(ctx)
	if err != nil {
		o.finish(RunIdle, err.Error())
		return 0, 0, 0, err
	}

	records, err := o.repo.GetAll(ctx)
	if err != nil {
		o.finish(RunIdle, err.Error())
		return removed, 0, 0, err
	}

	for _, record := range records {
		if record.GeneratedData == "" {
			continue
		}
		repaired := o.repair.Repair(record.GeneratedData)
		if !repaired.IsValidArray {
			continue
		}

		valid := true
		resolved, resolveErr := o.resolveFragment(ctx, record.Site, record.ProductType, record.Property)
		if resolveErr != nil {
			// Cannot re-validate without a schema; normalize only.
			o.log.Warn("schema unavailable during cleanup",
				zap.String("key", record.ID), zap.Error(resolveErr))
			valid = false
		} else {
			var parsed interface{}
			if jsonErr := json.Unmarshal([]byte(repaired.Compressed), &parsed); jsonErr != nil {
				continue
			}
			valid = len(o.validator.Validate(parsed, resolved)) == 0
		}

		changed := false
		updated := record
		if repaired.Compressed != record.GeneratedData {
			updated.GeneratedData = repaired.Compressed
			changed = true
		}
		if record.Status == domain.StatusFailed && valid {
			updated.Status = domain.StatusCompleted
			updated.ErrorMessage = ""
			updated.SyncStatus = domain.SyncPending
			promoted++
			changed = true
		}
		if changed {
			if upsertErr := o.repo.Upsert(ctx, &updated); upsertErr != nil {
				o.log.Error("failed to persist cleanup update",
					zap.String("key", record.ID), zap.Error(upsertErr))
				continue
			}
			normalized++
		}
	}

	o.finish(RunCompleted, "")
	o.log.Info("cleanup finished",
		zap.Int("duplicatesRemoved", removed),
		zap.Int("promoted", promoted),
		zap.Int("normalized", normalized))
	return removed, promoted, normalized, nil
}

// resolveFragment fetches and resolves the schema fragment for one record.
func (o *Orchestrator) resolveFragment(ctx context.Context, site, productType, property string) (*domain.SchemaNode, error) {
	doc, err := o.getSchemaDoc(ctx, site, productType)
	if err != nil {
		return nil, err
	}
	fragment, ok := doc.Properties[property]
	if !ok {
		return nil, domain.ErrPropertyNotInSchema
	}
	return NewSchemaResolver(doc).ResolveRefs(fragment)
}

// Results builds the read-only grouped projection over every stored record:
// property -> distinct canonical value -> sites.
func (o *Orchestrator) Results(ctx context.Context) ([]domain.PropertyGroup, error) {
	records, err := o.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	byProperty := make(map[string][]domain.VerificationResult)
	var order []string
	for _, r := range records {
		if _, ok := byProperty[r.Property]; !ok {
			order = append(order, r.Property)
		}
		byProperty[r.Property] = append(byProperty[r.Property], r)
	}

	groups := make([]domain.PropertyGroup, 0, len(order))
	for _, property := range order {
		pg := domain.PropertyGroup{Property: property}
		valueIndex := make(map[string]int)
		for _, r := range byProperty[property] {
			i, ok := valueIndex[r.GeneratedData]
			if !ok {
				pg.Values = append(pg.Values, domain.ValueGroup{Value: r.GeneratedData})
				i = len(pg.Values) - 1
				valueIndex[r.GeneratedData] = i
			}
			pg.Values[i].Sites = append(pg.Values[i].Sites, domain.SiteInfo{
				Site:        r.Site,
				ProductType: r.ProductType,
				Status:      r.Status,
				SyncStatus:  r.SyncStatus,
			})
		}
		groups = append(groups, pg)
	}
	return groups, nil
}

// sortedKeys keeps dispatch order deterministic across runs.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
