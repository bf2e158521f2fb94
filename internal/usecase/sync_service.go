package usecase

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/hxinn/amazon-listing-ai-assistant/internal/domain"
)

// SyncServiceConfig holds configuration for the sync service.
type SyncServiceConfig struct {
	// RequestDelay is the fixed pause between consecutive group
	// submissions, keeping the remote endpoint from being flooded.
	RequestDelay time.Duration
}

// SyncService groups persisted verification results by attribute and value
// and submits them to the remote system of record.
type SyncService struct {
	repo         domain.ResultRepository
	client       domain.SyncClient
	catalog      domain.CatalogClient
	requestDelay time.Duration
	log          *zap.Logger
}

// NewSyncService creates a sync service with dependencies.
func NewSyncService(
	repo domain.ResultRepository,
	client domain.SyncClient,
	catalog domain.CatalogClient,
	config SyncServiceConfig,
	log *zap.Logger,
) *SyncService {
	delay := config.RequestDelay
	if delay == 0 {
		delay = 500 * time.Millisecond
	}
	return &SyncService{
		repo:         repo,
		client:       client,
		catalog:      catalog,
		requestDelay: delay,
		log:          log.Named("sync"),
	}
}

// GroupByPropertyAndValue filters results to completed records for one
// property and merges all sites sharing an identical canonical value into
// one group per distinct value.
func (s *SyncService) GroupByPropertyAndValue(property string, results []domain.VerificationResult) []domain.SyncGroup {
	type bucket struct {
		sites         []string
		seen          map[string]bool
		applicability map[string]string
	}

	buckets := make(map[string]*bucket)
	var order []string
	for _, r := range results {
		if r.Property != property || r.Status != domain.StatusCompleted {
			continue
		}
		b, ok := buckets[r.GeneratedData]
		if !ok {
			b = &bucket{seen: make(map[string]bool), applicability: make(map[string]string)}
			buckets[r.GeneratedData] = b
			order = append(order, r.GeneratedData)
		}
		if !b.seen[r.Site] {
			b.seen[r.Site] = true
			b.sites = append(b.sites, r.Site)
		}
		b.applicability[r.Site] = r.ProductType
	}

	groups := make([]domain.SyncGroup, 0, len(order))
	for _, value := range order {
		b := buckets[value]
		sort.Strings(b.sites)
		groups = append(groups, domain.SyncGroup{
			PropertyName:  property,
			Value:         value,
			Sites:         b.sites,
			Type:          "generated",
			Applicability: b.applicability,
		})
	}
	return groups
}

// SyncGroup submits one group and updates per-site sync status on every
// constituent result. A transport failure or non-2xx response marks the
// group failed with the error text.
func (s *SyncService) SyncGroup(ctx context.Context, group *domain.SyncGroup) domain.SyncOutcome {
	outcome := domain.SyncOutcome{PropertyName: group.PropertyName, Value: group.Value}

	s.markGroup(ctx, group, domain.SyncSyncing, "")

	if err := s.client.SubmitGroup(ctx, group); err != nil {
		outcome.Error = err.Error()
		s.markGroup(ctx, group, domain.SyncFailed, err.Error())
		s.log.Warn("sync group failed",
			zap.String("property", group.PropertyName),
			zap.Error(err))
		return outcome
	}

	outcome.Success = true
	s.markGroup(ctx, group, domain.SyncSynced, "")
	s.log.Info("sync group submitted",
		zap.String("property", group.PropertyName),
		zap.Int("sites", len(group.Sites)))
	return outcome
}

// markGroup updates the sync status of every result backing the group.
// Storage errors are logged and do not abort the sync.
func (s *SyncService) markGroup(ctx context.Context, group *domain.SyncGroup, status, errText string) {
	for _, site := range group.Sites {
		productType := group.Applicability[site]
		id := domain.ResultKey{Site: site, ProductType: productType, Property: group.PropertyName}.String()
		if err := s.repo.UpdateSyncStatus(ctx, id, status, errText); err != nil {
			s.log.Warn("failed to update sync status",
				zap.String("id", id), zap.Error(err))
		}
	}
}

// SyncAll iterates every tracked attribute, builds all groups and submits
// them sequentially with a fixed inter-request delay.
func (s *SyncService) SyncAll(ctx context.Context) (*domain.SyncReport, error) {
	properties, err := s.catalog.ListAttributes(ctx)
	if err != nil {
		return nil, err
	}

	report := &domain.SyncReport{}
	first := true
	for _, property := range properties {
		results, err := s.repo.GetByProperty(ctx, property)
		if err != nil {
			s.log.Warn("failed to load results for property",
				zap.String("property", property), zap.Error(err))
			continue
		}
		for _, group := range s.GroupByPropertyAndValue(property, results) {
			if !first {
				select {
				case <-ctx.Done():
					return report, ctx.Err()
				case <-time.After(s.requestDelay):
				}
			}
			first = false

			g := group
			outcome := s.SyncGroup(ctx, &g)
			report.Total++
			if outcome.Success {
				report.Success++
			} else {
				report.Failed++
			}
			report.Outcomes = append(report.Outcomes, outcome)
		}
	}
	return report, nil
}
