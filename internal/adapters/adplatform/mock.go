package adplatform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
)

// Mock operation names accepted by FailOn
const (
	OpList           = "list_campaigns"
	OpPause          = "pause_campaign"
	OpResume         = "resume_campaign"
	OpUpdateBudget   = "update_budget"
	OpBackupCreative = "enable_backup_creative"
)

// MockPlatform is an in-memory ad platform for local development and tests
type MockPlatform struct {
	campaigns map[string]*campaigns.Campaign
	failures  map[string]error
	backups   map[string]bool
	calls     map[string]int
	mu        sync.RWMutex
}

var (
	_ campaigns.AdPlatform       = (*MockPlatform)(nil)
	_ campaigns.CreativeSwitcher = (*MockPlatform)(nil)
)

// NewMockPlatform creates a mock seeded with the given campaigns
func NewMockPlatform(seed ...campaigns.Campaign) *MockPlatform {
	m := &MockPlatform{
		campaigns: make(map[string]*campaigns.Campaign),
		failures:  make(map[string]error),
		backups:   make(map[string]bool),
		calls:     make(map[string]int),
	}
	m.Seed(seed...)
	return m
}

// Seed adds or replaces campaigns
func (m *MockPlatform) Seed(list ...campaigns.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range list {
		c := list[i]
		m.campaigns[c.ID] = &c
	}
}

// FailOn makes every call of op return err until cleared with a nil err
func (m *MockPlatform) FailOn(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op was invoked
func (m *MockPlatform) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Campaign returns a copy of one stored campaign
func (m *MockPlatform) Campaign(id string) (campaigns.Campaign, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaigns.Campaign{}, false
	}
	return *c, true
}

// BackupCreativeEnabled reports whether the backup creative was switched on
func (m *MockPlatform) BackupCreativeEnabled(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backups[id]
}

// ListCampaigns returns all campaigns ordered by id
func (m *MockPlatform) ListCampaigns(ctx context.Context) ([]campaigns.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, OpList); err != nil {
		return nil, err
	}

	list := make([]campaigns.Campaign, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		list = append(list, *c)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

// PauseCampaign implements campaigns.AdPlatform
func (m *MockPlatform) PauseCampaign(ctx context.Context, campaignID string) error {
	return m.mutate(ctx, OpPause, campaignID, func(c *campaigns.Campaign) {
		c.Status = campaigns.StatusPaused
	})
}

// ResumeCampaign implements campaigns.AdPlatform
func (m *MockPlatform) ResumeCampaign(ctx context.Context, campaignID string) error {
	return m.mutate(ctx, OpResume, campaignID, func(c *campaigns.Campaign) {
		c.Status = campaigns.StatusActive
	})
}

// UpdateCampaignBudget implements campaigns.AdPlatform
func (m *MockPlatform) UpdateCampaignBudget(ctx context.Context, campaignID string, dailyBudget float64) error {
	if dailyBudget < 0 {
		return &APIError{StatusCode: 400, Message: "daily_budget must not be negative"}
	}
	return m.mutate(ctx, OpUpdateBudget, campaignID, func(c *campaigns.Campaign) {
		c.DailyBudget = dailyBudget
	})
}

// EnableBackupCreative implements campaigns.CreativeSwitcher
func (m *MockPlatform) EnableBackupCreative(ctx context.Context, campaignID string) error {
	return m.mutate(ctx, OpBackupCreative, campaignID, func(c *campaigns.Campaign) {
		m.backups[c.ID] = true
	})
}

func (m *MockPlatform) mutate(ctx context.Context, op, campaignID string, apply func(c *campaigns.Campaign)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.begin(ctx, op); err != nil {
		return err
	}
	c, ok := m.campaigns[campaignID]
	if !ok {
		return &APIError{StatusCode: 404, Message: fmt.Sprintf("campaign %s not found", campaignID)}
	}
	apply(c)
	c.UpdatedAt = time.Now().UTC()
	return nil
}

// begin records the call and returns any injected failure. Callers hold the lock.
func (m *MockPlatform) begin(ctx context.Context, op string) error {
	m.calls[op]++
	if err := ctx.Err(); err != nil {
		return err
	}
	return m.failures[op]
}

// DemoCampaigns returns a small portfolio covering healthy, weak and overspending
// campaigns, used when the server runs against the mock platform
func DemoCampaigns(now time.Time) []campaigns.Campaign {
	start := now.AddDate(0, 0, -21)
	return []campaigns.Campaign{
		{
			ID: "cmp-brand-search", Name: "Brand Search", Status: campaigns.StatusActive, Objective: "conversions",
			DailyBudget: 150, TotalBudget: 4500, Spend: 3150, DailySpend: 148,
			Impressions: 120000, Clicks: 4800, Conversions: 310, CTR: 4.0, Bid: 1.8,
			Frequency: 1.6, AudienceEngagement: 64, StartDate: start,
			Last7Days: &campaigns.WindowMetrics{Days: 7, Spend: 1036, Impressions: 40000, Clicks: 1640, Conversions: 104, CTR: 4.1},
			Trend:     campaigns.Trend{CTRChangePct: 3.5, SpendChangePct: 2, ConversionChangePct: 6},
			UpdatedAt: now,
		},
		{
			ID: "cmp-summer-display", Name: "Summer Display", Status: campaigns.StatusActive, Objective: "traffic",
			DailyBudget: 200, TotalBudget: 6000, Spend: 5200, DailySpend: 410,
			Impressions: 540000, Clicks: 6480, Conversions: 97, CTR: 1.2, Bid: 0.9,
			Frequency: 5.2, AudienceEngagement: 22, StartDate: start,
			Last7Days: &campaigns.WindowMetrics{Days: 7, Spend: 1400, Impressions: 180000, Clicks: 2160, Conversions: 30, CTR: 1.2},
			Trend:     campaigns.Trend{CTRChangePct: -28, SpendChangePct: 35, ConversionChangePct: -22},
			UpdatedAt: now,
		},
		{
			ID: "cmp-retargeting", Name: "Cart Retargeting", Status: campaigns.StatusActive, Objective: "conversions",
			DailyBudget: 80, TotalBudget: 2400, Spend: 900, DailySpend: 32,
			Impressions: 45000, Clicks: 1620, Conversions: 150, CTR: 3.6, Bid: 1.2,
			Frequency: 2.4, AudienceEngagement: 71, AudienceSize: 18000, StartDate: start,
			Last7Days: &campaigns.WindowMetrics{Days: 7, Spend: 224, Impressions: 15000, Clicks: 555, Conversions: 51, CTR: 3.7},
			Trend:     campaigns.Trend{CTRChangePct: 25, SpendChangePct: -5, ConversionChangePct: 18},
			UpdatedAt: now,
		},
		{
			ID: "cmp-video-awareness", Name: "Video Awareness", Status: campaigns.StatusPaused, Objective: "awareness",
			DailyBudget: 120, TotalBudget: 3600, Spend: 1200, DailySpend: 0,
			Impressions: 300000, Clicks: 5100, Conversions: 12, CTR: 1.7, Bid: 0.6,
			Frequency: 3.1, AudienceEngagement: 40, StartDate: start,
			UpdatedAt: now,
		},
	}
}
