package insights

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/frostdev-ops/adpilot-backend-go/internal/core/campaigns"
	"github.com/sirupsen/logrus"
)

// Type categorizes an insight
type Type string

const (
	TypePerformance  Type = "performance"
	TypeBudget       Type = "budget"
	TypeCreative     Type = "creative"
	TypeAudience     Type = "audience"
	TypeOptimization Type = "optimization"
)

// Level is used for both priority and impact
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 0
	case LevelMedium:
		return 1
	default:
		return 2
	}
}

// Insight is a ranked recommendation derived from the current campaign set
type Insight struct {
	Type           Type                   `json:"type"`
	Priority       Level                  `json:"priority"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Recommendation string                 `json:"recommendation"`
	Confidence     float64                `json:"confidence"`
	Impact         Level                  `json:"impact"`
	CampaignIDs    []string               `json:"campaign_ids"`
	Data           map[string]interface{} `json:"data,omitempty"`
}

// Config holds the generator thresholds
type Config struct {
	TrendChangePct      float64 `json:"trend_change_pct" mapstructure:"trend_change_pct"`
	BudgetUsedPct       float64 `json:"budget_used_pct" mapstructure:"budget_used_pct"`
	UnderpacingPct      float64 `json:"underpacing_pct" mapstructure:"underpacing_pct"`
	FatigueScore        float64 `json:"fatigue_score" mapstructure:"fatigue_score"`
	ExpansionCTR        float64 `json:"expansion_ctr" mapstructure:"expansion_ctr"`
	ExpansionConversion float64 `json:"expansion_conversion" mapstructure:"expansion_conversion"`
	UnderperformerCTR   float64 `json:"underperformer_ctr" mapstructure:"underperformer_ctr"`
}

// DefaultConfig returns the standard insight thresholds
func DefaultConfig() Config {
	return Config{
		TrendChangePct:      20,
		BudgetUsedPct:       80,
		UnderpacingPct:      50,
		FatigueScore:        70,
		ExpansionCTR:        3.0,
		ExpansionConversion: 2.5,
		UnderperformerCTR:   2.5,
	}
}

// Generator derives insights from campaign snapshots. It never fails; a campaign that
// cannot be analyzed simply contributes nothing.
type Generator struct {
	config Config
	logger *logrus.Logger
}

// NewGenerator creates a generator
func NewGenerator(config Config, logger *logrus.Logger) *Generator {
	if logger == nil {
		logger = logrus.New()
	}
	return &Generator{config: config, logger: logger}
}

// Generate returns per-campaign and cross-campaign insights ordered by priority.
// Insights of equal priority keep their generation order.
func (g *Generator) Generate(list []campaigns.Campaign) []Insight {
	var out []Insight
	for i := range list {
		out = append(out, g.forCampaign(&list[i])...)
	}
	if opt := g.safeOptimization(list); opt != nil {
		out = append(out, *opt)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority.rank() < out[j].Priority.rank()
	})
	return out
}

func (g *Generator) forCampaign(c *campaigns.Campaign) (out []Insight) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithFields(logrus.Fields{
				"campaign_id": c.ID,
				"panic":       r,
			}).Error("Insight generation failed for campaign")
			out = nil
		}
	}()

	for _, fn := range []func(*campaigns.Campaign) *Insight{g.performance, g.budgetThreshold, g.budgetPacing, g.creativeFatigue, g.audienceExpansion} {
		if in := fn(c); in != nil && valid(in) {
			out = append(out, *in)
		}
	}
	return out
}

func (g *Generator) performance(c *campaigns.Campaign) *Insight {
	change := c.Trend.CTRChangePct
	switch {
	case change <= -g.config.TrendChangePct:
		return &Insight{
			Type:           TypePerformance,
			Priority:       LevelHigh,
			Title:          fmt.Sprintf("%s performance declining", c.Name),
			Description:    fmt.Sprintf("CTR fell %.1f%% week over week to %.2f%%", math.Abs(change), c.CurrentCTR()),
			Recommendation: "Refresh creatives and review recent targeting changes.",
			Confidence:     0.85,
			Impact:         LevelHigh,
			CampaignIDs:    []string{c.ID},
			Data:           map[string]interface{}{"ctr_change_pct": change, "ctr": c.CurrentCTR()},
		}
	case change >= g.config.TrendChangePct:
		return &Insight{
			Type:           TypePerformance,
			Priority:       LevelMedium,
			Title:          fmt.Sprintf("%s performance surging", c.Name),
			Description:    fmt.Sprintf("CTR rose %.1f%% week over week to %.2f%%", change, c.CurrentCTR()),
			Recommendation: "Consider increasing budget to capture the additional demand.",
			Confidence:     0.8,
			Impact:         LevelMedium,
			CampaignIDs:    []string{c.ID},
			Data:           map[string]interface{}{"ctr_change_pct": change, "ctr": c.CurrentCTR()},
		}
	}
	return nil
}

func (g *Generator) budgetThreshold(c *campaigns.Campaign) *Insight {
	if c.TotalBudget <= 0 {
		return nil
	}
	used := c.Spend / c.TotalBudget * 100
	if used < g.config.BudgetUsedPct {
		return nil
	}
	return &Insight{
		Type:           TypeBudget,
		Priority:       LevelHigh,
		Title:          fmt.Sprintf("%s has used %.0f%% of its budget", c.Name, used),
		Description:    fmt.Sprintf("%.2f of %.2f spent, %.2f remaining", c.Spend, c.TotalBudget, c.RemainingBudget()),
		Recommendation: "Extend the budget or plan the campaign wind-down.",
		Confidence:     0.95,
		Impact:         LevelHigh,
		CampaignIDs:    []string{c.ID},
		Data:           map[string]interface{}{"budget_used_pct": used, "remaining": c.RemainingBudget()},
	}
}

func (g *Generator) budgetPacing(c *campaigns.Campaign) *Insight {
	if !c.IsActive() || c.DailyBudget <= 0 || c.Last7Days == nil || c.Last7Days.Days <= 0 {
		return nil
	}
	pacing := c.Last7Days.AverageDailySpend() / c.DailyBudget * 100
	if pacing >= g.config.UnderpacingPct {
		return nil
	}
	return &Insight{
		Type:           TypeBudget,
		Priority:       LevelMedium,
		Title:          fmt.Sprintf("%s is underpacing", c.Name),
		Description:    fmt.Sprintf("Average daily spend is %.0f%% of the %.2f daily budget", pacing, c.DailyBudget),
		Recommendation: "Raise bids or broaden targeting so the budget can be delivered.",
		Confidence:     0.75,
		Impact:         LevelMedium,
		CampaignIDs:    []string{c.ID},
		Data:           map[string]interface{}{"pacing_pct": pacing},
	}
}

// FatigueScore combines ad frequency with CTR decline into a 0-100 score
func FatigueScore(c *campaigns.Campaign) float64 {
	score := c.Frequency*15 + math.Max(0, -c.Trend.CTRChangePct)
	return math.Min(100, math.Max(0, score))
}

func (g *Generator) creativeFatigue(c *campaigns.Campaign) *Insight {
	score := FatigueScore(c)
	if score < g.config.FatigueScore {
		return nil
	}
	priority := LevelMedium
	if score >= 85 {
		priority = LevelHigh
	}
	return &Insight{
		Type:           TypeCreative,
		Priority:       priority,
		Title:          fmt.Sprintf("Creative fatigue detected in %s", c.Name),
		Description:    fmt.Sprintf("Fatigue score %.0f (frequency %.1f)", score, c.Frequency),
		Recommendation: "Rotate in new creatives or enable the backup creative.",
		Confidence:     0.7,
		Impact:         LevelMedium,
		CampaignIDs:    []string{c.ID},
		Data:           map[string]interface{}{"fatigue_score": score, "frequency": c.Frequency},
	}
}

func (g *Generator) audienceExpansion(c *campaigns.Campaign) *Insight {
	if !c.IsActive() {
		return nil
	}
	rate, ok := c.ConversionRate()
	if !ok || c.CurrentCTR() < g.config.ExpansionCTR || rate < g.config.ExpansionConversion {
		return nil
	}
	return &Insight{
		Type:           TypeAudience,
		Priority:       LevelLow,
		Title:          fmt.Sprintf("Audience expansion opportunity for %s", c.Name),
		Description:    fmt.Sprintf("CTR %.2f%% and conversion rate %.2f%% are above benchmark", c.CurrentCTR(), rate),
		Recommendation: "Test a lookalike audience built from recent converters.",
		Confidence:     0.65,
		Impact:         LevelMedium,
		CampaignIDs:    []string{c.ID},
		Data:           map[string]interface{}{"ctr": c.CurrentCTR(), "conversion_rate": rate},
	}
}

func (g *Generator) safeOptimization(list []campaigns.Campaign) (in *Insight) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.WithField("panic", r).Error("Cross-campaign insight generation failed")
			in = nil
		}
	}()
	return g.optimization(list)
}

// optimization recommends moving the underperformers' daily spend to the single
// highest-CTR active campaign
func (g *Generator) optimization(list []campaigns.Campaign) *Insight {
	var top *campaigns.Campaign
	for i := range list {
		c := &list[i]
		if !c.IsActive() {
			continue
		}
		if top == nil || c.CurrentCTR() > top.CurrentCTR() {
			top = c
		}
	}
	if top == nil {
		return nil
	}

	var (
		under   []string
		names   []string
		realloc float64
	)
	for i := range list {
		c := &list[i]
		if !c.IsActive() || c.ID == top.ID || c.CurrentCTR() >= g.config.UnderperformerCTR {
			continue
		}
		under = append(under, c.ID)
		names = append(names, c.Name)
		realloc += c.DailySpend
	}
	if len(under) == 0 {
		return nil
	}

	ids := append([]string{top.ID}, under...)
	return &Insight{
		Type:     TypeOptimization,
		Priority: LevelHigh,
		Title:    "Reallocate budget to the top performer",
		Description: fmt.Sprintf("%s leads with %.2f%% CTR while %d campaign(s) are below %.1f%%: %s",
			top.Name, top.CurrentCTR(), len(under), g.config.UnderperformerCTR, strings.Join(names, ", ")),
		Recommendation: fmt.Sprintf("Move %.2f of daily spend from the underperformers to %s.", realloc, top.Name),
		Confidence:     0.8,
		Impact:         LevelHigh,
		CampaignIDs:    ids,
		Data: map[string]interface{}{
			"top_performer":       top.ID,
			"underperformers":     under,
			"reallocatable_spend": realloc,
		},
	}
}

func valid(in *Insight) bool {
	for _, v := range in.Data {
		if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
			return false
		}
	}
	return true
}
