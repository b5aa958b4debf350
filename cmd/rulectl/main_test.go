package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rulesYAML = `
rules:
  - name: Pause weak CTR
    type: pause
    conditions:
      - {metric: ctr, operator: lt, value: 1.5}
    actions:
      - {type: pause_campaign}
  - name: Boost efficient spend
    type: budget
    conditions:
      - {metric: cost_per_click, operator: lt, value: 1}
    actions:
      - {type: increase_budget, parameters: {percentage: 15}}
`

const campaignsJSON = `[
	{"id": "c1", "name": "Weak", "status": "active", "ctr": 0.8, "clicks": 100, "spend": 300},
	{"id": "c2", "name": "Strong", "status": "active", "ctr": 3.2, "clicks": 400, "spend": 200}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestValidate(t *testing.T) {
	out, err := execute(t, "validate", writeFile(t, "rules.yaml", rulesYAML))
	require.NoError(t, err)
	assert.Contains(t, out, "ok    Pause weak CTR")
	assert.Contains(t, out, "2 rules valid")
}

func TestValidate_ReportsInvalidRules(t *testing.T) {
	invalid := `[{"name": "No actions", "type": "pause", "conditions": [{"metric": "ctr", "operator": "lt", "value": 1}], "actions": []}]`

	out, err := execute(t, "validate", writeFile(t, "rules.json", invalid))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 rules are invalid")
	assert.Contains(t, out, "FAIL  No actions")
}

func TestEvaluate_Table(t *testing.T) {
	rules := writeFile(t, "rules.yaml", rulesYAML)
	list := writeFile(t, "campaigns.json", campaignsJSON)

	out, err := execute(t, "evaluate", rules, "--campaigns", list, "--derived", "cost_per_click=campaign.spend / double(campaign.clicks)")
	require.NoError(t, err)
	assert.Contains(t, out, "Pause weak CTR")
	assert.Contains(t, out, "pause_campaign")
	assert.Contains(t, out, "2 rule/campaign pairs would fire across 2 campaigns")
	assert.NotContains(t, out, "warning")
}

func TestEvaluate_JSONSkipsUnknownMetrics(t *testing.T) {
	rules := writeFile(t, "rules.yaml", rulesYAML)
	list := writeFile(t, "campaigns.json", `{"campaigns": `+campaignsJSON+`}`)

	out, err := execute(t, "evaluate", rules, "--campaigns", list, "-o", "json")
	require.NoError(t, err)

	var views []matchView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 1)
	assert.Equal(t, "c1", views[0].CampaignID)
	assert.Equal(t, []string{"pause_campaign"}, views[0].Actions)
}

func TestEvaluate_RequiresCampaigns(t *testing.T) {
	_, err := execute(t, "evaluate", writeFile(t, "rules.yaml", rulesYAML))
	require.Error(t, err)
}
