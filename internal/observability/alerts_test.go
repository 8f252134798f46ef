package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertRules struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "storebridge.yml")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rules alertRules
	require.NoError(t, yaml.Unmarshal(data, &rules))

	var group *alertGroup
	for i := range rules.Groups {
		if rules.Groups[i].Name == "storebridge" {
			group = &rules.Groups[i]
			break
		}
	}
	require.NotNil(t, group, "storebridge alert group missing")

	expected := map[string]struct {
		severity string
		metric   string
	}{
		"HighErrorRate":       {severity: "critical", metric: "storebridge_http_requests_total"},
		"OrderCreateFailures": {severity: "critical", metric: "storebridge_orders_total"},
		"InventorySyncErrors": {severity: "warning", metric: "storebridge_inventory_products_total"},
		"JobFailures":         {severity: "warning", metric: "storebridge_jobs_failures_total"},
	}
	require.Len(t, group.Rules, len(expected))

	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		require.True(t, ok, "unexpected rule %q", rule.Alert)
		require.Equal(t, want.severity, rule.Labels["severity"], rule.Alert)
		require.Contains(t, rule.Expr, want.metric, rule.Alert)
		require.True(t, strings.HasPrefix(rule.Annotations["runbook"], "docs/runbook.md#"), rule.Alert)
		require.NotEmpty(t, rule.Annotations["summary"], rule.Alert)
		require.NotEmpty(t, rule.Annotations["description"], rule.Alert)
		require.NotEmpty(t, rule.For, rule.Alert)
	}
}
