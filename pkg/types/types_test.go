package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlastRadiusOrdering(t *testing.T) {
	if !(BlastRadiusLow.Level() < BlastRadiusMedium.Level()) {
		t.Errorf("Expected low < medium")
	}
	if !(BlastRadiusMedium.Level() < BlastRadiusHigh.Level()) {
		t.Errorf("Expected medium < high")
	}
}

func TestBlastRadiusExceeds(t *testing.T) {
	tests := []struct {
		name    string
		radius  BlastRadius
		ceiling BlastRadius
		want    bool
	}{
		{name: "low under medium ceiling", radius: BlastRadiusLow, ceiling: BlastRadiusMedium, want: false},
		{name: "high over medium ceiling", radius: BlastRadiusHigh, ceiling: BlastRadiusMedium, want: true},
		{name: "equal is not exceeding", radius: BlastRadiusMedium, ceiling: BlastRadiusMedium, want: false},
		{name: "unknown radius never approved", radius: BlastRadius("catastrophic"), ceiling: BlastRadiusHigh, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.radius.Exceeds(tt.ceiling))
		})
	}
}

func TestBlastRadiusIsValid(t *testing.T) {
	assert.True(t, BlastRadiusLow.IsValid())
	assert.True(t, BlastRadiusHigh.IsValid())
	assert.False(t, BlastRadius("extreme").IsValid())
	assert.False(t, BlastRadius("").IsValid())
}

func TestParamsAccessors(t *testing.T) {
	params := Params{
		"duration_seconds": 45,
		"ratio":            2.0,
		"vm_bytes":         "512M",
		"labels":           map[interface{}]interface{}{"app": "web"},
	}

	assert.Equal(t, 45, params.Int("duration_seconds", 30))
	assert.Equal(t, 2, params.Int("ratio", 0))
	assert.Equal(t, 30, params.Int("missing", 30))
	assert.Equal(t, 7, params.Int("vm_bytes", 7), "non-numeric value falls back")

	assert.Equal(t, "512M", params.String("vm_bytes", "256M"))
	assert.Equal(t, "256M", params.String("missing", "256M"))

	assert.Equal(t, map[string]string{"app": "web"}, params.StringMap("labels", nil))
	assert.Equal(t, map[string]string{"app": "db"}, params.StringMap("missing", map[string]string{"app": "db"}))
}

func TestPlanEntryScopeDefaults(t *testing.T) {
	assert.Equal(t, "default", PlanEntry{Experiment: "pod-kill", Target: "web"}.Scope())
	assert.Equal(t, "prod", PlanEntry{Experiment: "pod-kill", Target: "web", Namespace: "prod"}.Scope())
}

func TestParsePlan(t *testing.T) {
	plan := []byte(`
- experiment: pod-kill
  target: web-7f
  namespace: prod
- experiment: cpu-stress
  target: api-0
  params:
    duration_seconds: 60
    workers: 2
`)
	entries, err := ParsePlan(plan)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "pod-kill", entries[0].Experiment)
	assert.Equal(t, "prod", entries[0].Namespace)
	assert.Equal(t, "default", entries[1].Scope())
	assert.Equal(t, 60, entries[1].Params.Int("duration_seconds", 0))
	assert.Equal(t, 2, entries[1].Params.Int("workers", 0))
}

func TestParsePlanRejectsIncompleteEntries(t *testing.T) {
	tests := []struct {
		name string
		plan string
	}{
		{name: "missing experiment", plan: "- target: web-7f"},
		{name: "missing target", plan: "- experiment: pod-kill"},
		{name: "not yaml", plan: "{{nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.plan))
			assert.Error(t, err)
		})
	}
}

func TestResultJSONShape(t *testing.T) {
	result := NewResult("pod-kill", "web-7f", "prod", StatusCompleted)
	result.Complete(result.StartedAt.Add(-2 * time.Second))

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	for _, key := range []string{
		"experiment_name", "status", "target", "namespace", "started_at",
		"completed_at", "duration_seconds", "observations",
		"rollback_performed", "dry_run", "details",
	} {
		assert.Contains(t, decoded, key)
	}
	assert.NotContains(t, decoded, "RollbackData", "rollback context stays off the wire")
	assert.Equal(t, "completed", decoded["status"])
	assert.InDelta(t, 2.0, decoded["duration_seconds"], 0.1)
}

func TestNewResultStampsIdentity(t *testing.T) {
	a := NewResult("pod-kill", "web", "default", StatusPending)
	b := NewResult("pod-kill", "web", "default", StatusPending)
	assert.NotEmpty(t, a.RunID)
	assert.NotEqual(t, a.RunID, b.RunID)
	assert.Nil(t, a.CompletedAt)
}
