package executor

import (
	"context"
	"testing"
	"time"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/registry"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/safety"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExperiment struct {
	name        string
	blastRadius types.BlastRadius
	executeErr  error

	executions   int
	rollbacks    int
	rollbackData interface{}
}

type fakeRollbackContext struct {
	Marker string
}

func (f *fakeExperiment) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	f.executions++
	result := types.NewResult(f.name, target, namespace, types.StatusCompleted)
	result.RollbackData = fakeRollbackContext{Marker: target}
	if f.executeErr != nil {
		result.Status = types.StatusFailed
		return result, f.executeErr
	}
	return result, nil
}

func (f *fakeExperiment) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	f.rollbacks++
	f.rollbackData = data
	return nil
}

func (f *fakeExperiment) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return true
}

func (f *fakeExperiment) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        f.name,
		Category:    types.CategoryPod,
		BlastRadius: f.blastRadius,
		Reversible:  true,
	}
}

func newTestExecutor(t *testing.T, exps ...registry.Experiment) (*Executor, *safety.Controller) {
	t.Helper()
	catalog := registry.NewCatalog()
	catalog.MustRegister(exps...)
	config := safety.Config{
		ExcludedNamespaces:       []string{"kube-system"},
		MaxBlastRadius:           types.BlastRadiusMedium,
		MaxConcurrentExperiments: 1,
		AutoRollback:             true,
		RollbackTimeoutSeconds:   30,
	}
	controller := safety.NewController(config, catalog)
	return New(catalog, controller, clients.ClientSets{}), controller
}

func TestRunOneUnknownExperiment(t *testing.T) {
	exp := &fakeExperiment{name: "pod-kill", blastRadius: types.BlastRadiusLow}
	executor, controller := newTestExecutor(t, exp)

	result := executor.RunOne(context.Background(), types.PlanEntry{
		Experiment: "time-travel",
		Target:     "web-7f",
		Namespace:  "prod",
	}, false)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, "Unknown experiment type: time-travel", result.Error)
	assert.Equal(t, 0, exp.executions, "no variant may run for an unknown name")
	assert.Equal(t, 0, controller.ActiveCount())
}

func TestRunOneSafetyRejection(t *testing.T) {
	exp := &fakeExperiment{name: "pod-kill", blastRadius: types.BlastRadiusLow}
	executor, controller := newTestExecutor(t, exp)

	result := executor.RunOne(context.Background(), types.PlanEntry{
		Experiment: "pod-kill",
		Target:     "coredns-abc",
		Namespace:  "kube-system",
	}, false)

	assert.Equal(t, types.StatusSkipped, result.Status)
	assert.Contains(t, result.Error, "Safety check failed: ")
	assert.Contains(t, result.Error, "exclusion list")
	assert.Equal(t, 0, exp.executions)
	assert.Equal(t, 0, controller.ActiveCount())
}

func TestRunOneDryRun(t *testing.T) {
	exp := &fakeExperiment{name: "pod-kill", blastRadius: types.BlastRadiusLow}
	executor, _ := newTestExecutor(t, exp)

	params := types.Params{"grace_period_seconds": 0}
	result := executor.RunOne(context.Background(), types.PlanEntry{
		Experiment: "pod-kill",
		Target:     "web-7f",
		Namespace:  "prod",
		Params:     params,
	}, true)

	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.True(t, result.DryRun)
	assert.Equal(t, "Dry run, no changes made", result.Details["message"])
	assert.Equal(t, params, result.Details["params"])
	assert.Equal(t, 0, exp.executions, "dry run must never reach the variant")
}

func TestRunOneSuccess(t *testing.T) {
	exp := &fakeExperiment{name: "pod-kill", blastRadius: types.BlastRadiusLow}
	executor, controller := newTestExecutor(t, exp)

	before := time.Now().UTC()
	result := executor.RunOne(context.Background(), types.PlanEntry{
		Experiment: "pod-kill",
		Target:     "web-7f",
		Namespace:  "prod",
	}, false)

	require.Equal(t, types.StatusCompleted, result.Status)
	assert.Equal(t, 1, exp.executions)
	assert.Equal(t, 0, exp.rollbacks)
	assert.False(t, result.StartedAt.Before(before))
	assert.False(t, result.CompletedAt.Before(result.StartedAt))
	assert.GreaterOrEqual(t, result.DurationSeconds, 0.0)
	assert.Equal(t, 0, controller.ActiveCount(), "ledger slot must be released")
}

func TestRunOneFailureTriggersRollback(t *testing.T) {
	exp := &fakeExperiment{
		name:        "pod-restart",
		blastRadius: types.BlastRadiusLow,
		executeErr:  errors.New("deployments.apps \"web\" not found"),
	}
	executor, controller := newTestExecutor(t, exp)

	result := executor.RunOne(context.Background(), types.PlanEntry{
		Experiment: "pod-restart",
		Target:     "web",
		Namespace:  "prod",
	}, false)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.Equal(t, "deployments.apps \"web\" not found", result.Error)
	assert.True(t, result.RollbackPerformed)
	assert.Equal(t, 1, exp.rollbacks)
	require.IsType(t, fakeRollbackContext{}, exp.rollbackData)
	assert.Equal(t, "web", exp.rollbackData.(fakeRollbackContext).Marker)
	assert.Equal(t, 0, controller.ActiveCount(), "ledger slot must be released after failure")
}

func TestRunOneFailureWithRollbackDisabled(t *testing.T) {
	exp := &fakeExperiment{
		name:        "pod-restart",
		blastRadius: types.BlastRadiusLow,
		executeErr:  errors.New("exec failed"),
	}
	catalog := registry.NewCatalog()
	catalog.MustRegister(exp)
	config := safety.Config{
		MaxBlastRadius:           types.BlastRadiusMedium,
		MaxConcurrentExperiments: 1,
		AutoRollback:             false,
		RollbackTimeoutSeconds:   30,
	}
	controller := safety.NewController(config, catalog)
	executor := New(catalog, controller, clients.ClientSets{})

	result := executor.RunOne(context.Background(), types.PlanEntry{
		Experiment: "pod-restart",
		Target:     "web",
	}, false)

	assert.Equal(t, types.StatusFailed, result.Status)
	assert.False(t, result.RollbackPerformed)
	assert.Equal(t, 0, exp.rollbacks)
}

func TestRunPlanStopsAfterFailure(t *testing.T) {
	failing := &fakeExperiment{
		name:        "pod-restart",
		blastRadius: types.BlastRadiusLow,
		executeErr:  errors.New("boom"),
	}
	healthy := &fakeExperiment{name: "pod-kill", blastRadius: types.BlastRadiusLow}
	executor, _ := newTestExecutor(t, failing, healthy)

	entries := []types.PlanEntry{
		{Experiment: "pod-restart", Target: "web", Namespace: "prod"},
		{Experiment: "pod-kill", Target: "web-7f", Namespace: "prod"},
		{Experiment: "pod-kill", Target: "web-8a", Namespace: "prod"},
	}

	results := executor.RunPlan(context.Background(), entries, false)
	require.Len(t, results, 1)
	assert.Equal(t, types.StatusFailed, results[0].Status)
	assert.Equal(t, 0, healthy.executions)
}

func TestRunPlanDryRunNeverStops(t *testing.T) {
	failing := &fakeExperiment{
		name:        "pod-restart",
		blastRadius: types.BlastRadiusLow,
		executeErr:  errors.New("boom"),
	}
	healthy := &fakeExperiment{name: "pod-kill", blastRadius: types.BlastRadiusLow}
	executor, _ := newTestExecutor(t, failing, healthy)

	entries := []types.PlanEntry{
		{Experiment: "pod-restart", Target: "web", Namespace: "prod"},
		{Experiment: "pod-kill", Target: "web-7f", Namespace: "prod"},
	}

	results := executor.RunPlan(context.Background(), entries, true)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, types.StatusCompleted, result.Status)
		assert.True(t, result.DryRun)
	}
	assert.Equal(t, 0, failing.executions)
	assert.Equal(t, 0, healthy.executions)
}
