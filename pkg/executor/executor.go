// Package executor orchestrates plan entries through catalog lookup,
// the safety gate, execution, and rollback enforcement, producing one
// outcome record per attempted action.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/registry"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/safety"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Executor runs chaos experiments with safety validation, execution,
// and rollback. Nothing in it ever returns an error past RunOne: every
// failure class is folded into the outcome record.
type Executor struct {
	catalog *registry.Catalog
	safety  *safety.Controller
	clients clients.ClientSets
	tracer  trace.Tracer
}

// New returns an executor wired to an owned catalog and safety controller.
func New(catalog *registry.Catalog, safetyController *safety.Controller, clientSets clients.ClientSets) *Executor {
	return &Executor{
		catalog: catalog,
		safety:  safetyController,
		clients: clientSets,
		tracer:  otel.Tracer("chaosmonkey/executor"),
	}
}

// RunOne executes a single plan entry. The returned record is fully
// populated and never mutated afterwards.
func (e *Executor) RunOne(ctx context.Context, entry types.PlanEntry, dryRun bool) *types.Result {
	name := entry.Experiment
	target := entry.Target
	namespace := entry.Scope()

	ctx, span := e.tracer.Start(ctx, "ExecuteChaosExperiment", trace.WithAttributes(
		attribute.String("experiment.name", name),
		attribute.String("experiment.target", target),
		attribute.String("experiment.namespace", namespace),
		attribute.Bool("experiment.dry_run", dryRun),
	))
	defer span.End()

	exp, ok := e.catalog.Get(name)
	if !ok {
		experimentsTotal.WithLabelValues(string(types.StatusFailed)).Inc()
		result := types.NewResult(name, target, namespace, types.StatusFailed)
		result.Error = fmt.Sprintf("Unknown experiment type: %s", name)
		return result
	}

	validation := e.safety.ValidateExperiment(exp.Describe(), target, namespace)
	if !validation.Approved {
		log.Warnf("[Safety]: Rejected %v: %v", name, validation.Reason)
		experimentsTotal.WithLabelValues(string(types.StatusSkipped)).Inc()
		result := types.NewResult(name, target, namespace, types.StatusSkipped)
		result.Error = fmt.Sprintf("Safety check failed: %s", validation.Reason)
		return result
	}

	if dryRun {
		log.Infof("[DryRun]: Would execute %v on %v/%v", name, namespace, target)
		experimentsTotal.WithLabelValues(string(types.StatusCompleted)).Inc()
		result := types.NewResult(name, target, namespace, types.StatusCompleted)
		result.DryRun = true
		result.Details["params"] = entry.Params
		result.Details["message"] = "Dry run, no changes made"
		return result
	}

	e.safety.RegisterActive(name, target, namespace)
	defer e.safety.UnregisterActive(name, target)

	started := time.Now().UTC()
	result, err := exp.Execute(ctx, target, namespace, e.clients, entry.Params)
	if err == nil {
		result.StartedAt = started
		result.Complete(started)
		experimentsTotal.WithLabelValues(string(result.Status)).Inc()
		return result
	}

	log.ErrorWithValues("[Chaos]: Experiment failed", map[string]interface{}{
		"Experiment": name,
		"Target":     fmt.Sprintf("%s/%s", namespace, target),
		"Reason":     err.Error(),
	})

	// The partial record, when the variant returned one, is the only
	// carrier of rollback context across the failure boundary.
	var rollbackData interface{}
	if result != nil {
		rollbackData = result.RollbackData
	}
	rolledBack := e.safety.EnforceRollback(ctx, exp, target, namespace, e.clients, rollbackData)
	if rolledBack {
		rollbacksTotal.WithLabelValues("completed").Inc()
	} else {
		rollbacksTotal.WithLabelValues("failed").Inc()
	}
	experimentsTotal.WithLabelValues(string(types.StatusFailed)).Inc()

	failed := types.NewResult(name, target, namespace, types.StatusFailed)
	failed.StartedAt = started
	failed.Complete(started)
	failed.Error = err.Error()
	failed.RollbackPerformed = rolledBack
	return failed
}

// RunPlan executes a plan sequentially, stopping after the first failed
// record unless running dry, where nothing can fail destructively.
func (e *Executor) RunPlan(ctx context.Context, entries []types.PlanEntry, dryRun bool) []*types.Result {
	results := make([]*types.Result, 0, len(entries))
	for _, entry := range entries {
		result := e.RunOne(ctx, entry, dryRun)
		results = append(results, result)
		if result.Status == types.StatusFailed && !dryRun {
			log.Errorf("[Plan]: Stopping plan execution due to failure: %v", result.Error)
			break
		}
	}
	return results
}
