// Package safety is the sole authority allowed to approve a mutation.
// It enforces namespace exclusion, the blast radius ceiling, and the
// concurrency ceiling, keeps the ledger of in-flight experiments, and
// time-boxes rollback enforcement.
package safety

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/registry"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"github.com/sirupsen/logrus"
)

// Config is the safety policy surface.
type Config struct {
	ExcludedNamespaces       []string          `yaml:"excluded_namespaces"`
	MaxBlastRadius           types.BlastRadius `yaml:"max_blast_radius"`
	MaxConcurrentExperiments int               `yaml:"max_concurrent_experiments"`
	DryRun                   bool              `yaml:"dry_run"`
	AutoRollback             bool              `yaml:"auto_rollback"`
	RollbackTimeoutSeconds   int               `yaml:"rollback_timeout_seconds"`
}

// DefaultConfig mirrors the shipped policy defaults.
func DefaultConfig() Config {
	return Config{
		ExcludedNamespaces:       []string{"kube-system", "kube-public", "kube-node-lease"},
		MaxBlastRadius:           types.BlastRadiusMedium,
		MaxConcurrentExperiments: 1,
		AutoRollback:             true,
		RollbackTimeoutSeconds:   300,
	}
}

// ValidationResult is the verdict of the safety check chain for one entry.
type ValidationResult struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
}

type activeExperiment struct {
	name      string
	target    string
	namespace string
}

// Controller enforces safety rules before, during, and after chaos
// experiments. The ledger is mutex-guarded, but validation and
// registration are separate steps: the concurrency ceiling is
// authoritative only for the sequential plan runner that owns the
// controller.
type Controller struct {
	config  Config
	catalog *registry.Catalog

	mu     sync.Mutex
	active []activeExperiment
}

// NewController returns a controller enforcing the given policy. The
// catalog is consulted for plan validation only.
func NewController(config Config, catalog *registry.Catalog) *Controller {
	return &Controller{config: config, catalog: catalog}
}

// Config returns the policy the controller enforces.
func (c *Controller) Config() Config {
	return c.config
}

// ValidateExperiment runs the ordered safety check chain for one
// experiment, short-circuiting at the first failure.
func (c *Controller) ValidateExperiment(descriptor types.Descriptor, target, namespace string) ValidationResult {
	for _, excluded := range c.config.ExcludedNamespaces {
		if namespace == excluded {
			return ValidationResult{
				Approved: false,
				Reason:   fmt.Sprintf("Namespace '%s' is in the exclusion list", namespace),
			}
		}
	}

	if descriptor.BlastRadius.Exceeds(c.config.MaxBlastRadius) {
		return ValidationResult{
			Approved: false,
			Reason: fmt.Sprintf("Experiment blast radius '%s' exceeds maximum allowed '%s'",
				descriptor.BlastRadius, c.config.MaxBlastRadius),
		}
	}

	if c.ActiveCount() >= c.config.MaxConcurrentExperiments {
		return ValidationResult{
			Approved: false,
			Reason:   fmt.Sprintf("Concurrent experiment limit reached (%d)", c.config.MaxConcurrentExperiments),
		}
	}

	return ValidationResult{Approved: true, Reason: "All safety checks passed"}
}

// ValidatePlan validates every plan entry in order. Validation alone
// mutates no state, so repeated calls under an unchanged ledger yield
// identical results.
func (c *Controller) ValidatePlan(entries []types.PlanEntry) []ValidationResult {
	results := make([]ValidationResult, 0, len(entries))
	for _, entry := range entries {
		exp, ok := c.catalog.Get(entry.Experiment)
		if !ok {
			results = append(results, ValidationResult{
				Approved: false,
				Reason:   fmt.Sprintf("Unknown experiment type: %s", entry.Experiment),
			})
			continue
		}
		results = append(results, c.ValidateExperiment(exp.Describe(), entry.Target, entry.Scope()))
	}
	return results
}

// RegisterActive records an experiment as in flight, occupying one
// ledger slot.
func (c *Controller) RegisterActive(name, target, namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = append(c.active, activeExperiment{name: name, target: target, namespace: namespace})
}

// UnregisterActive releases the ledger slot held by the named experiment
// on the given target. Releasing an absent slot is a no-op, so every
// registration is matched by exactly one effective deregistration.
func (c *Controller) UnregisterActive(name, target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, exp := range c.active {
		if exp.name == name && exp.target == target {
			c.active = append(c.active[:i], c.active[i+1:]...)
			return
		}
	}
}

// ActiveCount returns the current ledger size.
func (c *Controller) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.active)
}

// EnforceRollback invokes the experiment's rollback bounded by the
// configured timeout and reports whether it completed cleanly. Timeouts
// and rollback errors are logged and absorbed; they never propagate.
// Ledger bookkeeping stays with the executor, which owns the slot.
func (c *Controller) EnforceRollback(ctx context.Context, exp registry.Experiment, target, namespace string, clientSets clients.ClientSets, data interface{}) bool {
	name := exp.Describe().Name
	if !c.config.AutoRollback {
		log.Warnf("Auto-rollback is disabled; skipping rollback for %v", name)
		return false
	}

	timeout := time.Duration(c.config.RollbackTimeoutSeconds) * time.Second
	rollbackCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("rollback panicked: %v", r)
			}
		}()
		done <- exp.Rollback(rollbackCtx, target, namespace, clientSets, data)
	}()

	select {
	case err := <-done:
		if err != nil {
			log.ErrorWithValues("[Rollback]: Rollback failed", logrus.Fields{
				"Experiment": name,
				"Target":     fmt.Sprintf("%s/%s", namespace, target),
				"Reason":     err.Error(),
			})
			return false
		}
		log.Infof("[Rollback]: Rollback completed for %v on %v/%v", name, namespace, target)
		return true
	case <-rollbackCtx.Done():
		log.Errorf("[Rollback]: Rollback timed out after %ds for %v on %v/%v",
			c.config.RollbackTimeoutSeconds, name, namespace, target)
		return false
	}
}
