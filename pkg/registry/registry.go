// Package registry provides the experiment catalog: an explicit,
// ahead-of-time registration table mapping experiment names to their
// implementations. A catalog is an owned value passed by reference to
// the safety controller and the executor; there is no process-wide
// discovery scan.
package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"github.com/pkg/errors"
)

// Experiment is the capability set every chaos experiment variant
// implements.
type Experiment interface {
	// Execute performs the disruptive action against the target. The
	// returned record carries, in RollbackData, whatever typed state is
	// needed to undo the action. Unrecoverable resource-API failures are
	// returned as errors and turned into failed records by the executor.
	Execute(ctx context.Context, target, namespace string, clients clients.ClientSets, params types.Params) (*types.Result, error)

	// Rollback best-effort reverses a previous Execute using the typed
	// context it produced. A nil or unexpected context degrades to a
	// logged no-op; Rollback must be safe to call after a partial failure.
	Rollback(ctx context.Context, target, namespace string, clients clients.ClientSets, data interface{}) error

	// ValidateTarget is a pure predicate checking that the target exists
	// and is of the right kind within the given topology snapshot.
	ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool

	// Describe returns the static metadata of the variant.
	Describe() types.Descriptor
}

// Catalog maps experiment names to implementations.
type Catalog struct {
	mu          sync.RWMutex
	experiments map[string]Experiment
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{experiments: map[string]Experiment{}}
}

// Register adds an experiment to the catalog. A duplicate name is a hard
// error so that one variant can never silently shadow another.
func (c *Catalog) Register(exp Experiment) error {
	name := exp.Describe().Name
	if name == "" {
		return errors.New("experiment has an empty name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.experiments[name]; exists {
		return errors.Errorf("experiment '%s' is already registered", name)
	}
	c.experiments[name] = exp
	return nil
}

// MustRegister registers an experiment and panics on a duplicate name.
// Intended for the built-in registration table, where a duplicate is a
// programmer error.
func (c *Catalog) MustRegister(exps ...Experiment) {
	for _, exp := range exps {
		if err := c.Register(exp); err != nil {
			panic(err)
		}
	}
}

// Get returns the experiment registered under name. The second return
// value reports whether the name is known; an unknown name is not an error.
func (c *Catalog) Get(name string) (Experiment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	exp, ok := c.experiments[name]
	return exp, ok
}

// ListAll returns the descriptor of every registered experiment, sorted
// by name.
func (c *Catalog) ListAll() []types.Descriptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	descriptors := make([]types.Descriptor, 0, len(c.experiments))
	for _, exp := range c.experiments {
		descriptors = append(descriptors, exp.Describe())
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// ListNames returns the sorted names of all registered experiments.
func (c *Catalog) ListNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.experiments))
	for name := range c.experiments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
