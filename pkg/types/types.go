package types

import (
	"time"

	"github.com/google/uuid"
)

// BlastRadius classifies how much damage an experiment can cause.
// The ordering low < medium < high is used as a policy ceiling.
type BlastRadius string

const (
	BlastRadiusLow    BlastRadius = "low"
	BlastRadiusMedium BlastRadius = "medium"
	BlastRadiusHigh   BlastRadius = "high"
)

var blastRadiusLevel = map[BlastRadius]int{
	BlastRadiusLow:    0,
	BlastRadiusMedium: 1,
	BlastRadiusHigh:   2,
}

// Level returns the position of the blast radius in the severity order.
// Unknown values rank above high so that a malformed value never
// slips under a configured ceiling.
func (b BlastRadius) Level() int {
	if level, ok := blastRadiusLevel[b]; ok {
		return level
	}
	return len(blastRadiusLevel)
}

// Exceeds reports whether b is strictly more severe than the given ceiling.
func (b BlastRadius) Exceeds(ceiling BlastRadius) bool {
	return b.Level() > ceiling.Level()
}

// IsValid reports whether b is one of the declared blast radius values.
func (b BlastRadius) IsValid() bool {
	_, ok := blastRadiusLevel[b]
	return ok
}

// Category groups experiments by the kind of resource they disrupt.
type Category string

const (
	CategoryPod     Category = "pod"
	CategoryNetwork Category = "network"
	CategoryNode    Category = "node"
	CategoryIO      Category = "io"
	CategoryApp     Category = "app"
	CategoryConfig  Category = "config"
)

// Status is the lifecycle state of an experiment run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusRolledBack is declared for completeness but never assigned:
	// a successful rollback is reported as a failed record with
	// RollbackPerformed set.
	StatusRolledBack Status = "rolled_back"
	StatusSkipped    Status = "skipped"
)

// Descriptor is the static metadata of an experiment variant.
type Descriptor struct {
	Name        string      `json:"name"`
	Category    Category    `json:"category"`
	BlastRadius BlastRadius `json:"blast_radius"`
	Reversible  bool        `json:"reversible"`
	Description string      `json:"description"`
}

// Observation is one health sample captured by the observer while or
// after chaos is in effect.
type Observation map[string]interface{}

// Result is the outcome record of one attempted experiment. It is fully
// populated before being handed to a caller and not mutated afterwards.
type Result struct {
	RunID             string                 `json:"run_id"`
	ExperimentName    string                 `json:"experiment_name"`
	Status            Status                 `json:"status"`
	Target            string                 `json:"target"`
	Namespace         string                 `json:"namespace"`
	StartedAt         time.Time              `json:"started_at"`
	CompletedAt       *time.Time             `json:"completed_at"`
	DurationSeconds   float64                `json:"duration_seconds"`
	Observations      []Observation          `json:"observations"`
	Error             string                 `json:"error,omitempty"`
	RollbackPerformed bool                   `json:"rollback_performed"`
	DryRun            bool                   `json:"dry_run"`
	Details           map[string]interface{} `json:"details"`

	// RollbackData carries the typed rollback context produced by
	// Execute and consumed by Rollback of the same variant. It is the
	// only channel by which undo state survives the call boundary and
	// is deliberately kept off the wire.
	RollbackData interface{} `json:"-"`
}

// NewResult returns a result stamped with a fresh run id and start time.
func NewResult(experimentName, target, namespace string, status Status) *Result {
	return &Result{
		RunID:          uuid.New().String(),
		ExperimentName: experimentName,
		Status:         status,
		Target:         target,
		Namespace:      namespace,
		StartedAt:      time.Now().UTC(),
		Observations:   []Observation{},
		Details:        map[string]interface{}{},
	}
}

// Complete stamps the completion time and the elapsed duration since started.
func (r *Result) Complete(started time.Time) {
	now := time.Now().UTC()
	r.CompletedAt = &now
	r.DurationSeconds = now.Sub(started).Round(10 * time.Millisecond).Seconds()
}
