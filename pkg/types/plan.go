package types

import (
	"os"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"gopkg.in/yaml.v2"
)

// DefaultNamespace is assumed when a plan entry does not name one.
const DefaultNamespace = "default"

// Params holds the variant-specific parameters of a plan entry. The
// engine treats them as opaque; variants read them through the typed
// accessors below.
type Params map[string]interface{}

// Int returns the integer value for key, or fallback when the key is
// absent or not a number. YAML decodes numbers as int or float64
// depending on their spelling, so both are accepted.
func (p Params) Int(key string, fallback int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}

// String returns the string value for key, or fallback when the key is
// absent or not a string.
func (p Params) String(key, fallback string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return fallback
}

// StringMap returns the map value for key as string→string, or fallback
// when absent. Non-string members are dropped.
func (p Params) StringMap(key string, fallback map[string]string) map[string]string {
	raw, ok := p[key]
	if !ok {
		return fallback
	}
	out := map[string]string{}
	switch m := raw.(type) {
	case map[string]interface{}:
		for k, v := range m {
			if s, ok := v.(string); ok {
				out[k] = s
			}
		}
	case map[interface{}]interface{}:
		for k, v := range m {
			ks, kok := k.(string)
			vs, vok := v.(string)
			if kok && vok {
				out[ks] = vs
			}
		}
	default:
		return fallback
	}
	return out
}

// PlanEntry is one proposed disruptive action, produced by an external
// planner and consumed read-only by the executor.
type PlanEntry struct {
	Experiment string `yaml:"experiment" json:"experiment"`
	Target     string `yaml:"target" json:"target"`
	Namespace  string `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	Params     Params `yaml:"params,omitempty" json:"params,omitempty"`
}

// Scope returns the namespace of the entry, defaulting when unset.
func (e PlanEntry) Scope() string {
	if e.Namespace == "" {
		return DefaultNamespace
	}
	return e.Namespace
}

// ParsePlan decodes a YAML experiment plan.
func ParsePlan(data []byte) ([]PlanEntry, error) {
	var entries []PlanEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, cerrors.PlanParse{Reason: err.Error()}
	}
	for i, entry := range entries {
		if entry.Experiment == "" {
			return nil, cerrors.PlanParse{Entry: i + 1, Reason: "missing experiment name"}
		}
		if entry.Target == "" {
			return nil, cerrors.PlanParse{Entry: i + 1, Reason: "missing target"}
		}
	}
	return entries, nil
}

// LoadPlan reads and decodes a YAML experiment plan file.
func LoadPlan(path string) ([]PlanEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, cerrors.PlanParse{Reason: err.Error()}
	}
	return ParsePlan(data)
}
