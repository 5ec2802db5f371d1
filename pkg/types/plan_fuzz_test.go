package types

import (
	"testing"

	fuzz "github.com/AdaLogics/go-fuzz-headers"
)

func FuzzParsePlan(f *testing.F) {
	f.Add([]byte("- experiment: pod-kill\n  target: web-7f\n"))
	f.Add([]byte("- experiment: dns-failure\n  target: api\n  namespace: prod\n"))

	f.Fuzz(func(t *testing.T, data []byte) {
		fuzzConsumer := fuzz.NewConsumer(data)
		planBytes, err := fuzzConsumer.GetBytes()
		if err != nil {
			return
		}

		entries, err := ParsePlan(planBytes)
		if err != nil {
			return
		}
		for _, entry := range entries {
			if entry.Experiment == "" {
				t.Errorf("Parsed entry with empty experiment name")
			}
			if entry.Target == "" {
				t.Errorf("Parsed entry with empty target")
			}
			if entry.Scope() == "" {
				t.Errorf("Parsed entry with empty scope")
			}
		}
	})
}
