// Package environment loads engine settings from an optional YAML file
// with environment variable overrides, mirroring how the policy surface
// is configured in deployment manifests.
package environment

import (
	"os"
	"strconv"
	"strings"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/safety"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"gopkg.in/yaml.v2"
)

type KubernetesSettings struct {
	Kubeconfig string `yaml:"kubeconfig"`
	Context    string `yaml:"context"`
}

type TargetSettings struct {
	Namespaces     []string          `yaml:"namespaces"`
	LabelSelectors map[string]string `yaml:"label_selectors"`
}

type ObserverSettings struct {
	HealthCheckIntervalSeconds int `yaml:"health_check_interval_seconds"`
	MonitorDurationSeconds     int `yaml:"monitor_duration_seconds"`
}

// Settings is the full configuration surface of the engine.
type Settings struct {
	Kubernetes KubernetesSettings `yaml:"kubernetes"`
	Safety     safety.Config      `yaml:"safety"`
	Target     TargetSettings     `yaml:"target"`
	Observer   ObserverSettings   `yaml:"observer"`
}

// Default returns the shipped settings.
func Default() Settings {
	return Settings{
		Kubernetes: KubernetesSettings{Kubeconfig: os.Getenv("KUBECONFIG")},
		Safety:     safety.DefaultConfig(),
		Observer: ObserverSettings{
			HealthCheckIntervalSeconds: 5,
			MonitorDurationSeconds:     60,
		},
	}
}

// Load reads settings from path when non-empty, starting from the
// defaults, then applies environment variable overrides.
func Load(path string) (Settings, error) {
	settings := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return settings, cerrors.Generic{Phase: "Settings", Reason: err.Error()}
		}
		if err := yaml.Unmarshal(data, &settings); err != nil {
			return settings, cerrors.Generic{Phase: "Settings", Reason: err.Error()}
		}
	}

	applyOverrides(&settings)

	if !settings.Safety.MaxBlastRadius.IsValid() {
		return settings, cerrors.Generic{Phase: "Settings", Reason: "invalid max_blast_radius: " + string(settings.Safety.MaxBlastRadius)}
	}
	if settings.Safety.MaxConcurrentExperiments < 1 {
		return settings, cerrors.Generic{Phase: "Settings", Reason: "max_concurrent_experiments must be at least 1"}
	}
	if settings.Safety.RollbackTimeoutSeconds < 1 {
		return settings, cerrors.Generic{Phase: "Settings", Reason: "rollback_timeout_seconds must be positive"}
	}
	return settings, nil
}

func applyOverrides(settings *Settings) {
	settings.Kubernetes.Kubeconfig = Getenv("CHAOS_KUBECONFIG", settings.Kubernetes.Kubeconfig)
	settings.Kubernetes.Context = Getenv("CHAOS_KUBE_CONTEXT", settings.Kubernetes.Context)

	settings.Safety.MaxBlastRadius = types.BlastRadius(Getenv("CHAOS_MAX_BLAST_RADIUS", string(settings.Safety.MaxBlastRadius)))
	settings.Safety.MaxConcurrentExperiments = getenvInt("CHAOS_MAX_CONCURRENT_EXPERIMENTS", settings.Safety.MaxConcurrentExperiments)
	settings.Safety.RollbackTimeoutSeconds = getenvInt("CHAOS_ROLLBACK_TIMEOUT_SECONDS", settings.Safety.RollbackTimeoutSeconds)
	settings.Safety.DryRun = getenvBool("CHAOS_DRY_RUN", settings.Safety.DryRun)
	settings.Safety.AutoRollback = getenvBool("CHAOS_AUTO_ROLLBACK", settings.Safety.AutoRollback)

	if excluded := os.Getenv("CHAOS_EXCLUDED_NAMESPACES"); excluded != "" {
		settings.Safety.ExcludedNamespaces = strings.Split(excluded, ",")
	}
}

// Getenv returns the value of the given env variable or the fallback
// when unset or empty.
func Getenv(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func getenvInt(name string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return value
}

func getenvBool(name string, fallback bool) bool {
	value, err := strconv.ParseBool(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return value
}
