package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kyokomi/emoji"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/chaosmonkey/chaosmonkey-go/experiments"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/environment"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/executor"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/observer"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/safety"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/telemetry"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
)

var (
	settingsPath string
	planPath     string
	outputPath   string
	dryRun       bool
	metricsAddr  string
	otelEndpoint string
)

func init() {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableSorting:         true,
		DisableLevelTruncation: true,
	})
}

func main() {
	root := &cobra.Command{
		Use:          "chaosmonkey",
		Short:        "Safety-gated chaos experiment engine for Kubernetes",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&settingsPath, "settings", "", "path to the YAML settings file")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all registered chaos experiments",
		RunE:  runList,
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a plan against policy and discovered topology",
		RunE:  runValidate,
	}
	validateCmd.Flags().StringVar(&planPath, "plan", "", "path to the YAML experiment plan")
	validateCmd.MarkFlagRequired("plan")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute an experiment plan",
		RunE:  runPlan,
	}
	runCmd.Flags().StringVar(&planPath, "plan", "", "path to the YAML experiment plan")
	runCmd.Flags().StringVar(&outputPath, "output", "", "write outcome records to this JSON file")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and simulate without mutating the cluster")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while running")
	runCmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", "", "OTLP gRPC endpoint for trace export")
	runCmd.MarkFlagRequired("plan")

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Discover cluster topology and print it as JSON",
		RunE:  runDiscover,
	}

	root.AddCommand(listCmd, validateCmd, runCmd, discoverCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runList(cmd *cobra.Command, args []string) error {
	catalog := experiments.NewCatalog()
	for _, descriptor := range catalog.ListAll() {
		fmt.Printf("%-22s %-8s blast_radius=%-7s reversible=%-5v %s\n",
			descriptor.Name, descriptor.Category, descriptor.BlastRadius,
			descriptor.Reversible, descriptor.Description)
	}
	return nil
}

func setup() (environment.Settings, clients.ClientSets, error) {
	settings, err := environment.Load(settingsPath)
	if err != nil {
		return settings, clients.ClientSets{}, err
	}
	clientSets := clients.ClientSets{}
	if err := clientSets.GenerateClientSetFromKubeConfig(settings.Kubernetes.Kubeconfig, settings.Kubernetes.Context); err != nil {
		return settings, clientSets, err
	}
	return settings, clientSets, nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	settings, clientSets, err := setup()
	if err != nil {
		return err
	}
	entries, err := types.LoadPlan(planPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	snapshot, err := topology.Discover(ctx, clientSets, topology.DiscoveryOptions{
		Namespaces:         settings.Target.Namespaces,
		ExcludedNamespaces: settings.Safety.ExcludedNamespaces,
	})
	if err != nil {
		return err
	}

	catalog := experiments.NewCatalog()
	controller := safety.NewController(settings.Safety, catalog)
	verdicts := controller.ValidatePlan(entries)

	for i, entry := range entries {
		verdict := verdicts[i]
		targetOK := false
		if exp, ok := catalog.Get(entry.Experiment); ok {
			targetOK = exp.ValidateTarget(entry.Target, entry.Scope(), snapshot)
		}
		marker := emoji.Sprint(":white_check_mark:")
		if !verdict.Approved || !targetOK {
			marker = emoji.Sprint(":no_entry:")
		}
		fmt.Printf("%s %s on %s/%s: approved=%v target_exists=%v (%s)\n",
			marker, entry.Experiment, entry.Scope(), entry.Target,
			verdict.Approved, targetOK, verdict.Reason)
	}
	return nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	settings, clientSets, err := setup()
	if err != nil {
		return err
	}
	entries, err := types.LoadPlan(planPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if otelEndpoint != "" {
		shutdown, err := telemetry.InitOTelSDK(ctx, otelEndpoint)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				log.Warnf("Unable to shut down tracing cleanly: %v", err)
			}
		}()
	}

	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Warnf("Metrics listener stopped: %v", err)
			}
		}()
	}

	catalog := experiments.NewCatalog()
	controller := safety.NewController(settings.Safety, catalog)
	engine := executor.New(catalog, controller, clientSets)

	effectiveDryRun := dryRun || settings.Safety.DryRun
	log.Infof("[Plan]: Executing %v entries (dry_run=%v)", len(entries), effectiveDryRun)
	results := engine.RunPlan(ctx, entries, effectiveDryRun)

	if !effectiveDryRun {
		attachObservations(ctx, clientSets, settings, results)
	}

	for _, result := range results {
		marker := emoji.Sprint(":thumbsup:")
		if result.Status == types.StatusFailed {
			marker = emoji.Sprint(":thumbsdown:")
		}
		fmt.Printf("%s %s on %s/%s: %s\n", marker, result.ExperimentName,
			result.Namespace, result.Target, result.Status)
	}

	if outputPath != "" {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(outputPath, data, 0o644); err != nil {
			return err
		}
		log.Infof("[Report]: Outcome records written to %v", outputPath)
	}

	// Return instead of exiting so deferred telemetry shutdown still runs.
	if failed := countFailed(results); failed > 0 {
		return fmt.Errorf("%d of %d experiments failed", failed, len(results))
	}
	return nil
}

func countFailed(results []*types.Result) int {
	failed := 0
	for _, result := range results {
		if result.Status == types.StatusFailed {
			failed++
		}
	}
	return failed
}

// attachObservations records one post-chaos health sample per namespace
// that saw a real execution.
func attachObservations(ctx context.Context, clientSets clients.ClientSets, settings environment.Settings, results []*types.Result) {
	monitor := &observer.HealthMonitor{
		Clients:  clientSets,
		Interval: time.Duration(settings.Observer.HealthCheckIntervalSeconds) * time.Second,
		Duration: time.Duration(settings.Observer.MonitorDurationSeconds) * time.Second,
	}
	samples := map[string][]types.Observation{}
	for _, result := range results {
		if result.Status != types.StatusCompleted && result.Status != types.StatusFailed {
			continue
		}
		if _, seen := samples[result.Namespace]; !seen {
			observations, err := monitor.CheckPodHealth(ctx, result.Namespace, "")
			if err != nil {
				log.Warnf("[Observer]: Unable to observe %v namespace: %v", result.Namespace, err)
				continue
			}
			samples[result.Namespace] = observations
		}
		result.Observations = append(result.Observations, samples[result.Namespace]...)
	}
}

func runDiscover(cmd *cobra.Command, args []string) error {
	settings, clientSets, err := setup()
	if err != nil {
		return err
	}
	snapshot, err := topology.Discover(cmd.Context(), clientSets, topology.DiscoveryOptions{
		Namespaces:         settings.Target.Namespaces,
		ExcludedNamespaces: settings.Safety.ExcludedNamespaces,
	})
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
