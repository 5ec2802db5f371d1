// Package observer samples application health around chaos injection and
// produces the observation sequence attached to outcome records.
package observer

import (
	"context"
	"net/http"
	"time"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"github.com/pkg/errors"
	corev1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// HealthMonitor collects pod health snapshots from a namespace.
type HealthMonitor struct {
	Clients  clients.ClientSets
	Interval time.Duration
	Duration time.Duration
}

// CheckPodHealth returns one observation per pod in the namespace,
// optionally filtered by label selector.
func (m *HealthMonitor) CheckPodHealth(ctx context.Context, namespace, labelSelector string) ([]types.Observation, error) {
	pods, err := m.Clients.KubeClient.CoreV1().Pods(namespace).List(ctx, v1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, errors.Errorf("unable to list pods in %v namespace, err: %v", namespace, err)
	}

	observations := make([]types.Observation, 0, len(pods.Items))
	for _, pod := range pods.Items {
		ready := len(pod.Status.ContainerStatuses) > 0
		restarts := int32(0)
		for _, status := range pod.Status.ContainerStatuses {
			if !status.Ready {
				ready = false
			}
			restarts += status.RestartCount
		}
		observations = append(observations, types.Observation{
			"name":          pod.Name,
			"namespace":     namespace,
			"phase":         string(pod.Status.Phase),
			"ready":         ready,
			"restart_count": restarts,
		})
	}
	return observations, nil
}

// CheckEndpoint probes an HTTP endpoint and reports status and latency.
// Probe failures are reported as unhealthy observations, not errors.
func (m *HealthMonitor) CheckEndpoint(ctx context.Context, url string) types.Observation {
	started := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return types.Observation{"url": url, "healthy": false, "error": err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	latencyMS := float64(time.Since(started).Microseconds()) / 1000
	if err != nil {
		return types.Observation{
			"url":        url,
			"healthy":    false,
			"latency_ms": latencyMS,
			"error":      err.Error(),
		}
	}
	defer resp.Body.Close()
	return types.Observation{
		"url":         url,
		"status_code": resp.StatusCode,
		"latency_ms":  latencyMS,
		"healthy":     resp.StatusCode < http.StatusInternalServerError,
	}
}

// MonitorExperiment samples pod health at the configured interval for the
// configured duration, returning one summarized observation per sample.
func (m *HealthMonitor) MonitorExperiment(ctx context.Context, namespace, labelSelector string) []types.Observation {
	var samples []types.Observation

	interval := m.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	deadline := time.Now().Add(m.Duration)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		podHealth, err := m.CheckPodHealth(ctx, namespace, labelSelector)
		if err != nil {
			log.Warnf("[Observer]: Health check failed: %v", err)
		} else {
			samples = append(samples, summarize(podHealth))
		}

		if time.Now().After(deadline) {
			return samples
		}
		select {
		case <-ctx.Done():
			return samples
		case <-ticker.C:
		}
	}
}

func summarize(podHealth []types.Observation) types.Observation {
	total := len(podHealth)
	readyCount := 0
	runningCount := 0
	for _, pod := range podHealth {
		if ready, ok := pod["ready"].(bool); ok && ready {
			readyCount++
		}
		if phase, ok := pod["phase"].(string); ok && phase == string(corev1.PodRunning) {
			runningCount++
		}
	}
	return types.Observation{
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"total_pods":   total,
		"ready_pods":   readyCount,
		"running_pods": runningCount,
	}
}
