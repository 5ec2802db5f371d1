// Package app implements application-level chaos experiments.
package app

import (
	"context"
	"fmt"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	corev1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	errorRateEnv = "CHAOS_HTTP_ERROR_RATE"
	errorCodeEnv = "CHAOS_HTTP_ERROR_CODE"
)

// httpErrorRollback is the typed rollback context of HTTPErrorInjection.
type httpErrorRollback struct {
	Container string
}

// HTTPErrorInjection sets error-triggering env vars on a deployment so
// that instrumented applications start failing a share of requests.
type HTTPErrorInjection struct{}

func (HTTPErrorInjection) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "http-error-injection",
		Category:    types.CategoryApp,
		BlastRadius: types.BlastRadiusLow,
		Reversible:  true,
		Description: "Inject HTTP errors by setting error-triggering env vars on a deployment",
	}
}

func (h HTTPErrorInjection) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := h.Describe().Name
	errorRate := params.String("error_rate", "0.5")
	errorCode := params.Int("error_code", 500)

	deploy, err := clientSets.GetDeployment(ctx, namespace, target)
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}

	container := &deploy.Spec.Template.Spec.Containers[0]
	container.Env = append(container.Env,
		corev1.EnvVar{Name: errorRateEnv, Value: errorRate},
		corev1.EnvVar{Name: errorCodeEnv, Value: fmt.Sprintf("%d", errorCode)},
	)
	if _, err := clientSets.KubeClient.AppsV1().Deployments(namespace).Update(ctx, deploy, v1.UpdateOptions{}); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: HTTP error injection on %v/%v: rate=%v code=%v", namespace, target, errorRate, errorCode)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["error_rate"] = errorRate
	result.Details["error_code"] = errorCode
	result.RollbackData = &httpErrorRollback{Container: container.Name}
	return result, nil
}

func (HTTPErrorInjection) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	deploy, err := clientSets.GetDeployment(ctx, namespace, target)
	if err != nil {
		return err
	}

	container := &deploy.Spec.Template.Spec.Containers[0]
	var cleanEnv []corev1.EnvVar
	for _, env := range container.Env {
		if env.Name != errorRateEnv && env.Name != errorCodeEnv {
			cleanEnv = append(cleanEnv, env)
		}
	}
	if len(cleanEnv) == len(container.Env) {
		log.Warnf("[Rollback]: No chaos env vars present on %v/%v", namespace, target)
		return nil
	}
	container.Env = cleanEnv

	if _, err := clientSets.KubeClient.AppsV1().Deployments(namespace).Update(ctx, deploy, v1.UpdateOptions{}); err != nil {
		return err
	}
	log.Infof("[Rollback]: Removed HTTP error injection from %v/%v", namespace, target)
	return nil
}

func (HTTPErrorInjection) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasDeployment(namespace, target)
}
