// Package pod implements pod-level chaos experiments: kill, restart,
// and stress injection.
package pod

import (
	"context"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Kill deletes a pod to test restart resilience.
type Kill struct{}

func (Kill) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "pod-kill",
		Category:    types.CategoryPod,
		BlastRadius: types.BlastRadiusLow,
		Reversible:  true,
		Description: "Delete a pod to test restart resilience",
	}
}

func (k Kill) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	deleteOpts := v1.DeleteOptions{}
	if params.Int("grace_period_seconds", -1) >= 0 {
		gracePeriod := int64(params.Int("grace_period_seconds", 0))
		deleteOpts.GracePeriodSeconds = &gracePeriod
	}

	if err := clientSets.KubeClient.CoreV1().Pods(namespace).Delete(ctx, target, deleteOpts); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: k.Describe().Name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Killed pod %v/%v", namespace, target)

	result := types.NewResult(k.Describe().Name, target, namespace, types.StatusCompleted)
	result.Details["action"] = "deleted"
	return result, nil
}

func (Kill) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	// Controllers (Deployment, ReplicaSet) recreate the pod on their own.
	log.Infof("[Rollback]: Pod %v/%v will be recreated by its controller", namespace, target)
	return nil
}

func (Kill) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasPod(namespace, target)
}

// restartRollback is the typed rollback context of Restart.
type restartRollback struct {
	OriginalReplicas int32
}

// Restart bounces a deployment by scaling it to zero and back.
type Restart struct{}

func (Restart) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "pod-restart",
		Category:    types.CategoryPod,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Restart a deployment by scaling to 0 then back",
	}
}

func (r Restart) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := r.Describe().Name

	deploy, err := clientSets.GetDeployment(ctx, namespace, target)
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	originalReplicas := int32(1)
	if deploy.Spec.Replicas != nil {
		originalReplicas = *deploy.Spec.Replicas
	}

	if err := scaleDeployment(ctx, clientSets, namespace, target, 0); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Scaled %v/%v to 0", namespace, target)

	if err := scaleDeployment(ctx, clientSets, namespace, target, originalReplicas); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Scaled %v/%v back to %v", namespace, target, originalReplicas)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["original_replicas"] = originalReplicas
	result.RollbackData = &restartRollback{OriginalReplicas: originalReplicas}
	return result, nil
}

func (Restart) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	replicas := int32(1)
	if state, ok := data.(*restartRollback); ok {
		replicas = state.OriginalReplicas
	} else {
		log.Warnf("[Rollback]: No replica count captured for %v/%v, restoring to 1", namespace, target)
	}
	return scaleDeployment(ctx, clientSets, namespace, target, replicas)
}

func (Restart) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasDeployment(namespace, target)
}

func scaleDeployment(ctx context.Context, clientSets clients.ClientSets, namespace, name string, replicas int32) error {
	deploy, err := clientSets.KubeClient.AppsV1().Deployments(namespace).Get(ctx, name, v1.GetOptions{})
	if err != nil {
		return err
	}
	deploy.Spec.Replicas = &replicas
	_, err = clientSets.KubeClient.AppsV1().Deployments(namespace).Update(ctx, deploy, v1.UpdateOptions{})
	return err
}
