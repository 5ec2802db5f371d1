// Package node implements node-level chaos experiments: drain and cordon.
package node

import (
	"context"
	"fmt"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	policyv1 "k8s.io/api/policy/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// setUnschedulable flips the scheduling gate on a node.
func setUnschedulable(ctx context.Context, clientSets clients.ClientSets, nodeName string, unschedulable bool) error {
	node, err := clientSets.KubeClient.CoreV1().Nodes().Get(ctx, nodeName, v1.GetOptions{})
	if err != nil {
		return err
	}
	node.Spec.Unschedulable = unschedulable
	_, err = clientSets.KubeClient.CoreV1().Nodes().Update(ctx, node, v1.UpdateOptions{})
	return err
}

// Drain cordons a node and evicts its pods.
type Drain struct{}

func (Drain) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "node-drain",
		Category:    types.CategoryNode,
		BlastRadius: types.BlastRadiusHigh,
		Reversible:  true,
		Description: "Drain a node to evict all pods",
	}
}

func (d Drain) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := d.Describe().Name

	if err := setUnschedulable(ctx, clientSets, target, true); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Cordoned node %v", target)

	pods, err := clientSets.KubeClient.CoreV1().Pods("").List(ctx, v1.ListOptions{
		FieldSelector: "spec.nodeName=" + target,
	})
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Reason: err.Error()}
	}

	var evicted []string
	for _, pod := range pods.Items {
		if skipEviction(pod.OwnerReferences, pod.Annotations) {
			continue
		}
		eviction := &policyv1.Eviction{
			ObjectMeta: v1.ObjectMeta{Name: pod.Name, Namespace: pod.Namespace},
		}
		if err := clientSets.KubeClient.CoreV1().Pods(pod.Namespace).EvictV1(ctx, eviction); err != nil {
			log.Warnf("[Chaos]: Could not evict %v/%v: %v", pod.Namespace, pod.Name, err)
			continue
		}
		evicted = append(evicted, fmt.Sprintf("%s/%s", pod.Namespace, pod.Name))
	}
	log.Infof("[Chaos]: Drained node %v, evicted %v pods", target, len(evicted))

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["evicted_pods"] = evicted
	return result, nil
}

func (Drain) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	if err := setUnschedulable(ctx, clientSets, target, false); err != nil {
		return err
	}
	log.Infof("[Rollback]: Uncordoned node %v", target)
	return nil
}

func (Drain) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasNode(target)
}

// skipEviction filters daemonset-managed and mirror pods, which either
// cannot be evicted or come straight back.
func skipEviction(ownerRefs []v1.OwnerReference, annotations map[string]string) bool {
	for _, ref := range ownerRefs {
		if ref.Kind == "DaemonSet" {
			return true
		}
	}
	_, isMirror := annotations["kubernetes.io/config.mirror"]
	return isMirror
}

// Cordon marks a node unschedulable without touching running pods.
type Cordon struct{}

func (Cordon) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "node-cordon",
		Category:    types.CategoryNode,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Cordon a node to prevent new pod scheduling",
	}
}

func (c Cordon) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := c.Describe().Name
	if err := setUnschedulable(ctx, clientSets, target, true); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Cordoned node %v", target)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["action"] = "cordoned"
	return result, nil
}

func (Cordon) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	if err := setUnschedulable(ctx, clientSets, target, false); err != nil {
		return err
	}
	log.Infof("[Rollback]: Uncordoned node %v", target)
	return nil
}

func (Cordon) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasNode(target)
}
