package network

import (
	"context"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// partitionPolicyName is the deny-all NetworkPolicy installed by Partition.
const partitionPolicyName = "chaosmonkey-partition"

// partitionRollback is the typed rollback context of Partition.
type partitionRollback struct {
	PolicyName string
}

// Partition isolates pods with a deny-all NetworkPolicy.
type Partition struct{}

func (Partition) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "network-partition",
		Category:    types.CategoryNetwork,
		BlastRadius: types.BlastRadiusHigh,
		Reversible:  true,
		Description: "Create a network partition using NetworkPolicy",
	}
}

func (p Partition) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := p.Describe().Name
	targetLabels := params.StringMap("target_labels", map[string]string{"app": target})

	policy := &networkingv1.NetworkPolicy{
		ObjectMeta: v1.ObjectMeta{Name: partitionPolicyName, Namespace: namespace},
		Spec: networkingv1.NetworkPolicySpec{
			PodSelector: v1.LabelSelector{MatchLabels: targetLabels},
			PolicyTypes: []networkingv1.PolicyType{
				networkingv1.PolicyTypeIngress,
				networkingv1.PolicyTypeEgress,
			},
			// empty rule sets deny all ingress and egress
			Ingress: []networkingv1.NetworkPolicyIngressRule{},
			Egress:  []networkingv1.NetworkPolicyEgressRule{},
		},
	}
	if _, err := clientSets.KubeClient.NetworkingV1().NetworkPolicies(namespace).Create(ctx, policy, v1.CreateOptions{}); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.InfoWithValues("[Chaos]: Network partition applied", map[string]interface{}{
		"Namespace": namespace,
		"Selector":  targetLabels,
	})

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["policy_name"] = partitionPolicyName
	result.Details["target_labels"] = targetLabels
	result.RollbackData = &partitionRollback{PolicyName: partitionPolicyName}
	return result, nil
}

func (Partition) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	policyName := partitionPolicyName
	if state, ok := data.(*partitionRollback); ok {
		policyName = state.PolicyName
	}
	err := clientSets.KubeClient.NetworkingV1().NetworkPolicies(namespace).Delete(ctx, policyName, v1.DeleteOptions{})
	if apierrors.IsNotFound(err) {
		return nil
	}
	if err == nil {
		log.Infof("[Rollback]: Removed network partition policy from %v", namespace)
	}
	return err
}

func (Partition) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	ns := snapshot.Namespace(namespace)
	return ns != nil && len(ns.Pods) > 0
}
