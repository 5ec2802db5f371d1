package network

import (
	"context"
	"testing"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestPartitionExecuteCreatesDenyAllPolicy(t *testing.T) {
	clientSets := clients.ClientSets{KubeClient: fake.NewSimpleClientset()}

	result, err := Partition{}.Execute(context.Background(), "web", "prod", clientSets, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, result.Status)
	assert.Equal(t, "chaosmonkey-partition", result.Details["policy_name"])

	policy, err := clientSets.KubeClient.NetworkingV1().NetworkPolicies("prod").Get(context.Background(), "chaosmonkey-partition", v1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"app": "web"}, policy.Spec.PodSelector.MatchLabels)
	assert.ElementsMatch(t, []networkingv1.PolicyType{
		networkingv1.PolicyTypeIngress,
		networkingv1.PolicyTypeEgress,
	}, policy.Spec.PolicyTypes)
	assert.Empty(t, policy.Spec.Ingress)
	assert.Empty(t, policy.Spec.Egress)
}

func TestPartitionExecuteCustomSelector(t *testing.T) {
	clientSets := clients.ClientSets{KubeClient: fake.NewSimpleClientset()}
	params := types.Params{"target_labels": map[interface{}]interface{}{"tier": "backend"}}

	_, err := Partition{}.Execute(context.Background(), "web", "prod", clientSets, params)
	require.NoError(t, err)

	policy, err := clientSets.KubeClient.NetworkingV1().NetworkPolicies("prod").Get(context.Background(), "chaosmonkey-partition", v1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"tier": "backend"}, policy.Spec.PodSelector.MatchLabels)
}

func TestPartitionRollbackDeletesPolicy(t *testing.T) {
	clientSets := clients.ClientSets{
		KubeClient: fake.NewSimpleClientset(&networkingv1.NetworkPolicy{
			ObjectMeta: v1.ObjectMeta{Name: "chaosmonkey-partition", Namespace: "prod"},
		}),
	}

	err := Partition{}.Rollback(context.Background(), "web", "prod", clientSets, &partitionRollback{PolicyName: "chaosmonkey-partition"})
	require.NoError(t, err)

	_, getErr := clientSets.KubeClient.NetworkingV1().NetworkPolicies("prod").Get(context.Background(), "chaosmonkey-partition", v1.GetOptions{})
	assert.True(t, apierrors.IsNotFound(getErr))
}

func TestPartitionRollbackToleratesMissingPolicy(t *testing.T) {
	clientSets := clients.ClientSets{KubeClient: fake.NewSimpleClientset()}
	err := Partition{}.Rollback(context.Background(), "web", "prod", clientSets, nil)
	assert.NoError(t, err)
}

func TestPartitionValidateTargetNeedsPods(t *testing.T) {
	snapshot := &topology.Snapshot{
		Namespaces: []topology.NamespaceTopology{
			{Name: "prod", Pods: []topology.PodInfo{{Name: "web-7f"}}},
			{Name: "empty"},
		},
	}

	assert.True(t, Partition{}.ValidateTarget("web", "prod", snapshot))
	assert.False(t, Partition{}.ValidateTarget("web", "empty", snapshot))
	assert.False(t, Partition{}.ValidateTarget("web", "missing", snapshot))
}

func corednsConfigMap(corefile string) *corev1.ConfigMap {
	return &corev1.ConfigMap{
		ObjectMeta: v1.ObjectMeta{Name: "coredns", Namespace: "kube-system"},
		Data:       map[string]string{"Corefile": corefile},
	}
}

const sampleCorefile = `.:53 {
    errors
    health
    ready
    kubernetes cluster.local
}`

func TestDNSFailureExecuteRewritesCorefile(t *testing.T) {
	clientSets := clients.ClientSets{
		KubeClient: fake.NewSimpleClientset(corednsConfigMap(sampleCorefile)),
	}

	result, err := DNSFailure{}.Execute(context.Background(), "payments", "prod", clientSets, nil)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, result.Status)

	cm, err := clientSets.KubeClient.CoreV1().ConfigMaps("kube-system").Get(context.Background(), "coredns", v1.GetOptions{})
	require.NoError(t, err)
	assert.Contains(t, cm.Data["Corefile"], "rewrite name payments.prod.svc.cluster.local nxdomain.invalid")
	assert.Contains(t, cm.Data["Corefile"], "ready")

	state, ok := result.RollbackData.(*dnsRollback)
	require.True(t, ok)
	assert.Equal(t, sampleCorefile, state.OriginalCorefile)
}

func TestDNSFailureExecuteSkipsWithoutCorefile(t *testing.T) {
	tests := []struct {
		name string
		cm   *corev1.ConfigMap
	}{
		{
			name: "nil data",
			cm: &corev1.ConfigMap{
				ObjectMeta: v1.ObjectMeta{Name: "coredns", Namespace: "kube-system"},
			},
		},
		{
			name: "missing corefile key",
			cm: &corev1.ConfigMap{
				ObjectMeta: v1.ObjectMeta{Name: "coredns", Namespace: "kube-system"},
				Data:       map[string]string{"other": "value"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clientSets := clients.ClientSets{KubeClient: fake.NewSimpleClientset(tt.cm)}

			result, err := DNSFailure{}.Execute(context.Background(), "payments", "prod", clientSets, nil)
			require.NoError(t, err)
			assert.Equal(t, types.StatusSkipped, result.Status)
			assert.Equal(t, "CoreDNS ConfigMap has no Corefile to rewrite", result.Error)
			assert.Nil(t, result.RollbackData)
		})
	}
}

func TestDNSFailureRollbackRestoresCorefile(t *testing.T) {
	clientSets := clients.ClientSets{
		KubeClient: fake.NewSimpleClientset(corednsConfigMap("mangled")),
	}

	err := DNSFailure{}.Rollback(context.Background(), "payments", "prod", clientSets, &dnsRollback{OriginalCorefile: sampleCorefile})
	require.NoError(t, err)

	cm, err := clientSets.KubeClient.CoreV1().ConfigMaps("kube-system").Get(context.Background(), "coredns", v1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, sampleCorefile, cm.Data["Corefile"])
}

func TestDNSFailureRollbackRestoresIntoNilData(t *testing.T) {
	clientSets := clients.ClientSets{
		KubeClient: fake.NewSimpleClientset(&corev1.ConfigMap{
			ObjectMeta: v1.ObjectMeta{Name: "coredns", Namespace: "kube-system"},
		}),
	}

	err := DNSFailure{}.Rollback(context.Background(), "payments", "prod", clientSets, &dnsRollback{OriginalCorefile: sampleCorefile})
	require.NoError(t, err)

	cm, err := clientSets.KubeClient.CoreV1().ConfigMaps("kube-system").Get(context.Background(), "coredns", v1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, sampleCorefile, cm.Data["Corefile"])
}

func TestDNSFailureRollbackWithoutContextIsNoOp(t *testing.T) {
	err := DNSFailure{}.Rollback(context.Background(), "payments", "prod", clients.ClientSets{}, nil)
	assert.NoError(t, err)
}

func TestDescriptors(t *testing.T) {
	for _, descriptor := range []types.Descriptor{
		Latency{}.Describe(),
		PacketLoss{}.Describe(),
		Partition{}.Describe(),
		DNSFailure{}.Describe(),
	} {
		assert.NotEmpty(t, descriptor.Name)
		assert.Equal(t, types.CategoryNetwork, descriptor.Category)
		assert.True(t, descriptor.BlastRadius.IsValid())
	}
}
