package topology

import (
	"context"
	"testing"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Nodes: []string{"worker-1"},
		Namespaces: []NamespaceTopology{
			{
				Name:        "prod",
				Pods:        []PodInfo{{Name: "web-7f", Node: "worker-2"}},
				Deployments: []DeploymentInfo{{Name: "web", Replicas: 3}},
				Services:    []ServiceInfo{{Name: "web-svc", Type: "ClusterIP"}},
				ConfigMaps:  []ConfigMapInfo{{Name: "app-config"}},
				Secrets:     []string{"db-credentials"},
			},
		},
	}
}

func TestSnapshotLookups(t *testing.T) {
	snapshot := sampleSnapshot()

	assert.True(t, snapshot.HasPod("prod", "web-7f"))
	assert.False(t, snapshot.HasPod("prod", "missing"))
	assert.False(t, snapshot.HasPod("staging", "web-7f"))

	assert.True(t, snapshot.HasDeployment("prod", "web"))
	assert.False(t, snapshot.HasDeployment("prod", "api"))

	assert.True(t, snapshot.HasService("prod", "web-svc"))
	assert.True(t, snapshot.HasConfigMap("prod", "app-config"))
	assert.True(t, snapshot.HasSecret("prod", "db-credentials"))
	assert.False(t, snapshot.HasSecret("prod", "other"))

	assert.True(t, snapshot.HasNode("worker-1"))
	assert.True(t, snapshot.HasNode("worker-2"), "pod hosts count as nodes")
	assert.False(t, snapshot.HasNode("worker-9"))

	assert.Nil(t, snapshot.Namespace("staging"))
	require.NotNil(t, snapshot.Namespace("prod"))
	assert.Equal(t, "prod", snapshot.Namespace("prod").Name)
}

func TestDiscover(t *testing.T) {
	replicas := int32(3)
	clientSets := clients.ClientSets{
		KubeClient: fake.NewSimpleClientset(
			&corev1.Node{ObjectMeta: v1.ObjectMeta{Name: "worker-1"}},
			&corev1.Namespace{ObjectMeta: v1.ObjectMeta{Name: "prod"}},
			&corev1.Namespace{ObjectMeta: v1.ObjectMeta{Name: "kube-system"}},
			&corev1.Pod{
				ObjectMeta: v1.ObjectMeta{Name: "web-7f", Namespace: "prod", Labels: map[string]string{"app": "web"}},
				Spec:       corev1.PodSpec{NodeName: "worker-1"},
				Status:     corev1.PodStatus{Phase: corev1.PodRunning},
			},
			&appsv1.Deployment{
				ObjectMeta: v1.ObjectMeta{Name: "web", Namespace: "prod"},
				Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
				Status:     appsv1.DeploymentStatus{ReadyReplicas: 3},
			},
			&corev1.Service{
				ObjectMeta: v1.ObjectMeta{Name: "web-svc", Namespace: "prod"},
				Spec:       corev1.ServiceSpec{Type: corev1.ServiceTypeClusterIP},
			},
			&corev1.ConfigMap{
				ObjectMeta: v1.ObjectMeta{Name: "app-config", Namespace: "prod"},
				Data:       map[string]string{"key": "value"},
			},
			&corev1.Secret{ObjectMeta: v1.ObjectMeta{Name: "db-credentials", Namespace: "prod"}},
		),
	}

	snapshot, err := Discover(context.Background(), clientSets, DiscoveryOptions{
		ExcludedNamespaces: []string{"kube-system"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"worker-1"}, snapshot.Nodes)
	assert.Equal(t, 1, snapshot.Summary.NamespaceCount)
	assert.Equal(t, 1, snapshot.Summary.TotalPods)
	assert.Equal(t, 1, snapshot.Summary.TotalDeployments)
	assert.Equal(t, 1, snapshot.Summary.TotalServices)

	prod := snapshot.Namespace("prod")
	require.NotNil(t, prod)
	require.Len(t, prod.Pods, 1)
	assert.Equal(t, "web-7f", prod.Pods[0].Name)
	assert.Equal(t, "worker-1", prod.Pods[0].Node)
	assert.Equal(t, "Running", prod.Pods[0].Phase)
	require.Len(t, prod.Deployments, 1)
	assert.Equal(t, int32(3), prod.Deployments[0].Replicas)
	assert.Equal(t, int32(3), prod.Deployments[0].Ready)
	assert.Equal(t, []ConfigMapInfo{{Name: "app-config", Keys: []string{"key"}}}, prod.ConfigMaps)
	assert.Equal(t, []string{"db-credentials"}, prod.Secrets)

	assert.Nil(t, snapshot.Namespace("kube-system"), "excluded namespaces are not scanned")
}

func TestDiscoverExplicitNamespaces(t *testing.T) {
	clientSets := clients.ClientSets{
		KubeClient: fake.NewSimpleClientset(
			&corev1.Namespace{ObjectMeta: v1.ObjectMeta{Name: "prod"}},
			&corev1.Namespace{ObjectMeta: v1.ObjectMeta{Name: "staging"}},
			&corev1.Pod{ObjectMeta: v1.ObjectMeta{Name: "api-1", Namespace: "staging"}},
		),
	}

	snapshot, err := Discover(context.Background(), clientSets, DiscoveryOptions{
		Namespaces: []string{"staging"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Summary.NamespaceCount)
	assert.True(t, snapshot.HasPod("staging", "api-1"))
	assert.Nil(t, snapshot.Namespace("prod"))
}
