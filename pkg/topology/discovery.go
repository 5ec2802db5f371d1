package topology

import (
	"context"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/pkg/errors"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// DiscoveryOptions narrows what discovery scans.
type DiscoveryOptions struct {
	// Namespaces to scan. When empty, every namespace not excluded is scanned.
	Namespaces []string
	// ExcludedNamespaces are never scanned, mirroring the safety exclusion set.
	ExcludedNamespaces []string
	// LabelSelector restricts pod/deployment/service listing when set.
	LabelSelector string
}

// Discover builds a topology snapshot of the cluster.
func Discover(ctx context.Context, clients clients.ClientSets, opts DiscoveryOptions) (*Snapshot, error) {

	namespaces, err := targetNamespaces(ctx, clients, opts)
	if err != nil {
		return nil, err
	}

	snapshot := &Snapshot{}

	nodes, err := clients.KubeClient.CoreV1().Nodes().List(ctx, v1.ListOptions{})
	if err != nil {
		return nil, errors.Errorf("unable to list nodes, err: %v", err)
	}
	for _, node := range nodes.Items {
		snapshot.Nodes = append(snapshot.Nodes, node.Name)
	}

	for _, namespace := range namespaces {
		nsTopology, err := discoverNamespace(ctx, clients, namespace, opts.LabelSelector)
		if err != nil {
			return nil, err
		}
		snapshot.Namespaces = append(snapshot.Namespaces, *nsTopology)
		snapshot.Summary.TotalPods += len(nsTopology.Pods)
		snapshot.Summary.TotalDeployments += len(nsTopology.Deployments)
		snapshot.Summary.TotalServices += len(nsTopology.Services)
	}
	snapshot.Summary.NamespaceCount = len(snapshot.Namespaces)

	log.Infof("[Discovery]: Discovered %v namespaces, %v pods, %v deployments, %v services",
		snapshot.Summary.NamespaceCount, snapshot.Summary.TotalPods,
		snapshot.Summary.TotalDeployments, snapshot.Summary.TotalServices)

	return snapshot, nil
}

func targetNamespaces(ctx context.Context, clients clients.ClientSets, opts DiscoveryOptions) ([]string, error) {
	excluded := map[string]bool{}
	for _, namespace := range opts.ExcludedNamespaces {
		excluded[namespace] = true
	}

	if len(opts.Namespaces) != 0 {
		var namespaces []string
		for _, namespace := range opts.Namespaces {
			if !excluded[namespace] {
				namespaces = append(namespaces, namespace)
			}
		}
		return namespaces, nil
	}

	all, err := clients.KubeClient.CoreV1().Namespaces().List(ctx, v1.ListOptions{})
	if err != nil {
		return nil, errors.Errorf("unable to list namespaces, err: %v", err)
	}
	var namespaces []string
	for _, namespace := range all.Items {
		if !excluded[namespace.Name] {
			namespaces = append(namespaces, namespace.Name)
		}
	}
	return namespaces, nil
}

func discoverNamespace(ctx context.Context, clients clients.ClientSets, namespace, labelSelector string) (*NamespaceTopology, error) {
	nsTopology := &NamespaceTopology{Name: namespace}
	listOpts := v1.ListOptions{LabelSelector: labelSelector}

	pods, err := clients.KubeClient.CoreV1().Pods(namespace).List(ctx, listOpts)
	if err != nil {
		return nil, errors.Errorf("unable to list pods in %v namespace, err: %v", namespace, err)
	}
	for _, pod := range pods.Items {
		nsTopology.Pods = append(nsTopology.Pods, PodInfo{
			Name:   pod.Name,
			Node:   pod.Spec.NodeName,
			Phase:  string(pod.Status.Phase),
			Labels: pod.Labels,
		})
	}

	deployments, err := clients.KubeClient.AppsV1().Deployments(namespace).List(ctx, listOpts)
	if err != nil {
		return nil, errors.Errorf("unable to list deployments in %v namespace, err: %v", namespace, err)
	}
	for _, deploy := range deployments.Items {
		replicas := int32(0)
		if deploy.Spec.Replicas != nil {
			replicas = *deploy.Spec.Replicas
		}
		nsTopology.Deployments = append(nsTopology.Deployments, DeploymentInfo{
			Name:     deploy.Name,
			Replicas: replicas,
			Ready:    deploy.Status.ReadyReplicas,
		})
	}

	services, err := clients.KubeClient.CoreV1().Services(namespace).List(ctx, listOpts)
	if err != nil {
		return nil, errors.Errorf("unable to list services in %v namespace, err: %v", namespace, err)
	}
	for _, svc := range services.Items {
		nsTopology.Services = append(nsTopology.Services, ServiceInfo{
			Name: svc.Name,
			Type: string(svc.Spec.Type),
		})
	}

	configmaps, err := clients.KubeClient.CoreV1().ConfigMaps(namespace).List(ctx, v1.ListOptions{})
	if err != nil {
		return nil, errors.Errorf("unable to list configmaps in %v namespace, err: %v", namespace, err)
	}
	for _, cm := range configmaps.Items {
		var keys []string
		for key := range cm.Data {
			keys = append(keys, key)
		}
		nsTopology.ConfigMaps = append(nsTopology.ConfigMaps, ConfigMapInfo{Name: cm.Name, Keys: keys})
	}

	secrets, err := clients.KubeClient.CoreV1().Secrets(namespace).List(ctx, v1.ListOptions{})
	if err != nil {
		return nil, errors.Errorf("unable to list secrets in %v namespace, err: %v", namespace, err)
	}
	for _, secret := range secrets.Items {
		nsTopology.Secrets = append(nsTopology.Secrets, secret.Name)
	}

	return nsTopology, nil
}
