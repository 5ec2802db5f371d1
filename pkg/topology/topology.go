// Package topology holds the cluster snapshot consumed by plan-time
// target validation. The snapshot is built once per discovery pass and
// may be stale by execution time; experiments do not re-validate.
package topology

type PodInfo struct {
	Name   string            `json:"name"`
	Node   string            `json:"node,omitempty"`
	Phase  string            `json:"phase,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

type DeploymentInfo struct {
	Name     string `json:"name"`
	Replicas int32  `json:"replicas"`
	Ready    int32  `json:"ready"`
}

type ServiceInfo struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type ConfigMapInfo struct {
	Name string   `json:"name"`
	Keys []string `json:"keys,omitempty"`
}

// NamespaceTopology is the discovered content of a single namespace.
type NamespaceTopology struct {
	Name        string           `json:"name"`
	Pods        []PodInfo        `json:"pods"`
	Deployments []DeploymentInfo `json:"deployments"`
	Services    []ServiceInfo    `json:"services"`
	ConfigMaps  []ConfigMapInfo  `json:"configmaps"`
	Secrets     []string         `json:"secrets"`
}

type Summary struct {
	NamespaceCount   int `json:"namespace_count"`
	TotalPods        int `json:"total_pods"`
	TotalDeployments int `json:"total_deployments"`
	TotalServices    int `json:"total_services"`
}

// Snapshot is the full discovered cluster topology.
type Snapshot struct {
	Nodes      []string            `json:"nodes"`
	Namespaces []NamespaceTopology `json:"namespaces"`
	Summary    Summary             `json:"summary"`
}

// Namespace returns the topology of the named namespace, or nil when the
// namespace was not discovered.
func (s *Snapshot) Namespace(name string) *NamespaceTopology {
	if s == nil {
		return nil
	}
	for i := range s.Namespaces {
		if s.Namespaces[i].Name == name {
			return &s.Namespaces[i]
		}
	}
	return nil
}

// HasPod reports whether the named pod exists in the given namespace.
func (s *Snapshot) HasPod(namespace, name string) bool {
	ns := s.Namespace(namespace)
	if ns == nil {
		return false
	}
	for _, pod := range ns.Pods {
		if pod.Name == name {
			return true
		}
	}
	return false
}

// HasDeployment reports whether the named deployment exists in the given namespace.
func (s *Snapshot) HasDeployment(namespace, name string) bool {
	ns := s.Namespace(namespace)
	if ns == nil {
		return false
	}
	for _, deploy := range ns.Deployments {
		if deploy.Name == name {
			return true
		}
	}
	return false
}

// HasService reports whether the named service exists in the given namespace.
func (s *Snapshot) HasService(namespace, name string) bool {
	ns := s.Namespace(namespace)
	if ns == nil {
		return false
	}
	for _, svc := range ns.Services {
		if svc.Name == name {
			return true
		}
	}
	return false
}

// HasConfigMap reports whether the named configmap exists in the given namespace.
func (s *Snapshot) HasConfigMap(namespace, name string) bool {
	ns := s.Namespace(namespace)
	if ns == nil {
		return false
	}
	for _, cm := range ns.ConfigMaps {
		if cm.Name == name {
			return true
		}
	}
	return false
}

// HasSecret reports whether the named secret exists in the given namespace.
func (s *Snapshot) HasSecret(namespace, name string) bool {
	ns := s.Namespace(namespace)
	if ns == nil {
		return false
	}
	for _, secret := range ns.Secrets {
		if secret == name {
			return true
		}
	}
	return false
}

// HasNode reports whether the named node was discovered, either in the
// node list or as the scheduling host of any pod.
func (s *Snapshot) HasNode(name string) bool {
	if s == nil {
		return false
	}
	for _, node := range s.Nodes {
		if node == name {
			return true
		}
	}
	for _, ns := range s.Namespaces {
		for _, pod := range ns.Pods {
			if pod.Node == name {
				return true
			}
		}
	}
	return false
}
