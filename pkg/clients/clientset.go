package clients

import (
	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// ClientSets is a collection of clientSets and kubeConfig needed
type ClientSets struct {
	KubeClient    kubernetes.Interface
	DynamicClient dynamic.Interface
	KubeConfig    *rest.Config
}

// GenerateClientSetFromKubeConfig will generate the ClientSets as well as the KubeConfig.
// It uses the in-cluster config when kubeconfigPath is empty.
func (clientSets *ClientSets) GenerateClientSetFromKubeConfig(kubeconfigPath, kubeContext string) error {

	config, err := getKubeConfig(kubeconfigPath, kubeContext)
	if err != nil {
		return cerrors.KubeClient{Operation: "load kubeconfig", Reason: err.Error()}
	}
	k8sClientSet, err := kubernetes.NewForConfig(config)
	if err != nil {
		return cerrors.KubeClient{Operation: "generate kubernetes clientset", Reason: err.Error()}
	}
	dynamicClientSet, err := dynamic.NewForConfig(config)
	if err != nil {
		return cerrors.KubeClient{Operation: "generate dynamic clientset", Reason: err.Error()}
	}
	clientSets.KubeClient = k8sClientSet
	clientSets.DynamicClient = dynamicClientSet
	clientSets.KubeConfig = config
	return nil
}

// getKubeConfig setup the config for access cluster resource
func getKubeConfig(kubeconfigPath, kubeContext string) (*rest.Config, error) {
	if kubeconfigPath == "" {
		return rest.InClusterConfig()
	}
	loadingRules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
	return clientcmd.NewNonInteractiveDeferredLoadingClientConfig(loadingRules, overrides).ClientConfig()
}
