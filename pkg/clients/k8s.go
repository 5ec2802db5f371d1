package clients

import (
	"context"
	"time"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/utils/retry"
)

var (
	defaultRetries = 3
	defaultDelay   = 2
)

// GetPod fetches a pod, retrying transient API failures.
func (clients *ClientSets) GetPod(ctx context.Context, namespace, name string) (*corev1.Pod, error) {
	var (
		pod *corev1.Pod
		err error
	)

	if err := retry.
		Times(uint(defaultRetries)).
		Wait(time.Duration(defaultDelay) * time.Second).
		Try(func(attempt uint) error {
			pod, err = clients.KubeClient.CoreV1().Pods(namespace).Get(ctx, name, v1.GetOptions{})
			return err
		}); err != nil {
		return nil, err
	}

	return pod, nil
}

// ListPods lists the pods matching the given label selector, retrying
// transient API failures.
func (clients *ClientSets) ListPods(ctx context.Context, namespace, labels string) (*corev1.PodList, error) {
	var (
		pods *corev1.PodList
		err  error
	)

	if err := retry.
		Times(uint(defaultRetries)).
		Wait(time.Duration(defaultDelay) * time.Second).
		Try(func(attempt uint) error {
			pods, err = clients.KubeClient.CoreV1().Pods(namespace).List(ctx, v1.ListOptions{
				LabelSelector: labels,
			})
			return err
		}); err != nil {
		return nil, err
	}

	return pods, nil
}

// GetDeployment fetches a deployment, retrying transient API failures.
func (clients *ClientSets) GetDeployment(ctx context.Context, namespace, name string) (*appsv1.Deployment, error) {
	var (
		deploy *appsv1.Deployment
		err    error
	)

	if err := retry.
		Times(uint(defaultRetries)).
		Wait(time.Duration(defaultDelay) * time.Second).
		Try(func(attempt uint) error {
			deploy, err = clients.KubeClient.AppsV1().Deployments(namespace).Get(ctx, name, v1.GetOptions{})
			return err
		}); err != nil {
		return nil, err
	}

	return deploy, nil
}
