package exec

import (
	"bytes"
	"context"
	"fmt"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/pkg/errors"
	apiv1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/remotecommand"
)

// PodDetails contains all the required variables to exec inside a container
type PodDetails struct {
	PodName       string
	Namespace     string
	ContainerName string
}

// Exec runs the provided command inside the target container and returns
// the combined stdout. When ContainerName is empty the first container of
// the pod is used.
func Exec(ctx context.Context, commandDetails *PodDetails, clients clients.ClientSets, command []string) (string, error) {

	pod, err := clients.KubeClient.CoreV1().Pods(commandDetails.Namespace).Get(ctx, commandDetails.PodName, v1.GetOptions{})
	if err != nil {
		return "", errors.Errorf("unable to get %v pod in %v namespace, err: %v", commandDetails.PodName, commandDetails.Namespace, err)
	}
	if commandDetails.ContainerName == "" {
		commandDetails.ContainerName = pod.Spec.Containers[0].Name
	}
	if err := checkPodStatus(pod, commandDetails.ContainerName); err != nil {
		return "", err
	}

	req := clients.KubeClient.CoreV1().RESTClient().Post().
		Resource("pods").
		Name(commandDetails.PodName).
		Namespace(commandDetails.Namespace).
		SubResource("exec")
	scheme := runtime.NewScheme()
	if err := apiv1.AddToScheme(scheme); err != nil {
		return "", fmt.Errorf("error adding to scheme: %v", err)
	}

	parameterCodec := runtime.NewParameterCodec(scheme)
	req.VersionedParams(&apiv1.PodExecOptions{
		Command:   command,
		Container: commandDetails.ContainerName,
		Stdin:     false,
		Stdout:    true,
		Stderr:    true,
		TTY:       false,
	}, parameterCodec)

	exec, err := remotecommand.NewSPDYExecutor(clients.KubeConfig, "POST", req.URL())
	if err != nil {
		return "", fmt.Errorf("error while creating Executor: %v", err)
	}

	var stdout, stderr bytes.Buffer
	if err := exec.StreamWithContext(ctx, remotecommand.StreamOptions{
		Stdout: &stdout,
		Stderr: &stderr,
		Tty:    false,
	}); err != nil {
		return "", errors.Errorf("exec of %v failed, err: %v, stderr: %v", command[0], err, stderr.String())
	}

	return stdout.String(), nil
}

// checkPodStatus verifies the pod is running and the target container is not terminated
func checkPodStatus(pod *apiv1.Pod, containerName string) error {
	if pod.Status.Phase != apiv1.PodRunning {
		return errors.Errorf("%v pod is not in running state, phase: %v", pod.Name, pod.Status.Phase)
	}
	for _, container := range pod.Status.ContainerStatuses {
		if container.Name == containerName && container.State.Terminated != nil {
			return errors.Errorf("container %v is in terminated state", containerName)
		}
	}
	return nil
}
