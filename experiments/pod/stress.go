package pod

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/utils/exec"
)

// stressRollback is the typed rollback context shared by the stress-ng
// based experiments.
type stressRollback struct {
	Container string
}

// killStress terminates any lingering stress-ng process in the target
// container. The process is time-bounded anyway, so failures only get a
// debug log.
func killStress(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	if state, ok := data.(*stressRollback); ok {
		podDetails.ContainerName = state.Container
	}
	if _, err := exec.Exec(ctx, podDetails, clientSets, []string{"pkill", "-f", "stress-ng"}); err != nil {
		log.Debugf("pkill stress-ng failed (process may have already exited): %v", err)
	}
	return nil
}

// CPUStress injects CPU load into a pod using stress-ng.
type CPUStress struct{}

func (CPUStress) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "cpu-stress",
		Category:    types.CategoryPod,
		BlastRadius: types.BlastRadiusLow,
		Reversible:  true,
		Description: "Inject CPU stress into a pod using stress-ng",
	}
}

func (c CPUStress) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := c.Describe().Name
	duration := params.Int("duration_seconds", 30)
	workers := params.Int("workers", 1)

	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	command := []string{"stress-ng", "--cpu", strconv.Itoa(workers), "--timeout", fmt.Sprintf("%ds", duration)}
	output, err := exec.Exec(ctx, podDetails, clientSets, command)
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: CPU stress on %v/%v for %vs with %v workers", namespace, target, duration, workers)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["duration"] = duration
	result.Details["workers"] = workers
	result.Details["output"] = output
	result.RollbackData = &stressRollback{Container: podDetails.ContainerName}
	return result, nil
}

func (CPUStress) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	return killStress(ctx, target, namespace, clientSets, data)
}

func (CPUStress) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasPod(namespace, target)
}

// MemoryStress injects memory pressure into a pod using stress-ng.
type MemoryStress struct{}

func (MemoryStress) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "memory-stress",
		Category:    types.CategoryPod,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Inject memory stress into a pod using stress-ng",
	}
}

func (m MemoryStress) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := m.Describe().Name
	duration := params.Int("duration_seconds", 30)
	workers := params.Int("workers", 1)
	vmBytes := params.String("vm_bytes", "256M")

	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	command := []string{
		"stress-ng", "--vm", strconv.Itoa(workers),
		"--vm-bytes", vmBytes,
		"--timeout", fmt.Sprintf("%ds", duration),
	}
	output, err := exec.Exec(ctx, podDetails, clientSets, command)
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Memory stress on %v/%v for %vs (%v)", namespace, target, duration, vmBytes)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["duration"] = duration
	result.Details["vm_bytes"] = vmBytes
	result.Details["output"] = output
	result.RollbackData = &stressRollback{Container: podDetails.ContainerName}
	return result, nil
}

func (MemoryStress) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	return killStress(ctx, target, namespace, clientSets, data)
}

func (MemoryStress) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasPod(namespace, target)
}
