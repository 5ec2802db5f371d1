// Package diskio implements I/O chaos experiments: disk stress and
// disk fill.
package diskio

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

// defaultFillPath is where Fill allocates its ballast file.
const defaultFillPath = "/tmp/chaosmonkey-fill"

// Stress injects disk I/O load into a pod using stress-ng.
type Stress struct{}

func (Stress) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "disk-stress",
		Category:    types.CategoryIO,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Inject disk I/O stress into a pod using stress-ng",
	}
}

type stressRollback struct {
	Container string
}

func (s Stress) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := s.Describe().Name
	duration := params.Int("duration_seconds", 30)
	workers := params.Int("workers", 1)

	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	command := []string{"stress-ng", "--hdd", strconv.Itoa(workers), "--timeout", fmt.Sprintf("%ds", duration)}
	output, err := exec.Exec(ctx, podDetails, clientSets, command)
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Disk stress on %v/%v for %vs", namespace, target, duration)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["duration"] = duration
	result.Details["workers"] = workers
	result.Details["output"] = output
	result.RollbackData = &stressRollback{Container: podDetails.ContainerName}
	return result, nil
}

func (Stress) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	if state, ok := data.(*stressRollback); ok {
		podDetails.ContainerName = state.Container
	}
	if _, err := exec.Exec(ctx, podDetails, clientSets, []string{"pkill", "-f", "stress-ng"}); err != nil {
		log.Debugf("pkill stress-ng failed (process may have already exited): %v", err)
	}
	return nil
}

func (Stress) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasPod(namespace, target)
}

// fillRollback is the typed rollback context of Fill.
type fillRollback struct {
	FillPath  string
	Container string
}

// Fill allocates a ballast file inside a pod to exhaust disk space.
type Fill struct{}

func (Fill) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "disk-fill",
		Category:    types.CategoryIO,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Fill disk space in a pod using fallocate",
	}
}

func (f Fill) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := f.Describe().Name
	sizeMB := params.Int("size_mb", 100)
	fillPath := params.String("fill_path", defaultFillPath)

	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	command := []string{"fallocate", "-l", fmt.Sprintf("%dM", sizeMB), fillPath}
	if _, err := exec.Exec(ctx, podDetails, clientSets, command); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Filled %vMB at %v on %v/%v", sizeMB, fillPath, namespace, target)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["size_mb"] = sizeMB
	result.Details["fill_path"] = fillPath
	result.RollbackData = &fillRollback{FillPath: fillPath, Container: podDetails.ContainerName}
	return result, nil
}

func (Fill) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	fillPath := defaultFillPath
	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	if state, ok := data.(*fillRollback); ok {
		fillPath = state.FillPath
		podDetails.ContainerName = state.Container
	}
	if _, err := exec.Exec(ctx, podDetails, clientSets, []string{"rm", "-f", fillPath}); err != nil {
		return err
	}
	log.Infof("[Rollback]: Removed fill file from %v/%v", namespace, target)
	return nil
}

func (Fill) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasPod(namespace, target)
}
