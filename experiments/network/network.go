// Package network implements network chaos experiments: latency, packet
// loss, partition, and DNS failure.
package network

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

// netemRollback is the typed rollback context of the tc based experiments.
type netemRollback struct {
	Interface string
	Container string
}

// removeQdisc deletes the netem qdisc installed by a tc experiment. With
// no captured context it falls back to the default interface.
func removeQdisc(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	iface := "eth0"
	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	if state, ok := data.(*netemRollback); ok {
		iface = state.Interface
		podDetails.ContainerName = state.Container
	} else {
		log.Warnf("[Rollback]: No interface captured for %v/%v, assuming eth0", namespace, target)
	}
	_, err := exec.Exec(ctx, podDetails, clientSets, []string{"tc", "qdisc", "del", "dev", iface, "root"})
	return err
}

// Latency injects delay on a pod's interface using tc netem.
type Latency struct{}

func (Latency) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "network-latency",
		Category:    types.CategoryNetwork,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Inject network latency into a pod using tc netem",
	}
}

func (l Latency) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := l.Describe().Name
	delayMS := params.Int("delay_ms", 200)
	jitterMS := params.Int("jitter_ms", 50)
	iface := params.String("interface", "eth0")
	duration := params.Int("duration_seconds", 30)

	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	command := []string{
		"tc", "qdisc", "add", "dev", iface, "root", "netem",
		"delay", fmt.Sprintf("%dms", delayMS), fmt.Sprintf("%dms", jitterMS),
	}
	if _, err := exec.Exec(ctx, podDetails, clientSets, command); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Latency of %vms (jitter %vms) injected on %v/%v", delayMS, jitterMS, namespace, target)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["delay_ms"] = delayMS
	result.Details["jitter_ms"] = jitterMS
	result.Details["interface"] = iface
	result.Details["duration"] = duration
	result.RollbackData = &netemRollback{Interface: iface, Container: podDetails.ContainerName}
	return result, nil
}

func (Latency) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	return removeQdisc(ctx, target, namespace, clientSets, data)
}

func (Latency) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasPod(namespace, target)
}

// PacketLoss drops a percentage of packets on a pod's interface using tc netem.
type PacketLoss struct{}

func (PacketLoss) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "packet-loss",
		Category:    types.CategoryNetwork,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Inject packet loss into a pod using tc netem",
	}
}

func (p PacketLoss) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := p.Describe().Name
	lossPercent := params.Int("loss_percent", 10)
	iface := params.String("interface", "eth0")

	podDetails := &exec.PodDetails{PodName: target, Namespace: namespace}
	command := []string{
		"tc", "qdisc", "add", "dev", iface, "root", "netem",
		"loss", strconv.Itoa(lossPercent) + "%",
	}
	if _, err := exec.Exec(ctx, podDetails, clientSets, command); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Packet loss of %v%% injected on %v/%v", lossPercent, namespace, target)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["loss_percent"] = lossPercent
	result.Details["interface"] = iface
	result.RollbackData = &netemRollback{Interface: iface, Container: podDetails.ContainerName}
	return result, nil
}

func (PacketLoss) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	return removeQdisc(ctx, target, namespace, clientSets, data)
}

func (PacketLoss) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasPod(namespace, target)
}
