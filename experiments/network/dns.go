package network

import (
	"context"
	"fmt"
	"strings"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const (
	coreDNSConfigMap = "coredns"
	coreDNSNamespace = "kube-system"
	corefileKey      = "Corefile"
)

// dnsRollback is the typed rollback context of DNSFailure.
type dnsRollback struct {
	OriginalCorefile string
}

// DNSFailure breaks name resolution for a service by rewriting its
// record in the CoreDNS Corefile.
type DNSFailure struct{}

func (DNSFailure) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "dns-failure",
		Category:    types.CategoryNetwork,
		BlastRadius: types.BlastRadiusHigh,
		Reversible:  true,
		Description: "Simulate DNS failure by modifying the CoreDNS configmap",
	}
}

func (d DNSFailure) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := d.Describe().Name

	cm, err := clientSets.KubeClient.CoreV1().ConfigMaps(coreDNSNamespace).Get(ctx, coreDNSConfigMap, v1.GetOptions{})
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	originalCorefile := cm.Data[corefileKey]
	if originalCorefile == "" {
		result := types.NewResult(name, target, namespace, types.StatusSkipped)
		result.Error = "CoreDNS ConfigMap has no Corefile to rewrite"
		return result, nil
	}

	rewrite := fmt.Sprintf("ready\n        rewrite name %s.%s.svc.cluster.local nxdomain.invalid", target, namespace)
	cm.Data[corefileKey] = strings.Replace(originalCorefile, "ready", rewrite, 1)
	if _, err := clientSets.KubeClient.CoreV1().ConfigMaps(coreDNSNamespace).Update(ctx, cm, v1.UpdateOptions{}); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: DNS failure injected for %v.%v", target, namespace)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["original_corefile"] = originalCorefile
	result.RollbackData = &dnsRollback{OriginalCorefile: originalCorefile}
	return result, nil
}

func (DNSFailure) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	state, ok := data.(*dnsRollback)
	if !ok || state.OriginalCorefile == "" {
		log.Warn("[Rollback]: No original CoreDNS config to restore")
		return nil
	}

	cm, err := clientSets.KubeClient.CoreV1().ConfigMaps(coreDNSNamespace).Get(ctx, coreDNSConfigMap, v1.GetOptions{})
	if err != nil {
		return err
	}
	if cm.Data == nil {
		cm.Data = map[string]string{}
	}
	cm.Data[corefileKey] = state.OriginalCorefile
	if _, err := clientSets.KubeClient.CoreV1().ConfigMaps(coreDNSNamespace).Update(ctx, cm, v1.UpdateOptions{}); err != nil {
		return err
	}
	log.Info("[Rollback]: CoreDNS config restored")
	return nil
}

func (DNSFailure) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasService(namespace, target)
}
