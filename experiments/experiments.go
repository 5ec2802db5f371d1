// Package experiments wires every built-in chaos experiment variant into
// a catalog. Registration is explicit and ahead of time: adding a variant
// means implementing registry.Experiment and listing it here.
package experiments

import (
	"github.com/chaosmonkey/chaosmonkey-go/experiments/app"
	"github.com/chaosmonkey/chaosmonkey-go/experiments/configchaos"
	"github.com/chaosmonkey/chaosmonkey-go/experiments/diskio"
	"github.com/chaosmonkey/chaosmonkey-go/experiments/network"
	"github.com/chaosmonkey/chaosmonkey-go/experiments/node"
	"github.com/chaosmonkey/chaosmonkey-go/experiments/pod"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/registry"
)

// NewCatalog returns a catalog holding every built-in experiment.
func NewCatalog() *registry.Catalog {
	catalog := registry.NewCatalog()
	catalog.MustRegister(
		pod.Kill{},
		pod.Restart{},
		pod.CPUStress{},
		pod.MemoryStress{},
		network.Latency{},
		network.PacketLoss{},
		network.Partition{},
		network.DNSFailure{},
		node.Drain{},
		node.Cordon{},
		diskio.Stress{},
		diskio.Fill{},
		configchaos.ConfigMapMutation{},
		configchaos.SecretDeletion{},
		app.HTTPErrorInjection{},
	)
	return catalog
}
