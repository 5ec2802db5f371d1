package experiments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalogRegistersAllVariants(t *testing.T) {
	catalog := NewCatalog()

	want := []string{
		"configmap-mutation",
		"cpu-stress",
		"disk-fill",
		"disk-stress",
		"dns-failure",
		"http-error-injection",
		"memory-stress",
		"network-latency",
		"network-partition",
		"node-cordon",
		"node-drain",
		"packet-loss",
		"pod-kill",
		"pod-restart",
		"secret-deletion",
	}
	assert.Equal(t, want, catalog.ListNames())
}

func TestNewCatalogDescriptorsAreComplete(t *testing.T) {
	for _, descriptor := range NewCatalog().ListAll() {
		require.NotEmpty(t, descriptor.Name)
		assert.NotEmpty(t, descriptor.Category, descriptor.Name)
		assert.True(t, descriptor.BlastRadius.IsValid(), descriptor.Name)
		assert.NotEmpty(t, descriptor.Description, descriptor.Name)
	}
}
