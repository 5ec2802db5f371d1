// Package configchaos implements configuration chaos experiments:
// ConfigMap mutation and Secret deletion.
package configchaos

import (
	"context"

	"github.com/chaosmonkey/chaosmonkey-go/pkg/cerrors"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/clients"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/log"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/topology"
	"github.com/chaosmonkey/chaosmonkey-go/pkg/types"
	corev1 "k8s.io/api/core/v1"
	v1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

const mutatedValue = "CHAOSMONKEY_MUTATED"

// configMapRollback is the typed rollback context of ConfigMapMutation.
type configMapRollback struct {
	OriginalData map[string]string
}

// ConfigMapMutation overwrites a ConfigMap key to test configuration
// resilience.
type ConfigMapMutation struct{}

func (ConfigMapMutation) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "configmap-mutation",
		Category:    types.CategoryConfig,
		BlastRadius: types.BlastRadiusMedium,
		Reversible:  true,
		Description: "Mutate a ConfigMap to test configuration resilience",
	}
}

func (c ConfigMapMutation) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := c.Describe().Name
	key := params.String("key", "")
	value := params.String("value", mutatedValue)

	cm, err := clientSets.KubeClient.CoreV1().ConfigMaps(namespace).Get(ctx, target, v1.GetOptions{})
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}

	if len(cm.Data) == 0 {
		result := types.NewResult(name, target, namespace, types.StatusSkipped)
		result.Error = "ConfigMap has no data keys to mutate"
		return result, nil
	}

	originalData := map[string]string{}
	for k, v := range cm.Data {
		originalData[k] = v
	}

	if _, exists := cm.Data[key]; !exists {
		// No usable key given, mutate an arbitrary one.
		for first := range cm.Data {
			key = first
			break
		}
	}
	cm.Data[key] = value

	if _, err := clientSets.KubeClient.CoreV1().ConfigMaps(namespace).Update(ctx, cm, v1.UpdateOptions{}); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Mutated ConfigMap %v/%v key=%v", namespace, target, key)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["mutated_key"] = key
	result.Details["original_data"] = originalData
	result.RollbackData = &configMapRollback{OriginalData: originalData}
	return result, nil
}

func (ConfigMapMutation) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	state, ok := data.(*configMapRollback)
	if !ok || len(state.OriginalData) == 0 {
		log.Warnf("[Rollback]: No original data to restore for ConfigMap %v/%v", namespace, target)
		return nil
	}

	cm, err := clientSets.KubeClient.CoreV1().ConfigMaps(namespace).Get(ctx, target, v1.GetOptions{})
	if err != nil {
		return err
	}
	cm.Data = state.OriginalData
	if _, err := clientSets.KubeClient.CoreV1().ConfigMaps(namespace).Update(ctx, cm, v1.UpdateOptions{}); err != nil {
		return err
	}
	log.Infof("[Rollback]: Restored ConfigMap %v/%v", namespace, target)
	return nil
}

func (ConfigMapMutation) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasConfigMap(namespace, target)
}

// secretRollback is the typed rollback context of SecretDeletion: a full
// backup of the deleted secret.
type secretRollback struct {
	Backup *corev1.Secret
}

// SecretDeletion deletes a Secret, keeping a backup for restoration.
type SecretDeletion struct{}

func (SecretDeletion) Describe() types.Descriptor {
	return types.Descriptor{
		Name:        "secret-deletion",
		Category:    types.CategoryConfig,
		BlastRadius: types.BlastRadiusHigh,
		Reversible:  true,
		Description: "Delete a Secret to test secret-loss resilience",
	}
}

func (s SecretDeletion) Execute(ctx context.Context, target, namespace string, clientSets clients.ClientSets, params types.Params) (*types.Result, error) {
	name := s.Describe().Name

	secret, err := clientSets.KubeClient.CoreV1().Secrets(namespace).Get(ctx, target, v1.GetOptions{})
	if err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}

	backup := &corev1.Secret{
		ObjectMeta: v1.ObjectMeta{
			Name:        secret.Name,
			Namespace:   secret.Namespace,
			Labels:      secret.Labels,
			Annotations: secret.Annotations,
		},
		Type: secret.Type,
		Data: secret.Data,
	}

	if err := clientSets.KubeClient.CoreV1().Secrets(namespace).Delete(ctx, target, v1.DeleteOptions{}); err != nil {
		return nil, cerrors.ExperimentExecution{Experiment: name, Target: target, Namespace: namespace, Reason: err.Error()}
	}
	log.Infof("[Chaos]: Deleted Secret %v/%v", namespace, target)

	result := types.NewResult(name, target, namespace, types.StatusCompleted)
	result.Details["backup_of"] = secret.Name
	result.Details["type"] = string(secret.Type)
	result.RollbackData = &secretRollback{Backup: backup}
	return result, nil
}

func (SecretDeletion) Rollback(ctx context.Context, target, namespace string, clientSets clients.ClientSets, data interface{}) error {
	state, ok := data.(*secretRollback)
	if !ok || state.Backup == nil {
		log.Warnf("[Rollback]: No backup to restore for Secret %v/%v", namespace, target)
		return nil
	}

	if _, err := clientSets.KubeClient.CoreV1().Secrets(namespace).Create(ctx, state.Backup, v1.CreateOptions{}); err != nil {
		return err
	}
	log.Infof("[Rollback]: Restored Secret %v/%v", namespace, target)
	return nil
}

func (SecretDeletion) ValidateTarget(target, namespace string, snapshot *topology.Snapshot) bool {
	return snapshot.HasSecret(namespace, target)
}
