package rotation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/internal/secure"
	"github.com/systmms/credrotate/pkg/cloudclient"
)

// StorageAccountKeyStrategyType is the tag for the cloud storage account
// key strategy, e.g. "azure/storage/account/key".
const StorageAccountKeyStrategyType = "azure/storage/account/key"

// StorageAccountKeyRotator alternates which of a storage account's two
// named keys ("key1"/"key2") is the one recorded in the secret store,
// regenerating the other one each time so the currently-in-use key is
// never touched by the rotation that replaces its sibling.
type StorageAccountKeyRotator struct {
	Clock       Clock
	CloudClient cloudclient.Client
	Logger      *logging.Logger
}

func NewStorageAccountKeyRotator(clock Clock, client cloudclient.Client) *StorageAccountKeyRotator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &StorageAccountKeyRotator{Clock: clock, CloudClient: client}
}

func (s *StorageAccountKeyRotator) StrategyType() string { return StorageAccountKeyStrategyType }

func (s *StorageAccountKeyRotator) Initialize(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := s.Clock.Now()
	return runInitialize(resource, opCtx, now, func() RotationResult {
		return s.performInitialization(ctx, opCtx, resource, now)
	})
}

func (s *StorageAccountKeyRotator) Rotate(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := s.Clock.Now()
	return runRotate(resource, opCtx, now, func() RotationResult {
		return s.performRotation(ctx, opCtx, resource, now)
	})
}

// performInitialization always targets key1, unlike rotation which picks
// the key opposite of whatever is currently stored.
func (s *StorageAccountKeyRotator) performInitialization(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration, now time.Time) RotationResult {
	if resource.TargetResourceId == "" {
		return skip(resource.Name, "missing TargetResourceId")
	}

	keys, err := s.CloudClient.GetTwoStorageAccountKeys(ctx, resource.TargetResourceId)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("failed to list storage account keys: %v", err))
	}
	if !hasBothKeys(keys) {
		return skip(resource.Name, "storage account does not expose exactly key1 and key2")
	}

	return s.rotateKey(ctx, opCtx, resource, now, cloudclient.StorageKey1)
}

func (s *StorageAccountKeyRotator) performRotation(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration, now time.Time) RotationResult {
	if resource.TargetResourceId == "" {
		return skip(resource.Name, "missing TargetResourceId")
	}

	keys, err := s.CloudClient.GetTwoStorageAccountKeys(ctx, resource.TargetResourceId)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("failed to list storage account keys: %v", err))
	}
	if !hasBothKeys(keys) {
		return skip(resource.Name, "storage account does not expose exactly key1 and key2")
	}

	store := opCtx.Store(resource)
	currentValue, err := store.GetSecretValue(resource.Name)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("failed to read current secret value: %v", err))
	}
	if currentValue == nil {
		return skip(resource.Name, "not found")
	}

	var current StorageAccountKeyCredential
	if err := json.Unmarshal([]byte(*currentValue), &current); err != nil {
		return skip(resource.Name, "stored secret value is not valid JSON")
	}

	target := cloudclient.StorageKey2
	if current.Name == string(cloudclient.StorageKey2) {
		target = cloudclient.StorageKey1
	}

	return s.rotateKey(ctx, opCtx, resource, now, target)
}

func (s *StorageAccountKeyRotator) rotateKey(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration, now time.Time, target cloudclient.StorageKeyName) RotationResult {
	if opCtx.IsWhatIf {
		return whatIf(resource.Name, fmt.Sprintf("regenerated %s", target))
	}

	newKey, err := s.CloudClient.RegenerateStorageAccountKey(ctx, resource.TargetResourceId, target)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("failed to regenerate %s: %v", target, err))
	}
	if newKey == nil || newKey.Name != target {
		return skip(resource.Name, fmt.Sprintf("regeneration did not return a value for %s", target))
	}

	logger := loggerOrDefault(s.Logger)

	var result RotationResult
	secureErr := secure.WithGeneratedSecret([]byte(newKey.Value), func(plaintext []byte) error {
		logger.Debug("regenerated %s for %s: %s", target, resource.TargetResourceId, logging.Secret(string(plaintext)))

		credential := StorageAccountKeyCredential{
			Name:  string(newKey.Name),
			Value: string(plaintext),
		}
		payload, err := json.Marshal(credential)
		if err != nil {
			logger.Error("%s: %s", resource.Name, recoveryWarning)
			result = skip(resource.Name, recoveryWarning)
			return nil
		}

		store := opCtx.Store(resource)
		expires := expiresAt(resource, now)
		result = writeAfterMutation(store, logger, resource, string(payload), expires, "application/json")
		return nil
	})
	if secureErr != nil {
		return skip(resource.Name, fmt.Sprintf("failed to protect regenerated key in memory: %v", secureErr))
	}
	return result
}

func hasBothKeys(keys []cloudclient.StorageKey) bool {
	if len(keys) != 2 {
		return false
	}
	seen := map[cloudclient.StorageKeyName]bool{}
	for _, k := range keys {
		seen[k.Name] = true
	}
	return seen[cloudclient.StorageKey1] && seen[cloudclient.StorageKey2]
}
