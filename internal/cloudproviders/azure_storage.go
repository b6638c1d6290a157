package cloudproviders

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/storage/armstorage"

	dserrors "github.com/systmms/credrotate/internal/errors"
	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/pkg/cloudclient"
)

// AzureStorageClient implements cloudclient.Client's storage account key
// operations against Azure Storage.
type AzureStorageClient struct {
	accountsClient *armstorage.AccountsClient
	logger         *logging.Logger
	subscriptionID string
}

// NewAzureStorageClient creates a client authenticated against Azure
// Resource Manager for the given subscription.
func NewAzureStorageClient(subscriptionID string, config AzureCredentialConfig, logger *logging.Logger) (*AzureStorageClient, error) {
	if subscriptionID == "" {
		return nil, dserrors.ConfigError{
			Field:      "subscription_id",
			Message:    "subscription_id is required for Azure Storage",
			Suggestion: "Set the Azure subscription ID that owns the storage account",
		}
	}
	if logger == nil {
		logger = logging.New(false, false)
	}

	cred, err := newAzureCredential(config)
	if err != nil {
		return nil, err
	}

	factory, err := armstorage.NewClientFactory(subscriptionID, cred, nil)
	if err != nil {
		return nil, dserrors.ProviderError("azure-storage", "create client", err)
	}

	return &AzureStorageClient{
		accountsClient: factory.NewAccountsClient(),
		logger:         logger,
		subscriptionID: subscriptionID,
	}, nil
}

func (c *AzureStorageClient) GetTwoStorageAccountKeys(ctx context.Context, resourceId string) ([]cloudclient.StorageKey, error) {
	resourceGroup, accountName, err := resourceIdParts(resourceId)
	if err != nil {
		return nil, err
	}

	resp, err := c.accountsClient.ListKeys(ctx, resourceGroup, accountName, nil)
	if err != nil {
		return nil, dserrors.ProviderError("azure-storage", "list keys", err)
	}

	keys := make([]cloudclient.StorageKey, 0, 2)
	for _, k := range resp.Keys {
		if k == nil || k.KeyName == nil || k.Value == nil {
			continue
		}
		name, ok := parseStorageKeyName(*k.KeyName)
		if !ok {
			continue
		}
		keys = append(keys, cloudclient.StorageKey{Name: name, Value: *k.Value})
	}

	return keys, nil
}

func (c *AzureStorageClient) RegenerateStorageAccountKey(ctx context.Context, resourceId string, keyName cloudclient.StorageKeyName) (*cloudclient.StorageKey, error) {
	resourceGroup, accountName, err := resourceIdParts(resourceId)
	if err != nil {
		return nil, err
	}

	armKeyName := storageKeyNameToArm(keyName)
	resp, err := c.accountsClient.RegenerateKey(ctx, resourceGroup, accountName, armstorage.AccountRegenerateKeyParameters{
		KeyName: &armKeyName,
	}, nil)
	if err != nil {
		c.logger.Error("azure storage regenerate key failed for %s/%s: %v", resourceId, keyName, err)
		return nil, nil
	}

	for _, k := range resp.Keys {
		if k == nil || k.KeyName == nil || k.Value == nil {
			continue
		}
		name, ok := parseStorageKeyName(*k.KeyName)
		if !ok || name != keyName {
			continue
		}
		return &cloudclient.StorageKey{Name: name, Value: *k.Value}, nil
	}

	return nil, fmt.Errorf("regenerated key %s not present in storage account response", keyName)
}

func parseStorageKeyName(armName string) (cloudclient.StorageKeyName, bool) {
	switch strings.ToLower(armName) {
	case "key1":
		return cloudclient.StorageKey1, true
	case "key2":
		return cloudclient.StorageKey2, true
	default:
		return "", false
	}
}

func storageKeyNameToArm(name cloudclient.StorageKeyName) string {
	switch name {
	case cloudclient.StorageKey2:
		return "key2"
	default:
		return "key1"
	}
}
