// Package secretstores adapts concrete cloud secret-vault SDKs to the
// engine's pkg/secretstore.Store interface.
package secretstores

import (
	"context"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	dserrors "github.com/systmms/credrotate/internal/errors"
	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/pkg/secretstore"
)

// AzureKeyVaultClientAPI is the subset of azsecrets.Client the store needs.
// Narrowing it to an interface allows a fake to stand in during tests.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
}

// AzureKeyVaultStore implements secretstore.Store against Azure Key Vault.
type AzureKeyVaultStore struct {
	client   AzureKeyVaultClientAPI
	logger   *logging.Logger
	vaultURL string
	storeId  string
}

// AzureKeyVaultConfig configures authentication against a vault.
type AzureKeyVaultConfig struct {
	VaultURL           string
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
}

// NewAzureKeyVaultStore creates a store against a live vault using the
// given authentication configuration.
func NewAzureKeyVaultStore(storeId string, config AzureKeyVaultConfig, logger *logging.Logger) (*AzureKeyVaultStore, error) {
	if config.VaultURL == "" {
		return nil, dserrors.ConfigError{
			Field:      "vault_url",
			Message:    "vault_url is required for Azure Key Vault",
			Suggestion: "Provide the Key Vault URL (e.g., https://my-vault.vault.azure.net/)",
		}
	}
	if logger == nil {
		logger = logging.New(false, false)
	}

	client, err := createAzureKeyVaultClient(config)
	if err != nil {
		return nil, err
	}

	return &AzureKeyVaultStore{client: client, logger: logger, vaultURL: config.VaultURL, storeId: storeId}, nil
}

// NewAzureKeyVaultStoreWithClient builds a store around an already
// constructed client, for testing.
func NewAzureKeyVaultStoreWithClient(storeId string, client AzureKeyVaultClientAPI, logger *logging.Logger) *AzureKeyVaultStore {
	if logger == nil {
		logger = logging.New(false, false)
	}
	return &AzureKeyVaultStore{client: client, logger: logger, storeId: storeId}
}

func createAzureKeyVaultClient(config AzureKeyVaultConfig) (*azsecrets.Client, error) {
	var cred azcore.TokenCredential
	var err error

	switch {
	case config.UseManagedIdentity:
		if config.UserAssignedID != "" {
			opts := &azidentity.ManagedIdentityCredentialOptions{ID: azidentity.ClientID(config.UserAssignedID)}
			cred, err = azidentity.NewManagedIdentityCredential(opts)
		} else {
			cred, err = azidentity.NewManagedIdentityCredential(nil)
		}
	case config.ClientSecret != "":
		cred, err = azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.ClientSecret, nil)
	default:
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, dserrors.ProviderError("azure-keyvault", "authenticate", err)
	}

	client, err := azsecrets.NewClient(config.VaultURL, cred, nil)
	if err != nil {
		return nil, dserrors.ProviderError("azure-keyvault", "create client", err)
	}
	return client, nil
}

func (s *AzureKeyVaultStore) GetSecret(name string) (*secretstore.SecretInfo, error) {
	ctx := context.Background()
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return nil, nil
		}
		return nil, dserrors.ProviderError("azure-keyvault", "get secret", err)
	}

	info := &secretstore.SecretInfo{
		Name:        name,
		StoreId:     s.storeId,
		Enabled:     resp.Attributes == nil || resp.Attributes.Enabled == nil || *resp.Attributes.Enabled,
		ContentType: stringOr(resp.ContentType, ""),
	}
	if resp.Attributes != nil {
		if resp.Attributes.Created != nil {
			info.CreatedOn = *resp.Attributes.Created
		}
		if resp.Attributes.Updated != nil {
			info.UpdatedOn = *resp.Attributes.Updated
		}
		if resp.Attributes.Expires != nil {
			expires := *resp.Attributes.Expires
			info.ExpiresOn = &expires
		}
	}
	if resp.ID != nil {
		parts := strings.Split(string(*resp.ID), "/")
		if len(parts) > 0 {
			info.Version = parts[len(parts)-1]
		}
		info.Id = string(*resp.ID)
	}

	return info, nil
}

func (s *AzureKeyVaultStore) GetSecretValue(name string) (*string, error) {
	ctx := context.Background()
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		if isAzureNotFoundError(err) {
			return nil, nil
		}
		return nil, dserrors.ProviderError("azure-keyvault", "get secret value", err)
	}
	if resp.Value == nil {
		return nil, nil
	}
	return resp.Value, nil
}

func (s *AzureKeyVaultStore) UpdateSecret(name, value string, expiresOn *time.Time, contentType string) (*secretstore.SecretInfo, error) {
	ctx := context.Background()

	params := azsecrets.SetSecretParameters{
		Value:       to.Ptr(value),
		ContentType: to.Ptr(contentType),
	}
	if expiresOn != nil {
		params.SecretAttributes = &azsecrets.SecretAttributes{Expires: expiresOn}
	}

	resp, err := s.client.SetSecret(ctx, name, params, nil)
	if err != nil {
		s.logger.Error("azure key vault set secret failed for %s: %v", name, err)
		return nil, nil
	}

	info := &secretstore.SecretInfo{
		Name:        name,
		StoreId:     s.storeId,
		Enabled:     true,
		ContentType: contentType,
		ExpiresOn:   expiresOn,
	}
	if resp.Attributes != nil {
		if resp.Attributes.Created != nil {
			info.CreatedOn = *resp.Attributes.Created
		}
		if resp.Attributes.Updated != nil {
			info.UpdatedOn = *resp.Attributes.Updated
		}
	}
	if resp.ID != nil {
		info.Id = string(*resp.ID)
		parts := strings.Split(string(*resp.ID), "/")
		if len(parts) > 0 {
			info.Version = parts[len(parts)-1]
		}
	}

	return info, nil
}

func isAzureNotFoundError(err error) bool {
	return strings.Contains(err.Error(), "SecretNotFound") || strings.Contains(err.Error(), "404")
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}
