// Package cloudproviders adapts Azure Resource Manager SDKs to the engine's
// pkg/cloudclient.Client interface.
package cloudproviders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/postgresql/armpostgresqlflexibleservers"

	dserrors "github.com/systmms/credrotate/internal/errors"
	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/pkg/cloudclient"
)

// AzureCredentialConfig configures authentication against Azure Resource
// Manager. The zero value falls back to DefaultAzureCredential.
type AzureCredentialConfig struct {
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
}

func newAzureCredential(config AzureCredentialConfig) (azcore.TokenCredential, error) {
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
		return nil, dserrors.ProviderError("azure", "authenticate", err)
	}
	return cred, nil
}

// AzureDatabaseClient implements cloudclient.Client's database operations
// against an Azure Database for PostgreSQL flexible server.
type AzureDatabaseClient struct {
	serversClient  *armpostgresqlflexibleservers.ServersClient
	logger         *logging.Logger
	subscriptionID string
}

// NewAzureDatabaseClient creates a client authenticated against Azure
// Resource Manager for the given subscription.
func NewAzureDatabaseClient(subscriptionID string, config AzureCredentialConfig, logger *logging.Logger) (*AzureDatabaseClient, error) {
	if subscriptionID == "" {
		return nil, dserrors.ConfigError{
			Field:      "subscription_id",
			Message:    "subscription_id is required for Azure Database for PostgreSQL",
			Suggestion: "Set the Azure subscription ID that owns the flexible server",
		}
	}
	if logger == nil {
		logger = logging.New(false, false)
	}

	cred, err := newAzureCredential(config)
	if err != nil {
		return nil, err
	}

	factory, err := armpostgresqlflexibleservers.NewClientFactory(subscriptionID, cred, nil)
	if err != nil {
		return nil, dserrors.ProviderError("azure-postgresql", "create client", err)
	}

	return &AzureDatabaseClient{
		serversClient:  factory.NewServersClient(),
		logger:         logger,
		subscriptionID: subscriptionID,
	}, nil
}

// resourceIdParts splits a resourceId of the form
// "resourceGroup/serverName" into its components. The engine addresses
// flexible servers this way rather than by full ARM resource ID since the
// subscription is already fixed at the client level.
func resourceIdParts(resourceId string) (resourceGroup, serverName string, err error) {
	parts := strings.SplitN(resourceId, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid database resource id %q, expected \"resourceGroup/serverName\"", resourceId)
	}
	return parts[0], parts[1], nil
}

func (c *AzureDatabaseClient) GetDatabaseServerDetails(ctx context.Context, resourceId string) (*cloudclient.DatabaseServerDetails, error) {
	resourceGroup, serverName, err := resourceIdParts(resourceId)
	if err != nil {
		return nil, err
	}

	resp, err := c.serversClient.Get(ctx, resourceGroup, serverName, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && (respErr.StatusCode == 404 || respErr.StatusCode == 401 || respErr.StatusCode == 403) {
			c.logger.Error("azure postgresql get server failed for %s: %v", resourceId, err)
			return nil, nil
		}
		return nil, dserrors.ProviderError("azure-postgresql", "get server", err)
	}

	details := &cloudclient.DatabaseServerDetails{}
	if resp.Properties != nil {
		if resp.Properties.FullyQualifiedDomainName != nil {
			details.Hostname = *resp.Properties.FullyQualifiedDomainName
		}
		if resp.Properties.AdministratorLogin != nil {
			details.AdministratorUsername = *resp.Properties.AdministratorLogin
		}
	}
	if details.Hostname == "" && resp.Name != nil {
		details.Hostname = fmt.Sprintf("%s.postgres.database.azure.com", *resp.Name)
	}

	return details, nil
}

func (c *AzureDatabaseClient) UpdateDatabaseAdministratorPassword(ctx context.Context, resourceId, password string) (bool, error) {
	resourceGroup, serverName, err := resourceIdParts(resourceId)
	if err != nil {
		return false, err
	}

	poller, err := c.serversClient.BeginUpdate(ctx, resourceGroup, serverName, armpostgresqlflexibleservers.ServerForUpdate{
		Properties: &armpostgresqlflexibleservers.ServerPropertiesForUpdate{
			AdministratorLoginPassword: to.Ptr(password),
		},
	}, nil)
	if err != nil {
		c.logger.Error("azure postgresql update server failed for %s: %v", resourceId, err)
		return false, nil
	}

	if _, err := poller.PollUntilDone(ctx, nil); err != nil {
		c.logger.Error("azure postgresql update server polling failed for %s: %v", resourceId, err)
		return false, nil
	}

	return true, nil
}
