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

// DatabaseAdministratorStrategyType is the tag for the cloud database
// administrator strategy, e.g. "azure/postgresql/flexible-server/administrator".
const DatabaseAdministratorStrategyType = "azure/postgresql/flexible-server/administrator"

const administratorPasswordLength = 16

// DatabaseAdministratorRotator rotates the administrator password of a
// managed database server, storing the resulting {hostname, username,
// password} alongside it.
type DatabaseAdministratorRotator struct {
	Clock       Clock
	CloudClient cloudclient.Client
	Logger      *logging.Logger
}

func NewDatabaseAdministratorRotator(clock Clock, client cloudclient.Client) *DatabaseAdministratorRotator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &DatabaseAdministratorRotator{Clock: clock, CloudClient: client}
}

func (d *DatabaseAdministratorRotator) StrategyType() string { return DatabaseAdministratorStrategyType }

func (d *DatabaseAdministratorRotator) Initialize(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := d.Clock.Now()
	return runInitialize(resource, opCtx, now, func() RotationResult {
		return d.performRotation(ctx, opCtx, resource, now)
	})
}

func (d *DatabaseAdministratorRotator) Rotate(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := d.Clock.Now()
	return runRotate(resource, opCtx, now, func() RotationResult {
		return d.performRotation(ctx, opCtx, resource, now)
	})
}

func (d *DatabaseAdministratorRotator) performRotation(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration, now time.Time) RotationResult {
	if resource.TargetResourceId == "" {
		return skip(resource.Name, "missing TargetResourceId")
	}

	details, err := d.CloudClient.GetDatabaseServerDetails(ctx, resource.TargetResourceId)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("failed to read server details: %v", err))
	}
	if details == nil {
		return skip(resource.Name, "server details not found or not authorized")
	}

	password, err := Generate(administratorPasswordLength)
	if err != nil {
		panic(fmt.Sprintf("secure random generation failed: %v", err))
	}

	if opCtx.IsWhatIf {
		return whatIf(resource.Name, "patched the administrator password")
	}

	logger := loggerOrDefault(d.Logger)

	var result RotationResult
	secureErr := secure.WithGeneratedSecret([]byte(password), func(plaintext []byte) error {
		logger.Debug("patching administrator password for %s to %s", resource.TargetResourceId, logging.Secret(string(plaintext)))

		ok, err := d.CloudClient.UpdateDatabaseAdministratorPassword(ctx, resource.TargetResourceId, string(plaintext))
		if err != nil {
			result = skip(resource.Name, fmt.Sprintf("failed to update administrator password: %v", err))
			return nil
		}
		if !ok {
			result = skip(resource.Name, "administrator password update failed")
			return nil
		}

		credential := DatabaseCredential{
			Hostname: details.Hostname,
			Username: details.AdministratorUsername,
			Password: string(plaintext),
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
		return skip(resource.Name, fmt.Sprintf("failed to protect generated password in memory: %v", secureErr))
	}
	return result
}
