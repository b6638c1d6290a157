// Package rotation implements the credential rotation engine: the shared
// eligibility policy, the rotator template, and the four concrete
// strategies (manual, cloud database administrator, database user, cloud
// storage account key).
package rotation

import (
	"context"

	"github.com/systmms/credrotate/pkg/secretstore"
)

// DatabaseUserConfig describes how to provision a per-application database
// login. It is only present on resources using the database-user strategy.
type DatabaseUserConfig struct {
	NamePrefix       string
	Roles            []string
	ServerSecretName string
	Hostname         string
}

// ResourceConfiguration is the declarative description of one managed
// credential.
type ResourceConfiguration struct {
	Name                  string
	StrategyType          string
	StoreName             string
	ExpirationDays        float64
	ExpirationOverlapDays float64
	ContentType           string
	TargetResourceId      string
	DatabaseUser          *DatabaseUserConfig
}

// ExpirationDaysOrDefault returns ExpirationDays, defaulting to 90 when
// unset (zero value).
func (r ResourceConfiguration) ExpirationDaysOrDefault() float64 {
	if r.ExpirationDays <= 0 {
		return 90
	}
	return r.ExpirationDays
}

// DatabaseCredential is the JSON payload persisted for database secrets.
type DatabaseCredential struct {
	Hostname string `json:"hostname"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// StorageAccountKeyCredential is the JSON payload persisted for storage
// account keys.
type StorageAccountKeyCredential struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// OperationContext carries per-invocation ambient state. The store,
// rotator, and credential maps are read-only after construction; Force and
// IsWhatIf may be set by the driver before each invocation.
//
// Credentials holds opaque cloud credentials keyed by name; the core never
// interprets them itself — they exist for the driver to hand to whichever
// concrete cloud-client implementation a strategy was constructed with.
type OperationContext struct {
	Stores      map[string]secretstore.Store
	Rotators    map[string]Rotator
	Credentials map[string]interface{}

	SecretValue1 string
	Force        bool
	IsWhatIf     bool
}

// Store resolves the target store for a resource, or nil if unconfigured.
func (opCtx OperationContext) Store(resource ResourceConfiguration) secretstore.Store {
	return opCtx.Stores[resource.StoreName]
}

// RotationResult is the verdict returned to the caller for one resource.
type RotationResult struct {
	Name       string
	WasRotated bool
	Notes      string
}

func skip(name, note string) RotationResult {
	return RotationResult{Name: name, WasRotated: false, Notes: note}
}

func success(name, note string) RotationResult {
	return RotationResult{Name: name, WasRotated: true, Notes: note}
}

// Rotator is the capability set every strategy implements: an
// initialization routine, a rotation routine, and the tag it is registered
// under. The shared eligibility/what-if/verdict-assembly logic lives in
// the free functions of base.go (runInitialize, runRotate, whatIf), which
// each strategy calls rather than inheriting from a base type.
type Rotator interface {
	StrategyType() string
	Initialize(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult
	Rotate(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult
}
