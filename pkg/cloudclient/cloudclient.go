// Package cloudclient defines the abstraction the rotation engine uses to
// talk to a cloud provider's control plane: reading database server
// metadata, patching the administrator password, and managing storage
// account keys.
package cloudclient

import "context"

// DatabaseServerDetails describes the connection endpoint and administrator
// identity of a managed database server.
type DatabaseServerDetails struct {
	Hostname               string
	AdministratorUsername  string
}

// StorageKeyName is restricted to the two slots Azure-style storage
// accounts expose.
type StorageKeyName string

const (
	StorageKey1 StorageKeyName = "key1"
	StorageKey2 StorageKeyName = "key2"
)

// StorageKey is one named access key on a storage account.
type StorageKey struct {
	Name  StorageKeyName
	Value string
}

// Client is the control-plane abstraction consumed by the cloud strategies.
// All operations may block on network I/O and take a cancellation token.
// Transient failures (server not found, password update rejected) are
// reported as a nil result or false, not a Go error: the rotation engine
// treats those as ordinary skip conditions. A Go error is reserved for
// programmer or transport-level faults the caller cannot reason about.
type Client interface {
	GetDatabaseServerDetails(ctx context.Context, resourceId string) (*DatabaseServerDetails, error)
	UpdateDatabaseAdministratorPassword(ctx context.Context, resourceId, password string) (bool, error)
	GetTwoStorageAccountKeys(ctx context.Context, resourceId string) ([]StorageKey, error)
	RegenerateStorageAccountKey(ctx context.Context, resourceId string, keyName StorageKeyName) (*StorageKey, error)
}
