// Package secretstore defines the abstraction the rotation engine uses to
// read and write credential material, independent of which vault backs it.
package secretstore

import "time"

// SecretInfo is the metadata a store returns about a secret. It never
// carries the secret value itself.
type SecretInfo struct {
	Id          string
	Name        string
	ContentType string
	Enabled     bool
	CreatedOn   time.Time
	ExpiresOn   *time.Time
	UpdatedOn   time.Time
	StoreId     string
	Version     string
}

// Store is a uniform interface over a persistent secret repository.
//
// GetSecret and GetSecretValue return (nil, nil) when the secret does not
// exist; they do not return an error for "not found". UpdateSecret returns
// (nil, nil) to signal a write failure that the caller must surface as a
// rotation failure — it does not panic or return a Go error for that case,
// matching the "null marker" contract used throughout the engine.
type Store interface {
	GetSecret(name string) (*SecretInfo, error)
	GetSecretValue(name string) (*string, error)
	UpdateSecret(name, value string, expiresOn *time.Time, contentType string) (*SecretInfo, error)
}
