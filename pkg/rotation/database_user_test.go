package rotation

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/credrotate/internal/dbexec"
)

func seedAdminCredential(t *testing.T, store *fakeStore, name, hostname, username, password string) {
	t.Helper()
	cred := DatabaseCredential{Hostname: hostname, Username: username, Password: password}
	payload, err := json.Marshal(cred)
	require.NoError(t, err)
	store.seed(name, string(payload), nil)
}

func executorWithMock(t *testing.T) (*dbexec.PostgresExecutor, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	executor := &dbexec.PostgresExecutor{
		Open: func(connString string) (*sql.DB, error) { return db, nil },
	}
	return executor, mock, func() { db.Close() }
}

func TestDatabaseUserRotator_InvalidRoleSkips(t *testing.T) {
	store := newFakeStore()
	seedAdminCredential(t, store, "admin-secret", "db1.example.com", "admin", "adminpw")

	executor, mock, cleanup := executorWithMock(t)
	defer cleanup()

	rotator := NewDatabaseUserRotator(FixedClock{At: time.Now()}, executor)
	resource := ResourceConfiguration{
		Name:      "appuser1",
		StoreName: "m",
		DatabaseUser: &DatabaseUserConfig{
			NamePrefix:       "u",
			Roles:            []string{"good", "bad name"},
			ServerSecretName: "admin-secret",
			Hostname:         "db1.example.com",
		},
	}

	result := rotator.Initialize(context.Background(), OperationContext{Stores: storesOf("m", store), Force: true}, resource)

	assert.False(t, result.WasRotated)
	assert.Contains(t, result.Notes, "Invalid role")
	assert.NoError(t, mock.ExpectationsWereMet(), "no database interaction should occur before validation fails")
}

func TestDatabaseUserRotator_MissingAdminCredentialSkips(t *testing.T) {
	store := newFakeStore()
	executor, _, cleanup := executorWithMock(t)
	defer cleanup()

	rotator := NewDatabaseUserRotator(FixedClock{At: time.Now()}, executor)
	resource := ResourceConfiguration{
		Name:      "appuser1",
		StoreName: "m",
		DatabaseUser: &DatabaseUserConfig{
			ServerSecretName: "admin-secret",
			Hostname:         "db1.example.com",
		},
	}

	result := rotator.Initialize(context.Background(), OperationContext{Stores: storesOf("m", store), Force: true}, resource)

	assert.False(t, result.WasRotated)
	assert.Contains(t, result.Notes, "not found")
}

func TestDatabaseUserRotator_MalformedAdminCredentialSkips(t *testing.T) {
	store := newFakeStore()
	store.seed("admin-secret", "not json", nil)
	executor, _, cleanup := executorWithMock(t)
	defer cleanup()

	rotator := NewDatabaseUserRotator(FixedClock{At: time.Now()}, executor)
	resource := ResourceConfiguration{
		Name:      "appuser1",
		StoreName: "m",
		DatabaseUser: &DatabaseUserConfig{
			ServerSecretName: "admin-secret",
			Hostname:         "db1.example.com",
		},
	}

	result := rotator.Initialize(context.Background(), OperationContext{Stores: storesOf("m", store), Force: true}, resource)

	assert.False(t, result.WasRotated)
	assert.Contains(t, result.Notes, "not valid JSON")
}

func TestDatabaseUserRotator_SuccessfulRotationExecutesExpectedDDL(t *testing.T) {
	store := newFakeStore()
	seedAdminCredential(t, store, "admin-secret", "db1.example.com", "admin", "adminpw")

	executor, mock, cleanup := executorWithMock(t)
	defer cleanup()

	mock.ExpectPing()
	mock.ExpectExec(`CREATE USER .* WITH PASSWORD .* IN ROLE "readonly", "writer" VALID UNTIL`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rotator := NewDatabaseUserRotator(FixedClock{At: now}, executor)
	resource := ResourceConfiguration{
		Name:           "appuser1",
		StoreName:      "m",
		ExpirationDays: 30,
		DatabaseUser: &DatabaseUserConfig{
			NamePrefix:       "u",
			Roles:            []string{"readonly", "writer"},
			ServerSecretName: "admin-secret",
			Hostname:         "db1.example.com",
		},
	}

	result := rotator.Initialize(context.Background(), OperationContext{Stores: storesOf("m", store), Force: true}, resource)

	require.True(t, result.WasRotated)
	assert.NoError(t, mock.ExpectationsWereMet())

	value, err := store.GetSecretValue("appuser1")
	require.NoError(t, err)
	var cred DatabaseCredential
	require.NoError(t, json.Unmarshal([]byte(*value), &cred))
	assert.Equal(t, "db1.example.com", cred.Hostname)
	assert.Contains(t, cred.Username, "u")

	info, err := store.GetSecret("appuser1")
	require.NoError(t, err)
	require.NotNil(t, info.ExpiresOn)
	assert.Equal(t, now.AddDate(0, 0, 30), *info.ExpiresOn)
}

func TestDatabaseUserRotator_EmptyRolesOmitsInRoleClause(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expires := now.AddDate(0, 0, 90)
	statement := buildCreateUserStatement("uabc12345", "pw", nil, expires)

	assert.NotContains(t, statement, "IN ROLE")
	assert.Contains(t, statement, `CREATE USER "uabc12345"`)
	assert.Contains(t, statement, fmt.Sprintf("VALID UNTIL '%s'", expires.UTC().Format(time.RFC3339)))
}

func TestDatabaseUserRotator_WhatIfDoesNotTouchDatabase(t *testing.T) {
	store := newFakeStore()
	seedAdminCredential(t, store, "admin-secret", "db1.example.com", "admin", "adminpw")

	executor, mock, cleanup := executorWithMock(t)
	defer cleanup()

	rotator := NewDatabaseUserRotator(FixedClock{At: time.Now()}, executor)
	resource := ResourceConfiguration{
		Name:      "appuser1",
		StoreName: "m",
		DatabaseUser: &DatabaseUserConfig{
			ServerSecretName: "admin-secret",
			Hostname:         "db1.example.com",
		},
	}

	result := rotator.Initialize(context.Background(), OperationContext{Stores: storesOf("m", store), Force: true, IsWhatIf: true}, resource)

	assert.True(t, result.WasRotated)
	assert.NoError(t, mock.ExpectationsWereMet(), "no expectations were set, none should have been consumed")
}

func TestValidIdentifier(t *testing.T) {
	tests := []struct {
		name  string
		ident string
		want  bool
	}{
		{"simple lowercase", "readonly", true},
		{"leading underscore", "_svc", true},
		{"contains digit and dollar", "role_1$x", true},
		{"leading digit invalid", "1role", false},
		{"contains space invalid", "bad name", false},
		{"empty invalid", "", false},
		{"exactly 63 chars valid", "a" + string(repeatByte('b', 62)), true},
		{"64 chars invalid", "a" + string(repeatByte('b', 63)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidIdentifier(tt.ident))
		})
	}
}

func repeatByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
