// Package dbexec executes the single DDL statement the database-user
// strategy needs against a PostgreSQL server, over a TLS-authenticated
// connection.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// PostgresExecutor opens a connection to a PostgreSQL server and executes
// the CREATE USER statement the database-user strategy builds.
type PostgresExecutor struct {
	// Open is overridable in tests so a sqlmock-backed *sql.DB can stand in
	// for a real connection.
	Open func(connString string) (*sql.DB, error)
}

// NewPostgresExecutor returns an executor that opens real lib/pq
// connections.
func NewPostgresExecutor() *PostgresExecutor {
	return &PostgresExecutor{
		Open: func(connString string) (*sql.DB, error) {
			return sql.Open("postgres", connString)
		},
	}
}

// ConnectionString builds a sslmode=require PostgreSQL connection string
// for the given host/user/password. The database name is fixed to
// "postgres", the server's always-present administrative database, since
// the strategy only needs enough of a connection to run CREATE USER.
func ConnectionString(host, user, password string) string {
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=postgres sslmode=require",
		host, escapeConnValue(user), escapeConnValue(password),
	)
}

func escapeConnValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// CreateUser opens a connection with the given administrator credentials
// and executes the supplied DDL statement. The connection is closed before
// returning.
func (p *PostgresExecutor) CreateUser(ctx context.Context, host, adminUser, adminPassword, statement string) error {
	db, err := p.Open(ConnectionString(host, adminUser, adminPassword))
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}
	defer db.Close()

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("failed to reach database server: %w", err)
	}

	if _, err := db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("failed to execute CREATE USER statement: %w", err)
	}

	return nil
}

// QuoteIdentifier wraps a validated identifier in double quotes, doubling
// any embedded quote per SQL identifier-quoting rules. Validation happens
// upstream; this only applies the quoting.
func QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// QuoteLiteral wraps a string literal in single quotes, doubling any
// embedded quote.
func QuoteLiteral(literal string) string {
	return "'" + strings.ReplaceAll(literal, "'", "''") + "'"
}
