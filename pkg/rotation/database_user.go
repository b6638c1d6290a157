package rotation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/systmms/credrotate/internal/dbexec"
	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/internal/secure"
)

// DatabaseUserStrategyType is the tag for the database-user strategy, e.g.
// "database/postgresql/user".
const DatabaseUserStrategyType = "database/postgresql/user"

const (
	databaseUsernameLength     = 16
	databaseUserPasswordLength = 24
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]{0,62}$`)

// ValidIdentifier reports whether s is safe to use, unquoted-content, as a
// PostgreSQL role/user identifier: at most 63 characters, starting with a
// letter or underscore, the rest letters/digits/underscore/dollar.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// DatabaseUserRotator provisions a per-application database login,
// overlapping two generations of user by design: the new user is created
// well before the database's own VALID UNTIL expires the previous one.
type DatabaseUserRotator struct {
	Clock    Clock
	Executor *dbexec.PostgresExecutor
	Logger   *logging.Logger
}

func NewDatabaseUserRotator(clock Clock, executor *dbexec.PostgresExecutor) *DatabaseUserRotator {
	if clock == nil {
		clock = SystemClock{}
	}
	if executor == nil {
		executor = dbexec.NewPostgresExecutor()
	}
	return &DatabaseUserRotator{Clock: clock, Executor: executor}
}

func (d *DatabaseUserRotator) StrategyType() string { return DatabaseUserStrategyType }

func (d *DatabaseUserRotator) Initialize(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := d.Clock.Now()
	return runInitialize(resource, opCtx, now, func() RotationResult {
		return d.performRotation(ctx, opCtx, resource, now)
	})
}

func (d *DatabaseUserRotator) Rotate(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := d.Clock.Now()
	return runRotate(resource, opCtx, now, func() RotationResult {
		return d.performRotation(ctx, opCtx, resource, now)
	})
}

func (d *DatabaseUserRotator) performRotation(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration, now time.Time) RotationResult {
	cfg := resource.DatabaseUser
	if cfg == nil {
		return skip(resource.Name, "missing DatabaseUser configuration")
	}

	for _, role := range cfg.Roles {
		if !ValidIdentifier(role) {
			return skip(resource.Name, fmt.Sprintf("Invalid role identifier: %q", role))
		}
	}

	store := opCtx.Store(resource)

	adminValue, err := store.GetSecretValue(cfg.ServerSecretName)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("failed to read administrator credential: %v", err))
	}
	if adminValue == nil {
		return skip(resource.Name, fmt.Sprintf("administrator credential %q not found", cfg.ServerSecretName))
	}

	var admin DatabaseCredential
	if err := json.Unmarshal([]byte(*adminValue), &admin); err != nil {
		return skip(resource.Name, fmt.Sprintf("administrator credential %q is not valid JSON", cfg.ServerSecretName))
	}

	if opCtx.IsWhatIf {
		return whatIf(resource.Name, "created a new database user")
	}

	username, err := GenerateUsername(cfg.NamePrefix, databaseUsernameLength)
	if err != nil {
		panic(fmt.Sprintf("secure random generation failed: %v", err))
	}
	password, err := Generate(databaseUserPasswordLength)
	if err != nil {
		panic(fmt.Sprintf("secure random generation failed: %v", err))
	}

	expires := expiresAt(resource, now)
	logger := loggerOrDefault(d.Logger)

	var result RotationResult
	secureErr := secure.WithGeneratedSecret([]byte(password), func(plaintext []byte) error {
		statement := buildCreateUserStatement(username, string(plaintext), cfg.Roles, expires)
		logger.Debug("creating database user %s on %s with password %s", username, cfg.Hostname, logging.Secret(string(plaintext)))

		if err := d.Executor.CreateUser(ctx, cfg.Hostname, admin.Username, admin.Password, statement); err != nil {
			result = skip(resource.Name, fmt.Sprintf("failed to create database user: %v", err))
			return nil
		}

		credential := DatabaseCredential{
			Hostname: cfg.Hostname,
			Username: username,
			Password: string(plaintext),
		}
		payload, err := json.Marshal(credential)
		if err != nil {
			logger.Error("%s: %s", resource.Name, recoveryWarning)
			result = skip(resource.Name, recoveryWarning)
			return nil
		}

		result = writeAfterMutation(store, logger, resource, string(payload), expires, "application/json")
		return nil
	})
	if secureErr != nil {
		return skip(resource.Name, fmt.Sprintf("failed to protect generated password in memory: %v", secureErr))
	}
	return result
}

// buildCreateUserStatement builds the DDL statement:
//
//	CREATE USER "<username>" WITH PASSWORD '<password>' [IN ROLE "<r1>", "<r2>"] VALID UNTIL '<expires>'
//
// The IN ROLE clause is omitted entirely when roles is empty.
func buildCreateUserStatement(username, password string, roles []string, expires time.Time) string {
	var b strings.Builder
	b.WriteString("CREATE USER ")
	b.WriteString(dbexec.QuoteIdentifier(username))
	b.WriteString(" WITH PASSWORD ")
	b.WriteString(dbexec.QuoteLiteral(password))

	if len(roles) > 0 {
		quoted := make([]string, len(roles))
		for i, role := range roles {
			quoted[i] = dbexec.QuoteIdentifier(role)
		}
		b.WriteString(" IN ROLE ")
		b.WriteString(strings.Join(quoted, ", "))
	}

	b.WriteString(" VALID UNTIL ")
	b.WriteString(dbexec.QuoteLiteral(expires.UTC().Format(time.RFC3339)))

	return b.String()
}
