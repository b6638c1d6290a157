package logging_test

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/systmms/credrotate/internal/logging"
)

// captureStderr runs fn with os.Stderr redirected to a pipe and returns
// everything written to it. None of these tests can run in parallel: they
// all mutate the package-level os.Stderr.
func captureStderr(fn func()) string {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestGeneratedPasswordNeverAppearsInInfoLog(t *testing.T) {
	logger := logging.New(false, true)
	password := "freshly-generated-admin-password-12345"

	output := captureStderr(func() {
		logger.Info("rotated administrator credential: %s", logging.Secret(password))
	})

	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, password)
	assert.Contains(t, output, "rotated administrator credential")
}

func TestGeneratedPasswordNeverAppearsInDebugLog(t *testing.T) {
	logger := logging.New(true, true)
	password := "debug-trace-storage-key-67890"

	output := captureStderr(func() {
		logger.Debug("regenerated key1: %s", logging.Secret(password))
	})

	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, password)
	assert.Contains(t, output, "[DEBUG]")
}

func TestMultipleSecretsInOneLineAllRedacted(t *testing.T) {
	logger := logging.New(false, true)

	password := "db-password-123"
	username := "rot_u8f2a9c1"
	hostname := "db1.example.com"

	output := captureStderr(func() {
		logger.Info("provisioned user %s@%s with password %s",
			logging.Secret(username), hostname, logging.Secret(password))
	})

	assert.Equal(t, 2, strings.Count(output, "[REDACTED]"))
	assert.NotContains(t, output, password)
	assert.NotContains(t, output, username)
	assert.Contains(t, output, hostname, "non-secret fields should not be redacted")
}

func TestRecoveryWarningIsNeverRedacted(t *testing.T) {
	// The store-update-after-external-mutation warning names the resource,
	// not a secret value, and must be fully readable by the operator who
	// has to act on it.
	logger := logging.New(false, true)

	output := captureStderr(func() {
		logger.Error("%s: store update failed after external mutation succeeded; re-initialization will be required to recover", "db-admin-secret")
	})

	assert.Contains(t, output, "db-admin-secret")
	assert.Contains(t, output, "re-initialization will be required to recover")
}

func TestDebugTracingSuppressedWithoutDebugFlag(t *testing.T) {
	logger := logging.New(false, true)

	output := captureStderr(func() {
		logger.Debug("generated password: %s", logging.Secret("should-not-appear"))
	})

	assert.Empty(t, output, "debug tracing must be silent unless explicitly enabled")
}

func TestColorCodesOmittedWhenNoColorSet(t *testing.T) {
	logger := logging.New(false, true)

	output := captureStderr(func() {
		logger.Info("wrote secret %s", "storage-key-2")
	})

	assert.NotContains(t, output, "\033[", "no ANSI escape codes when noColor is set")
	assert.Contains(t, output, "✓")
}

func TestColorCodesPresentWhenColorEnabled(t *testing.T) {
	logger := logging.New(false, false)

	output := captureStderr(func() {
		logger.Warn("store write failed for %s", "storage-key-2")
	})

	assert.Contains(t, output, "\033[33m", "warn should be colorized yellow when color is enabled")
}

func TestGoStringRedactionInFormattedStructs(t *testing.T) {
	logger := logging.New(false, true)

	type credential struct {
		Username string
		Password logging.Secret
	}
	cred := credential{Username: "rot_abc123", Password: logging.Secret("s3cr3t-value")}

	output := captureStderr(func() {
		logger.Info("issued credential: %#v", cred)
	})

	assert.Contains(t, output, "[REDACTED]")
	assert.NotContains(t, output, "s3cr3t-value")
}
