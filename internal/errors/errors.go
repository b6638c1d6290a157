// Package errors wraps lower-level failures (SDK errors, configuration
// mistakes) with the operator-facing context the rotation engine's notes
// expect: what failed, and what to try next.
package errors

import (
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with
// helpful context.
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context.
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// ProviderError enhances a cloud-provider SDK error with operator-facing
// context.
func ProviderError(provider string, operation string, err error) error {
	suggestion := getProviderSuggestion(provider, err)

	return UserError{
		Message:    fmt.Sprintf("%s provider error during %s", provider, operation),
		Suggestion: suggestion,
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on provider and
// error text.
func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "azure-keyvault", "azure", "azure-postgresql", "azure-storage":
		switch {
		case strings.Contains(errStr, "Forbidden") || strings.Contains(errStr, "access denied"):
			return "Check access policies or RBAC role assignments for the target resource"
		case strings.Contains(errStr, "SecretNotFound") || strings.Contains(errStr, "404"):
			return "Verify the resource name exists. Names are case-sensitive"
		case strings.Contains(errStr, "Unauthorized") || strings.Contains(errStr, "401"):
			return "Check authentication: managed identity, service principal, or Azure CLI login"
		case strings.Contains(errStr, "tenant"):
			return "Check that the tenant ID is correct and the application is registered"
		default:
			return "Check Azure credentials and resource identifiers"
		}

	case "aws", "aws-secretsmanager":
		switch {
		case strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization"):
			return "Configure AWS credentials: 'aws configure' or set AWS_PROFILE"
		case strings.Contains(errStr, "AccessDenied"):
			return "Check IAM permissions for secretsmanager:GetSecretValue and secretsmanager:PutSecretValue"
		case strings.Contains(errStr, "ResourceNotFoundException"):
			return "Verify the secret name and region"
		case strings.Contains(errStr, "ThrottlingException"):
			return "AWS rate limit exceeded. Wait a moment and try again"
		default:
			return "Check AWS credentials, region, and IAM permissions"
		}

	case "gcp", "gcp-secretmanager":
		switch {
		case strings.Contains(errStr, "PermissionDenied"):
			return "Check IAM permissions: secretmanager.secrets.get, secretmanager.versions.access"
		case strings.Contains(errStr, "NotFound"):
			return "Verify the secret name and project ID"
		case strings.Contains(errStr, "Unauthenticated"):
			return "Set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'"
		default:
			return "Check GCP credentials, project ID, and IAM permissions for Secret Manager"
		}
	}

	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check network connectivity and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check network and provider configuration"
	}

	return ""
}

// IsRetryable checks if an error represents a transient condition.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout",
		"temporary failure",
		"connection reset",
		"broken pipe",
		"rate limit",
		"throttling",
		"too many requests",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
