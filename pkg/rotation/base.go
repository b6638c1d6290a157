package rotation

import (
	"fmt"
	"time"

	"github.com/systmms/credrotate/internal/logging"
	"github.com/systmms/credrotate/pkg/secretstore"
)

const recoveryWarning = "store update failed after external mutation succeeded; re-initialization will be required to recover"

// quietLogger is what every strategy falls back to when it was constructed
// without a Logger: no debug tracing, but Error/Warn still go to stderr so
// the recovery-warning case in writeAfterMutation is never silent by
// default.
var quietLogger = logging.New(false, false)

// loggerOrDefault returns l, or quietLogger when l is nil. Every strategy's
// Logger field is optional; this keeps the zero value usable.
func loggerOrDefault(l *logging.Logger) *logging.Logger {
	if l == nil {
		return quietLogger
	}
	return l
}

// expiresAt computes now + resource.ExpirationDaysOrDefault() expressed in
// 24-hour units.
func expiresAt(resource ResourceConfiguration, now time.Time) time.Time {
	days := resource.ExpirationDaysOrDefault()
	return now.Add(time.Duration(days * float64(24*time.Hour)))
}

// write persists value to the store when no external mutation precedes it
// (the manual strategy's only step). A failure here is an ordinary store
// write failure, not the dangerous post-mutation case.
func write(store secretstore.Store, logger *logging.Logger, resource ResourceConfiguration, value string, expires time.Time, contentType string) RotationResult {
	logger = loggerOrDefault(logger)
	info, err := store.UpdateSecret(resource.Name, value, &expires, contentType)
	if err != nil || info == nil {
		logger.Warn("store write failed for %s", resource.Name)
		return skip(resource.Name, "store write failed")
	}
	logger.Debug("wrote %s, expires %s", resource.Name, expires.Format(time.RFC3339))
	return success(resource.Name, "rotated")
}

// writeAfterMutation persists value to the store after an external mutation
// has already succeeded. A write failure at this point is the single most
// dangerous case in the engine: the operator-visible contract requires the
// note to explicitly flag that re-initialization may be required, and it is
// always logged at Error level regardless of the caller's debug setting.
func writeAfterMutation(store secretstore.Store, logger *logging.Logger, resource ResourceConfiguration, value string, expires time.Time, contentType string) RotationResult {
	logger = loggerOrDefault(logger)
	info, err := store.UpdateSecret(resource.Name, value, &expires, contentType)
	if err != nil || info == nil {
		logger.Error("%s: %s", resource.Name, recoveryWarning)
		return skip(resource.Name, recoveryWarning)
	}
	logger.Debug("wrote %s, expires %s", resource.Name, expires.Format(time.RFC3339))
	return success(resource.Name, "rotated")
}

// runInitialize is the common entry point for Initialize: consult the
// evaluator, then delegate to perform (typically PerformRotation under a
// different name).
func runInitialize(resource ResourceConfiguration, opCtx OperationContext, now time.Time, perform func() RotationResult) RotationResult {
	store := opCtx.Store(resource)
	if store == nil {
		return skip(resource.Name, "no store configured")
	}

	cand, err := EvaluateInitializationCandidacy(resource, store, opCtx)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("store read failed: %v", err))
	}
	if cand.verdict != nil {
		return *cand.verdict
	}
	return perform()
}

// runRotate is the common entry point for Rotate.
func runRotate(resource ResourceConfiguration, opCtx OperationContext, now time.Time, perform func() RotationResult) RotationResult {
	store := opCtx.Store(resource)
	if store == nil {
		return skip(resource.Name, "no store configured")
	}

	cand, err := EvaluateRotationCandidacy(resource, store, opCtx, now)
	if err != nil {
		return skip(resource.Name, fmt.Sprintf("store read failed: %v", err))
	}
	if cand.verdict != nil {
		return *cand.verdict
	}
	return perform()
}

// whatIf returns the "Would have…" success verdict used by every strategy
// right before its first mutating call.
func whatIf(name, action string) RotationResult {
	return success(name, fmt.Sprintf("Would have %s", action))
}
