package rotation

import (
	"time"

	"github.com/systmms/credrotate/pkg/secretstore"
)

// candidacy is the shared verdict the evaluator hands back to the rotator
// template: either "proceed", in which case verdict is nil, or a concrete
// skip result the caller should return unchanged.
type candidacy struct {
	verdict *RotationResult
}

func proceed() candidacy {
	return candidacy{}
}

func skipCandidacy(name, note string) candidacy {
	r := skip(name, note)
	return candidacy{verdict: &r}
}

// EvaluateInitializationCandidacy fetches the current secret. If present
// and Force is false, initialization is skipped as "already initialized".
func EvaluateInitializationCandidacy(resource ResourceConfiguration, store secretstore.Store, opCtx OperationContext) (candidacy, error) {
	info, err := store.GetSecret(resource.Name)
	if err != nil {
		return candidacy{}, err
	}
	if info != nil && !opCtx.Force {
		return skipCandidacy(resource.Name, "already initialized"), nil
	}
	return proceed(), nil
}

// EvaluateRotationCandidacy fetches the current secret. Absent means "not
// found"; present-but-not-due (per ShouldRotate) means "not due" unless
// Force is set.
func EvaluateRotationCandidacy(resource ResourceConfiguration, store secretstore.Store, opCtx OperationContext, now time.Time) (candidacy, error) {
	info, err := store.GetSecret(resource.Name)
	if err != nil {
		return candidacy{}, err
	}
	if info == nil {
		return skipCandidacy(resource.Name, "not found"), nil
	}
	if !opCtx.Force {
		if !ShouldRotate(*info, now, resource.ExpirationOverlapDays) {
			return skipCandidacy(resource.Name, "not due"), nil
		}
	}
	return proceed(), nil
}

// ShouldRotate returns false if info.ExpiresOn is absent; otherwise it
// computes the number of 24-hour days remaining until expiration and
// returns true when that is less than or equal to overlapDays. Exactly
// equal ties rotate.
func ShouldRotate(info secretstore.SecretInfo, now time.Time, overlapDays float64) bool {
	if info.ExpiresOn == nil {
		return false
	}
	daysToExpire := info.ExpiresOn.Sub(now).Hours() / 24
	return daysToExpire <= overlapDays
}
