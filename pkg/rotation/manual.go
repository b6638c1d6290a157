package rotation

import (
	"context"
	"time"

	"github.com/systmms/credrotate/internal/logging"
)

// ManualStrategyType is the tag for the manual/generic strategy.
const ManualStrategyType = "manual/generic"

// ManualRotator stores an operator-supplied value verbatim. It performs no
// external I/O: initialization and rotation are identical.
type ManualRotator struct {
	Clock  Clock
	Logger *logging.Logger
}

// NewManualRotator constructs a ManualRotator. clock defaults to
// SystemClock when nil.
func NewManualRotator(clock Clock) *ManualRotator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &ManualRotator{Clock: clock}
}

func (m *ManualRotator) StrategyType() string { return ManualStrategyType }

func (m *ManualRotator) Initialize(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := m.Clock.Now()
	return runInitialize(resource, opCtx, now, func() RotationResult {
		return m.performRotation(opCtx, resource, now)
	})
}

func (m *ManualRotator) Rotate(ctx context.Context, opCtx OperationContext, resource ResourceConfiguration) RotationResult {
	now := m.Clock.Now()
	return runRotate(resource, opCtx, now, func() RotationResult {
		return m.performRotation(opCtx, resource, now)
	})
}

func (m *ManualRotator) performRotation(opCtx OperationContext, resource ResourceConfiguration, now time.Time) RotationResult {
	store := opCtx.Store(resource)

	if opCtx.IsWhatIf {
		return whatIf(resource.Name, "written the configured secret value")
	}

	expires := expiresAt(resource, now)
	return write(store, m.Logger, resource, opCtx.SecretValue1, expires, resource.ContentType)
}
