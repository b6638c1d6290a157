package rotation

// Registry is a name-to-strategy mapping consulted by the outer driver to
// resolve each configured resource to its handler. Lookup failure for a
// configured resource is a per-resource skip, not a fatal error — callers
// should check Lookup's ok value and produce a skip RotationResult
// themselves.
type Registry struct {
	strategies map[string]Rotator
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Rotator)}
}

// Register adds a rotator under its own StrategyType tag.
func (r *Registry) Register(rotator Rotator) {
	r.strategies[rotator.StrategyType()] = rotator
}

// Lookup resolves a strategy tag to its rotator.
func (r *Registry) Lookup(strategyType string) (Rotator, bool) {
	rotator, ok := r.strategies[strategyType]
	return rotator, ok
}

// AsMap returns the registry's contents as the plain map OperationContext
// expects for its Rotators field.
func (r *Registry) AsMap() map[string]Rotator {
	out := make(map[string]Rotator, len(r.strategies))
	for k, v := range r.strategies {
		out[k] = v
	}
	return out
}
