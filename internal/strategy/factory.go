package strategy

import "fmt"

// Factory is a named registry of Strategy constructors: concrete
// strategies register themselves under a name, and callers build one by
// that name instead of depending on the concrete type directly.
type Factory struct {
	builders map[string]func() Strategy
}

// NewFactory creates an empty strategy factory.
func NewFactory() *Factory {
	return &Factory{builders: make(map[string]func() Strategy)}
}

// Register adds a named constructor. Re-registering an existing name
// overwrites it (useful for tests supplying fakes).
func (f *Factory) Register(name string, builder func() Strategy) {
	f.builders[name] = builder
}

// Build constructs the named strategy.
func (f *Factory) Build(name string) (Strategy, error) {
	builder, ok := f.builders[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown strategy %q", name)
	}
	return builder(), nil
}

// PredictionFactory is the PredictionMarketStrategy analogue of Factory.
type PredictionFactory struct {
	builders map[string]func() PredictionMarketStrategy
}

// NewPredictionFactory creates an empty prediction-strategy factory.
func NewPredictionFactory() *PredictionFactory {
	return &PredictionFactory{builders: make(map[string]func() PredictionMarketStrategy)}
}

// Register adds a named constructor.
func (f *PredictionFactory) Register(name string, builder func() PredictionMarketStrategy) {
	f.builders[name] = builder
}

// Build constructs the named strategy.
func (f *PredictionFactory) Build(name string) (PredictionMarketStrategy, error) {
	builder, ok := f.builders[name]
	if !ok {
		return nil, fmt.Errorf("strategy: unknown prediction strategy %q", name)
	}
	return builder(), nil
}
