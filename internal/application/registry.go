package application

import (
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ahrav/opflow/infrastructure/operators"
	"github.com/ahrav/opflow/internal/ports"
)

// FactoryFunc creates an operator from its declared parameters.
// Factories decode params into their config struct, validate it, and
// return descriptive errors for invalid input.
type FactoryFunc func(id string, params yaml.Node) (ports.Operator, error)

// OperatorRegistry manages operator factories for the graph loader. It
// is safe for concurrent use. The zero value is not usable; call
// NewOperatorRegistry.
type OperatorRegistry struct {
	mu        sync.RWMutex
	factories map[string]FactoryFunc
}

// NewOperatorRegistry creates an empty registry. Call
// RegisterBuiltinOperators to add the standard library, or Register to
// add custom factories.
func NewOperatorRegistry() *OperatorRegistry {
	return &OperatorRegistry{factories: make(map[string]FactoryFunc)}
}

// Register adds a factory for an operator type. Panics if opType is
// already registered: duplicate registrations indicate a programming
// error that should fail fast during initialization.
func (r *OperatorRegistry) Register(opType string, factory FactoryFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[opType]; exists {
		panic(fmt.Sprintf("operator type %q already registered", opType))
	}
	r.factories[opType] = factory
}

// Create instantiates an operator of the given type. Returns an error
// if the type is unknown or the factory rejects the parameters.
func (r *OperatorRegistry) Create(opType, id string, params yaml.Node) (ports.Operator, error) {
	r.mu.RLock()
	factory, ok := r.factories[opType]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown operator type %q for node %q", opType, id)
	}
	op, err := factory(id, params)
	if err != nil {
		return nil, fmt.Errorf("creating %q node %q: %w", opType, id, err)
	}
	return op, nil
}

// Types returns the registered type names, for diagnostics.
func (r *OperatorRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	return types
}

// decodeParams decodes a params node into cfg. An absent params node
// leaves cfg at its zero value.
func decodeParams(params yaml.Node, cfg any) error {
	if params.IsZero() {
		return nil
	}
	if err := params.Decode(cfg); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}

// windowParams is the parameter shape shared by the windowed aggregates.
type windowParams struct {
	Window operators.WindowSpec `yaml:"window"`
}

// dequeParams adds the deque capacity hint used by rolling min/max.
type dequeParams struct {
	Window       operators.WindowSpec `yaml:"window"`
	CapacityHint int                  `yaml:"capacity_hint"`
}

// scaleParams configures the scale operator's initial gain.
type scaleParams struct {
	Gain float64 `yaml:"gain"`
}

// RegisterBuiltinOperators wires the standard operator library into r.
func RegisterBuiltinOperators(r *OperatorRegistry) {
	windowed := func(create func(operators.WindowSpec) (ports.Operator, error)) FactoryFunc {
		return func(id string, params yaml.Node) (ports.Operator, error) {
			var p windowParams
			if err := decodeParams(params, &p); err != nil {
				return nil, err
			}
			return create(p.Window)
		}
	}

	r.Register("rolling_sum", windowed(func(w operators.WindowSpec) (ports.Operator, error) {
		return operators.NewRollingSum(w)
	}))
	r.Register("rolling_mean", windowed(func(w operators.WindowSpec) (ports.Operator, error) {
		return operators.NewRollingMean(w)
	}))
	r.Register("vwap", windowed(func(w operators.WindowSpec) (ports.Operator, error) {
		return operators.NewVWAP(w)
	}))
	r.Register("order_flow", windowed(func(w operators.WindowSpec) (ports.Operator, error) {
		return operators.NewOrderFlow(w)
	}))
	r.Register("book_imbalance", windowed(func(w operators.WindowSpec) (ports.Operator, error) {
		return operators.NewBookImbalance(w)
	}))
	r.Register("event_count", windowed(func(w operators.WindowSpec) (ports.Operator, error) {
		return operators.NewEventCount(w)
	}))

	r.Register("rolling_stddev", func(id string, params yaml.Node) (ports.Operator, error) {
		cfg := operators.RollingStdDevConfig{DDof: 1}
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return operators.NewRollingStdDev(cfg)
	})
	r.Register("lag", func(id string, params yaml.Node) (ports.Operator, error) {
		var cfg operators.LagConfig
		if err := decodeParams(params, &cfg); err != nil {
			return nil, err
		}
		return operators.NewLag(cfg)
	})
	r.Register("rolling_min", func(id string, params yaml.Node) (ports.Operator, error) {
		var p dequeParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return operators.NewRollingMin(p.Window, p.CapacityHint)
	})
	r.Register("rolling_max", func(id string, params yaml.Node) (ports.Operator, error) {
		var p dequeParams
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return operators.NewRollingMax(p.Window, p.CapacityHint)
	})

	r.Register("ohlc", func(id string, params yaml.Node) (ports.Operator, error) {
		return operators.NewOHLC(), nil
	})
	r.Register("log_return", func(id string, params yaml.Node) (ports.Operator, error) {
		return operators.NewLogReturn(), nil
	})
	r.Register("simple_return", func(id string, params yaml.Node) (ports.Operator, error) {
		return operators.NewSimpleReturn(), nil
	})
	r.Register("add", func(id string, params yaml.Node) (ports.Operator, error) {
		return operators.NewAdd(), nil
	})
	r.Register("scale", func(id string, params yaml.Node) (ports.Operator, error) {
		p := scaleParams{Gain: 1}
		if err := decodeParams(params, &p); err != nil {
			return nil, err
		}
		return operators.NewScale(p.Gain), nil
	})
}
