package application

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"

	"github.com/ahrav/opflow/infrastructure/operators"
	"github.com/ahrav/opflow/internal/compile"
	"github.com/ahrav/opflow/internal/graph"
)

// GraphLoader parses, validates, and compiles YAML topology
// specifications. Building the named graph for a given specification is
// cached by SHA-256 content hash and deduplicated with singleflight;
// compilation always produces a fresh Store, since a Store carries
// mutable per-group operator state that must not be shared between
// callers.
type GraphLoader struct {
	// validator performs struct tag and custom semantic validation of
	// topology configurations.
	validator *validator.Validate
	// registry creates operators from their declared type and params.
	registry *OperatorRegistry
	// cache stores built named graphs by content hash. Cached graphs are
	// topology prototypes only; they must not be mutated after building.
	cache   map[string]*loadedTopology
	cacheMu sync.RWMutex
	// sf prevents duplicate graph building when multiple goroutines load
	// the same specification simultaneously.
	sf singleflight.Group
}

type loadedTopology struct {
	config *TopologyConfig
	named  *graph.Named
}

// NewGraphLoader creates a loader backed by the given registry.
func NewGraphLoader(registry *OperatorRegistry) (*GraphLoader, error) {
	v := validator.New()
	if err := registerCustomValidators(v); err != nil {
		return nil, fmt.Errorf("failed to register validators: %w", err)
	}
	return &GraphLoader{
		validator: v,
		registry:  registry,
		cache:     make(map[string]*loadedTopology),
	}, nil
}

// LoadFromFile loads a topology from a YAML file and compiles it.
func (gl *GraphLoader) LoadFromFile(path string) (*compile.Store, *TopologyConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading topology file %s: %w", path, err)
	}
	return gl.LoadFromBytes(data)
}

// LoadFromReader loads a topology from r and compiles it.
func (gl *GraphLoader) LoadFromReader(r io.Reader) (*compile.Store, *TopologyConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading topology: %w", err)
	}
	return gl.LoadFromBytes(data)
}

// LoadFromBytes parses, validates, builds, and compiles a topology.
// Byte-identical specifications share one cached build; each call still
// returns an independently compiled Store.
func (gl *GraphLoader) LoadFromBytes(data []byte) (*compile.Store, *TopologyConfig, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	v, err, _ := gl.sf.Do(hash, func() (any, error) {
		if lt, ok := gl.getCached(hash); ok {
			return lt, nil
		}

		config, err := gl.parseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if err := gl.validateConfig(config); err != nil {
			return nil, fmt.Errorf("validation failed: %w", err)
		}
		named, err := gl.buildNamed(config)
		if err != nil {
			return nil, fmt.Errorf("failed to build graph: %w", err)
		}

		lt := &loadedTopology{config: config, named: named}
		gl.cacheMu.Lock()
		gl.cache[hash] = lt
		gl.cacheMu.Unlock()
		return lt, nil
	})
	if err != nil {
		return nil, nil, err
	}

	lt := v.(*loadedTopology)
	hg, _, err := lt.named.ToHandleGraph()
	if err != nil {
		return nil, nil, fmt.Errorf("resolving graph: %w", err)
	}
	store, err := compile.Compile(hg, lt.config.Groups)
	if err != nil {
		return nil, nil, fmt.Errorf("compiling graph: %w", err)
	}
	return store, lt.config, nil
}

func (gl *GraphLoader) getCached(hash string) (*loadedTopology, bool) {
	gl.cacheMu.RLock()
	defer gl.cacheMu.RUnlock()
	lt, ok := gl.cache[hash]
	return lt, ok
}

func (gl *GraphLoader) parseYAML(data []byte) (*TopologyConfig, error) {
	var config TopologyConfig
	decoder := yaml.NewDecoder(strings.NewReader(string(data)))
	decoder.KnownFields(true)
	if err := decoder.Decode(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func (gl *GraphLoader) validateConfig(config *TopologyConfig) error {
	if err := gl.validator.Struct(config); err != nil {
		return err
	}

	// Struct tags cannot see across fields: node IDs must be unique, and
	// the root must not collide with an operator.
	seen := map[string]struct{}{config.Root.ID: {}}
	for _, oc := range config.Operators {
		if _, dup := seen[oc.ID]; dup {
			return fmt.Errorf("duplicate node id %q", oc.ID)
		}
		seen[oc.ID] = struct{}{}
	}
	if len(config.Root.Aliases) > config.Root.Width {
		return fmt.Errorf("root declares %d aliases for %d ports",
			len(config.Root.Aliases), config.Root.Width)
	}
	return nil
}

// buildNamed turns a validated config into a name-keyed graph. Edge
// references are resolved lazily by the graph itself, so forward
// references between operators work in any declaration order.
func (gl *GraphLoader) buildNamed(config *TopologyConfig) (*graph.Named, error) {
	n := graph.NewNamed()

	root, err := operators.NewPassthroughRoot(config.Root.Width)
	if err != nil {
		return nil, err
	}
	if err := n.Root(config.Root.ID, root); err != nil {
		return nil, err
	}
	if len(config.Root.Aliases) > 0 {
		if err := n.Alias(config.Root.ID, config.Root.Aliases...); err != nil {
			return nil, err
		}
	}

	for _, oc := range config.Operators {
		op, err := gl.registry.Create(oc.Type, oc.ID, oc.Params)
		if err != nil {
			return nil, err
		}
		if err := n.Add(oc.ID, op); err != nil {
			return nil, err
		}
		if err := n.Depends(oc.ID, oc.Inputs...); err != nil {
			return nil, err
		}
	}

	if err := n.SetOutput(config.Outputs...); err != nil {
		return nil, err
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return n, nil
}
