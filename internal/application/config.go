// Package application provides the orchestration layer above the
// compiled executor: declarative YAML topology configuration, the
// operator registry, the graph loader, and the multi-group engine.
package application

import (
	"gopkg.in/yaml.v3"
)

// TopologyConfig is the complete declarative specification of one
// executor DAG: its metadata, replica group count, root shape, operator
// set with wiring, and declared outputs. It is the entry point for
// YAML-driven deployments; programmatic callers may build graphs
// directly against internal/graph instead.
type TopologyConfig struct {
	// Version is the configuration schema version, semantic versioning.
	Version string `yaml:"version" validate:"required,semver"`
	// Metadata describes the topology for organization and discovery.
	Metadata Metadata `yaml:"metadata" validate:"required"`
	// Groups is the number of independent replica groups to compile.
	Groups int `yaml:"groups" validate:"required,min=1"`
	// HistoryCapacity hints the initial per-group history ring size in
	// rows. Zero lets the executor choose.
	HistoryCapacity int `yaml:"history_capacity" validate:"omitempty,min=1"`
	// Root declares the DAG's sole root node.
	Root RootConfig `yaml:"root" validate:"required"`
	// Operators declares every non-root node and its input wiring.
	Operators []OperatorConfig `yaml:"operators" validate:"required,min=1,dive"`
	// Outputs lists the edge references gathered into the emitted vector,
	// in order.
	Outputs []string `yaml:"outputs" validate:"required,min=1,dive,edgeref"`
}

// Metadata provides descriptive information about a topology.
type Metadata struct {
	// Name is the human-readable identifier for this topology.
	Name string `yaml:"name" validate:"required,min=1,max=255"`
	// Description explains the topology's purpose.
	Description string `yaml:"description" validate:"max=1000"`
	// Tags are categorical labels for filtering and grouping.
	Tags []string `yaml:"tags" validate:"max=20,dive,min=1,max=50"`
	// Labels are arbitrary key-value pairs for external integration.
	Labels map[string]string `yaml:"labels" validate:"max=50"`
}

// RootConfig declares the topology's root node: a passthrough of the
// incoming event row, optionally with per-port aliases so downstream
// wiring can say "price" instead of "quotes.0".
type RootConfig struct {
	// ID is the root's node name.
	ID string `yaml:"id" validate:"required,ident"`
	// Width is the event row width copied through the root.
	Width int `yaml:"width" validate:"required,min=1"`
	// Aliases names the root's output ports in order; fewer aliases than
	// Width is allowed.
	Aliases []string `yaml:"aliases" validate:"dive,ident"`
}

// OperatorConfig declares one non-root node.
type OperatorConfig struct {
	// ID is the node name, unique within the topology.
	ID string `yaml:"id" validate:"required,ident"`
	// Type selects the registered operator factory.
	Type string `yaml:"type" validate:"required,ident"`
	// Inputs are edge references ("node", "node.port", or a root port
	// alias) wired to the operator's input slots in order. Operators with
	// zero inputs omit the list.
	Inputs []string `yaml:"inputs" validate:"dive,edgeref"`
	// Params holds type-specific configuration, decoded and validated by
	// the operator factory.
	Params yaml.Node `yaml:"params"`
}
