package application

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// identPattern constrains node names, aliases, and operator types to
	// lowercase snake_case so edge references parse unambiguously.
	identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

	// edgeRefPattern matches a node name, an alias, or a "name.port"
	// reference with a decimal port index.
	edgeRefPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[0-9]+)?$`)
)

func validateIdentTag(fl validator.FieldLevel) bool {
	return identPattern.MatchString(fl.Field().String())
}

func validateEdgeRefTag(fl validator.FieldLevel) bool {
	return edgeRefPattern.MatchString(fl.Field().String())
}

// registerCustomValidators installs the semantic validators the struct
// tags in config.go rely on beyond validator's built-in set.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("ident", validateIdentTag); err != nil {
		return fmt.Errorf("registering ident validator: %w", err)
	}
	if err := v.RegisterValidation("edgeref", validateEdgeRefTag); err != nil {
		return fmt.Errorf("registering edgeref validator: %w", err)
	}
	return nil
}
