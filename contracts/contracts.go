// Package contracts embeds the OpenAPI documents served and enforced by the API.
package contracts

import (
	_ "embed"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed module-lifecycle.yaml
var moduleLifecycleYAML []byte

// ModuleLifecycle parses and validates the module lifecycle contract.
func ModuleLifecycle() (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromData(moduleLifecycleYAML)
	if err != nil {
		return nil, fmt.Errorf("load module lifecycle contract: %w", err)
	}
	if err := spec.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate module lifecycle contract: %w", err)
	}
	return spec, nil
}
