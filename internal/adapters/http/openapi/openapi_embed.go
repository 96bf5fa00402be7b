package openapi

import _ "embed"

// Document contains the embedded OpenAPI YAML specification.
//
//go:embed openapi.yaml
var Document []byte
