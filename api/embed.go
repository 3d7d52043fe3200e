// Package api holds the OpenAPI document of the explorer HTTP surface.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
