package swagger

import _ "embed"

// OpenAPI is the API description served at SpecPath.
//
//go:embed openapi.yaml
var OpenAPI []byte
