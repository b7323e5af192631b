// Package swagger embeds the OpenAPI document of the user API.
package swagger

import _ "embed"

// DocPath is where the document is served.
const DocPath = "/swagger/user.swagger.json"

// Doc is the Swagger 2.0 description of the user endpoints.
//
//go:embed user.swagger.json
var Doc []byte
