// Package greenhouse provides embedded assets for production builds.
package greenhouse

import "embed"

// TemplateFS holds the UI templates. In dev mode (IsDev=true) templates are read from
// disk instead so edits show up without a rebuild.
//
//go:embed all:frontend/templates
var TemplateFS embed.FS
