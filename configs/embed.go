// Package configs provides embedded configuration templates for CodeScout.
//
// Templates are embedded at build time with go:embed so they ship in
// every distribution. `codescout init` writes the project template to
// .codescout.yaml; see internal/config for the load hierarchy
// (defaults, project file, CODESCOUT_* environment variables).
package configs

import _ "embed"

// ProjectConfigTemplate is the annotated .codescout.yaml template.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
