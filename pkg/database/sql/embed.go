// Package sql embeds the settlement schema so deployments can bootstrap
// a fresh database without shipping migration files separately.
package sql

import _ "embed"

//go:embed schema.sql
var Schema string
