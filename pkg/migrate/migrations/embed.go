// Package migrations embeds the goose SQL migrations so every binary ships
// with the schema it expects.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
