// Package migrations embeds the SQL schema migrations so the migrate binary
// carries them without needing the source tree at runtime.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
