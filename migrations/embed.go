package migrations

import "embed"

// Files embeds the schema migrations, applied in file name order.
//
//go:embed *.sql
var Files embed.FS
