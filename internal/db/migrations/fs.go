// Package migrations embeds the recorder schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
