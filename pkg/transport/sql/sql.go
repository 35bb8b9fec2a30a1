// Package sql embeds the statements used by the transport and the
// persistence store. Each statement is preceded by a "-- pgbus.<key>" line.
package sql

import (
	_ "embed"
)

//go:embed objects.sql
var Objects string

//go:embed queries.sql
var Queries string
