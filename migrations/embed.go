// Package migrations embeds the schema for every supported database driver.
// Each driver has its own directory named after the driver.
package migrations

import "embed"

// FS holds postgres/*.sql and sqlite3/*.sql.
//
//go:embed postgres/*.sql sqlite3/*.sql
var FS embed.FS
