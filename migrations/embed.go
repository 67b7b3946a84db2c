// Package migrations compiles the SQL migration files into the binary
// so the schema can be applied without shipping loose .sql files
// alongside the executable.
package migrations

import (
	"embed"

	"github.com/nerrad567/tuya-fusion-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // embedded files sit at the FS root
}
