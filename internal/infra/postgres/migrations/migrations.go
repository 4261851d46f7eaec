package migrations

import "github.com/uptrace/bun/migrate"

// Migrations holds every schema change, ordered by file name.
var Migrations = migrate.NewMigrations()
