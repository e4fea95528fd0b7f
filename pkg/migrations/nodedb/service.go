// Package nodedb holds all the migrations for the node database
package nodedb

import (
	"github.com/uptrace/bun/migrate"
)

// Migrations is the collection of all migrations for the node database
var Migrations = migrate.NewMigrations()
