// Package migrations embeds the SQL schema for reporting profiles and device
// credentials so the binary can migrate its database without the files on disk.
package migrations

import (
	"embed"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/database"
)

//go:embed *.sql
var schema embed.FS

func init() {
	database.Schema = schema
}
