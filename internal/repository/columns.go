package repository

import (
	"strconv"
	"strings"
)

// TableColumns names a table and its columns in insert order. Column lists
// must match the schema in internal/database/migrations.
type TableColumns struct {
	TableName string
	Columns   []string
}

// LeadColumns defines the columns for the leads table.
var LeadColumns = TableColumns{
	TableName: "leads",
	Columns: []string{
		"id",
		"session_id",
		"email",
		"service",
		"platform",
		"features",
		"lead_status",
		"issue",
		"created_at",
	},
}

// Select returns the comma-separated column list.
func (tc TableColumns) Select() string {
	return strings.Join(tc.Columns, ", ")
}

// Placeholders returns "$1, $2, ..." for every column.
func (tc TableColumns) Placeholders() string {
	ph := make([]string, len(tc.Columns))
	for i := range tc.Columns {
		ph[i] = "$" + strconv.Itoa(i+1)
	}
	return strings.Join(ph, ", ")
}

// InsertSQL returns an INSERT statement covering every column.
func (tc TableColumns) InsertSQL() string {
	return "INSERT INTO " + tc.TableName + " (" + tc.Select() + ") VALUES (" + tc.Placeholders() + ")"
}
