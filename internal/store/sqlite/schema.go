package sqlite

import (
	"context"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableTests   = "tests"
	tableResults = "results"

	colID          = "id"
	colTitle       = "title"
	colDefinition  = "definition"
	colUpdatedAt   = "updated_at"
	colUserID      = "user_id"
	colTestID      = "test_id"
	colPlacedLevel = "placed_level"
	colRecord      = "record"
	colCreatedAt   = "created_at"
)

// tables describes the schema. Timestamps are Unix nanoseconds.
func tables() []*schema.Table {
	tests := schema.NewTable(tableTests).
		AddPrimary(&schema.Column{Name: colID, Type: field.TypeString}).
		AddColumn(&schema.Column{Name: colTitle, Type: field.TypeString, Default: ""}).
		AddColumn(&schema.Column{Name: colDefinition, Type: field.TypeString}).
		AddColumn(&schema.Column{Name: colUpdatedAt, Type: field.TypeInt64})

	results := schema.NewTable(tableResults).
		AddPrimary(&schema.Column{Name: colID, Type: field.TypeInt64, Increment: true}).
		AddColumn(&schema.Column{Name: colUserID, Type: field.TypeString}).
		AddColumn(&schema.Column{Name: colTestID, Type: field.TypeString}).
		AddColumn(&schema.Column{Name: colPlacedLevel, Type: field.TypeString}).
		AddColumn(&schema.Column{Name: colRecord, Type: field.TypeString}).
		AddColumn(&schema.Column{Name: colCreatedAt, Type: field.TypeInt64})
	results.AddIndex("results_user_id_created_at", false, []string{colUserID, colCreatedAt})

	return []*schema.Table{tests, results}
}

// migrate creates missing tables, columns and indexes. Columns are never
// dropped.
func migrate(ctx context.Context, drv *entsql.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables()...)
}
