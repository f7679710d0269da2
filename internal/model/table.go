package model

// ColumnType is the storage type of a mirrored column.
type ColumnType string

const (
	ColumnText    ColumnType = "TEXT"
	ColumnNumeric ColumnType = "NUMERIC"
	ColumnBigint  ColumnType = "BIGINT"
	ColumnBool    ColumnType = "BOOLEAN"
)

// Column describes one mirrored column besides chain_id and id.
type Column struct {
	Name string
	Type ColumnType
}

// Table describes a mirrored entity table keyed by (chain_id, id).
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames returns the column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Row is one mirrored entity ready for upsert. Values holds string, int64,
// bool or nil per column; numeric columns carry decimal strings.
type Row struct {
	Table  string
	ID     string
	Values map[string]any
}
