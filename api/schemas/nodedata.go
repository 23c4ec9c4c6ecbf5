package schemas

import "encoding/json"

// SourceType tags which schema shape a NodeData carries.
type SourceType string

const (
	SourceDatabase  SourceType = "database"
	SourceDataframe SourceType = "dataframe"
	SourceFile      SourceType = "file"
	SourceRaw       SourceType = "raw"
)

// ColumnSchema describes a single field/column of a dataset.
type ColumnSchema struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable,omitempty"`
}

// DatabaseSchema describes a tabular database table.
type DatabaseSchema struct {
	Database string         `json:"database,omitempty"`
	Table    string         `json:"table"`
	Columns  []ColumnSchema `json:"columns"`
}

// DataframeSchema describes an in-memory dataframe produced by a transform.
type DataframeSchema struct {
	Columns []ColumnSchema `json:"columns"`
}

// FileSchema describes a columnar or nested file source.
type FileSchema struct {
	Path   string         `json:"path"`
	Format string         `json:"format,omitempty"`
	Fields []ColumnSchema `json:"fields"`
}

// NodeData is the most recent computed example/schema payload of one
// output port. It is a tagged union over the supported schema shapes:
// exactly one of Database/Dataframe/File/Raw is set, selected by SourceType.
// Downstream nodes consume it to build derived UI state such as
// field-mapping tables.
type NodeData struct {
	SourceType  SourceType       `json:"sourceType"`
	Name        string           `json:"name,omitempty"`
	ExampleRows []map[string]any `json:"exampleRows,omitempty"`

	Database  *DatabaseSchema  `json:"database,omitempty"`
	Dataframe *DataframeSchema `json:"dataframe,omitempty"`
	File      *FileSchema      `json:"file,omitempty"`
	Raw       json.RawMessage  `json:"raw,omitempty"`
}

// Fields returns the flat list of field names of whichever schema variant is
// set. Raw payloads have no enumerable fields and yield nil.
func (d *NodeData) Fields() []string {
	if d == nil {
		return nil
	}
	var cols []ColumnSchema
	switch d.SourceType {
	case SourceDatabase:
		if d.Database != nil {
			cols = d.Database.Columns
		}
	case SourceDataframe:
		if d.Dataframe != nil {
			cols = d.Dataframe.Columns
		}
	case SourceFile:
		if d.File != nil {
			cols = d.File.Fields
		}
	}
	if len(cols) == 0 {
		return nil
	}
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name)
	}
	return names
}
