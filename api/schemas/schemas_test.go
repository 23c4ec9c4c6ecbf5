package schemas

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeDataFields(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		data *NodeData
		want []string
	}{
		{
			name: "database columns",
			data: &NodeData{
				SourceType: SourceDatabase,
				Database: &DatabaseSchema{
					Table:   "users",
					Columns: []ColumnSchema{{Name: "id"}, {Name: "email"}},
				},
			},
			want: []string{"id", "email"},
		},
		{
			name: "dataframe columns",
			data: &NodeData{
				SourceType: SourceDataframe,
				Dataframe:  &DataframeSchema{Columns: []ColumnSchema{{Name: "total"}}},
			},
			want: []string{"total"},
		},
		{
			name: "file fields",
			data: &NodeData{
				SourceType: SourceFile,
				File:       &FileSchema{Path: "data.csv", Fields: []ColumnSchema{{Name: "row"}}},
			},
			want: []string{"row"},
		},
		{
			name: "raw payloads have no enumerable fields",
			data: &NodeData{SourceType: SourceRaw, Raw: json.RawMessage(`{"a":1}`)},
			want: nil,
		},
		{
			name: "tag without matching schema",
			data: &NodeData{SourceType: SourceDatabase},
			want: nil,
		},
		{
			name: "nil receiver",
			data: nil,
			want: nil,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.data.Fields())
		})
	}
}

func TestProjectJSON(t *testing.T) {
	t.Parallel()

	t.Run("null controls survive a round trip", func(t *testing.T) {
		t.Parallel()
		p := Project{
			ID:   "p1",
			Name: "demo",
			Nodes: []ProjectNode{{
				ID:   "n1",
				Type: "table-source",
				Controls: map[string]*ControlRecord{
					"table":   {Kind: ControlInput, Key: "table", Value: "users"},
					"preview": nil,
				},
			}},
		}

		raw, err := json.Marshal(p)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"preview":null`)

		var back Project
		require.NoError(t, json.Unmarshal(raw, &back))
		require.Len(t, back.Nodes, 1)
		assert.Nil(t, back.Nodes[0].Controls["preview"])
		require.NotNil(t, back.Nodes[0].Controls["table"])
		assert.Equal(t, "users", back.Nodes[0].Controls["table"].Value)
	})

	t.Run("status values use their wire names", func(t *testing.T) {
		t.Parallel()
		raw, err := json.Marshal(NodePayload{Status: StatusIncomplete})
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"incomplete"`)
	})
}
