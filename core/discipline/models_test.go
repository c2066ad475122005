package discipline

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/sistira/core"
)

func TestRef_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Ref
		wantErr bool
	}{
		{name: "id", data: `"d-1"`, want: Ref{ID: "d-1"}},
		{
			name: "inline with area id",
			data: `{"name": "Algebra", "study_area": "sa-1"}`,
			want: Ref{Name: "Algebra", StudyArea: StudyAreaRef{ID: "sa-1"}},
		},
		{
			name: "inline with inline area",
			data: `{"name": "Algebra", "description": "x", "study_area": {"name": "Mathematics"}}`,
			want: Ref{Name: "Algebra", Description: "x", StudyArea: StudyAreaRef{Name: "Mathematics"}},
		},
		{name: "number", data: `12`, wantErr: true},
		{name: "bad area", data: `{"name": "Algebra", "study_area": 12}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Ref
			err := json.Unmarshal([]byte(tt.data), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestCleanRefs(t *testing.T) {
	refs := []Ref{
		{ID: " d-1 "},
		{Name: " Algebra ", StudyArea: StudyAreaRef{Name: " Mathematics "}},
	}
	require.NoError(t, CleanRefs("disciplines", refs))
	assert.Equal(t, "d-1", refs[0].ID)
	assert.Equal(t, "Algebra", refs[1].Name)
	assert.Equal(t, "Mathematics", refs[1].StudyArea.Name)

	tests := []struct {
		name string
		refs []Ref
	}{
		{name: "empty", refs: []Ref{{}}},
		{name: "no study area", refs: []Ref{{Name: "Algebra"}}},
		{name: "no name", refs: []Ref{{StudyArea: StudyAreaRef{ID: "sa-1"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CleanRefs("disciplines", tt.refs)
			vErr, ok := err.(*core.ValidationError)
			require.True(t, ok, "CleanRefs() error = %v", err)
			assert.Equal(t, "disciplines", vErr.Fields[0].Field)
		})
	}
}
