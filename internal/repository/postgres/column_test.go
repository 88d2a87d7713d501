package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lalith-99/gridbase/internal/apperr"
	"github.com/lalith-99/gridbase/internal/repository"
)

func TestValidateColumnInput(t *testing.T) {
	fkTarget := int64(7)

	tests := []struct {
		name    string
		in      repository.ColumnInput
		wantErr bool
	}{
		{"text ok", repository.ColumnInput{TableID: 1, Name: "Title", DataType: "text"}, false},
		{"number ok", repository.ColumnInput{TableID: 1, Name: "Qty", DataType: "number"}, false},
		{"boolean ok", repository.ColumnInput{TableID: 1, Name: "Done", DataType: "boolean"}, false},
		{"date ok", repository.ColumnInput{TableID: 1, Name: "Due", DataType: "date"}, false},
		{"file ok", repository.ColumnInput{TableID: 1, Name: "Doc", DataType: "file"}, false},
		{"relation with fk target ok", repository.ColumnInput{TableID: 1, Name: "Owner", DataType: "relation", IsForeignKey: true, ForeignTableID: &fkTarget}, false},
		{"missing name", repository.ColumnInput{TableID: 1, DataType: "text"}, true},
		{"unknown type", repository.ColumnInput{TableID: 1, Name: "X", DataType: "varchar"}, true},
		{"empty type", repository.ColumnInput{TableID: 1, Name: "X"}, true},
		{"fk without target", repository.ColumnInput{TableID: 1, Name: "Owner", DataType: "relation", IsForeignKey: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateColumnInput(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, apperr.IsValidation(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
