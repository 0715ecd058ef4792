package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableNames(t *testing.T) {
	tests := []struct {
		model interface{ TableName() string }
		want  string
	}{
		{&Project{}, "projects"},
		{&Plan{}, "plans"},
		{&Marker{}, "markers"},
		{&MarkerImage{}, "marker_images"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.model.TableName())
	}
}

func TestDatabaseModels(t *testing.T) {
	assert.Len(t, DatabaseModels, 4)
}
