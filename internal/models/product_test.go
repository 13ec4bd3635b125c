package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"racao", "racao"},
		{"RACAO", "racao"},
		{"  Racao ", "racao"},
		{"", ""},
		{"  ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeCategory(tt.input))
	}
}

func TestValidCategory(t *testing.T) {
	t.Run("accepts every taxonomy value in any casing", func(t *testing.T) {
		for _, category := range Categories {
			assert.True(t, ValidCategory(category))
		}
		assert.True(t, ValidCategory("PEIXES"))
		assert.True(t, ValidCategory(" Racao "))
	})

	t.Run("rejects values outside the taxonomy", func(t *testing.T) {
		assert.False(t, ValidCategory("brinquedos"))
		assert.False(t, ValidCategory(""))
		assert.False(t, ValidCategory("racão"))
	})
}

func TestInCategory(t *testing.T) {
	t.Run("matches case-insensitively", func(t *testing.T) {
		product := Product{Categoria: "Racao"}
		assert.True(t, product.InCategory("racao"))
		assert.True(t, product.InCategory("RACAO"))
	})

	t.Run("product without categoria never matches", func(t *testing.T) {
		product := Product{}
		assert.False(t, product.InCategory("racao"))
		assert.False(t, product.InCategory(""))
	})
}
