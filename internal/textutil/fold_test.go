package textutil_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rezonia/cufe-expenses/internal/textutil"
)

func TestFold(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"DESCRIPCIÓN", "descripcion"},
		{"Razón Social", "razon social"},
		{"Café", "cafe"},
		{"Señor", "senor"},
		{"plain", "plain"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, textutil.Fold(tt.input))
		})
	}
}

func TestContainsFolded(t *testing.T) {
	assert.True(t, textutil.ContainsFolded("CAFÉ AMERICANO GRANDE", "cafe"))
	assert.True(t, textutil.ContainsFolded("Droguería Central", "DROGUERIA"))
	assert.False(t, textutil.ContainsFolded("Pan tajado", "leche"))
}

func TestContainsAnyFolded(t *testing.T) {
	assert.True(t, textutil.ContainsAnyFolded("Descripción Cantidad Valor", "producto", "descripcion"))
	assert.False(t, textutil.ContainsAnyFolded("Cantidad Valor", "producto", "descripcion"))
}

func TestNonEmptyLines(t *testing.T) {
	lines := textutil.NonEmptyLines("  a \r\n\n\t b\n   \nc")
	assert.Equal(t, []string{"a", "b", "c"}, lines)
}

func TestCollapseSpaces(t *testing.T) {
	assert.Equal(t, "a b c", textutil.CollapseSpaces("  a \t b\n c "))
}
