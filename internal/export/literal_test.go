package export

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"null", nil, "NULL"},
		{"int64", int64(2021), "2021"},
		{"negative int", -7, "-7"},
		{"float", 103.4, "103.4"},
		{"whole float", 100.0, "100"},
		{"small float", 0.000001, "1e-06"},
		{"bool", true, "1"},
		{"text", "Austin, TX", "'Austin, TX'"},
		{"quote", "Coeur d'Alene, ID", "'Coeur d''Alene, ID'"},
		{"injection", "x'); DROP TABLE msas; --", "'x''); DROP TABLE msas; --'"},
		{"unicode", "Española, NM", "'Española, NM'"},
		{"empty", "", "''"},
		{"blob", []byte{0xde, 0xad}, "X'dead'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiteral_Rejects(t *testing.T) {
	for name, v := range map[string]any{
		"nan":     math.NaN(),
		"inf":     math.Inf(1),
		"nul":     "a\x00b",
		"utf8":    string([]byte{0xff, 0xfe}),
		"complex": complex(1, 2),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Literal(v)
			require.ErrorIs(t, err, ErrUnrepresentable)
		})
	}
}
