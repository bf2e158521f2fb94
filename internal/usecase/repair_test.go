package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepair_ExtractsArrayFromMalformedText(t *testing.T) {
	engine := NewRepairEngine("marketplace_id")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "clean array",
			input: `[{"value":"leather"}]`,
			want:  `[{"value":"leather"}]`,
		},
		{
			name:  "array with whitespace",
			input: "[\n  {\"value\": \"leather\"},\n  {\"value\": \"suede\"}\n]",
			want:  `[{"value":"leather"},{"value":"suede"}]`,
		},
		{
			name:  "array surrounded by prose",
			input: `Here are the generated values: [{"color":"red"}] hope that helps!`,
			want:  `[{"color":"red"}]`,
		},
		{
			name:  "escaped quoting",
			input: `"[{\"value\":\"leather\"}]"`,
			want:  `[{"value":"leather"}]`,
		},
		{
			name:  "trailing comma",
			input: `[{"value":"red"},]`,
			want:  `[{"value":"red"}]`,
		},
		{
			name:  "leading byte order mark",
			input: "\uFEFF[1,2,3]",
			want:  `[1,2,3]`,
		},
		{
			name:  "brackets inside string values",
			input: `noise [{"note":"sizes [S] and [M]"}] more noise`,
			want:  `[{"note":"sizes [S] and [M]"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.Repair(tt.input)
			require.True(t, result.IsValidArray, "expected valid array, got error: %s", result.ValidationError)
			assert.Equal(t, tt.want, result.Compressed)
		})
	}
}

func TestRepair_Idempotent(t *testing.T) {
	engine := NewRepairEngine("marketplace_id")

	inputs := []string{
		`[{"value":"leather"}]`,
		`  [ {"value": "red"} , {"value": "blue"} ]  `,
		`"[{\"value\":\"leather\"}]"`,
		`{"value":"not an array"}`,
		`total garbage, no json here`,
		`prefix [1, 2, 2, 3,] suffix`,
		`[{"value":"x","marketplace_id":"ATVPDKIKX0DER"}]`,
	}

	for _, input := range inputs {
		first := engine.Repair(input)
		second := engine.Repair(first.Compressed)
		assert.Equal(t, first.Compressed, second.Compressed, "input: %q", input)
		assert.False(t, second.WasModified, "second pass modified output of input: %q", input)
	}
}

func TestRepair_StripsRestrictedField(t *testing.T) {
	engine := NewRepairEngine("marketplace_id")

	t.Run("top level", func(t *testing.T) {
		result := engine.Repair(`[{"value":"red","marketplace_id":"ATVPDKIKX0DER"}]`)
		require.True(t, result.IsValidArray)
		assert.True(t, result.HadRestrictedField)
		assert.Equal(t, `[{"value":"red"}]`, result.Compressed)
	})

	t.Run("nested", func(t *testing.T) {
		result := engine.Repair(`[{"value":{"marketplace_id":"X","text":"red"}}]`)
		require.True(t, result.IsValidArray)
		assert.True(t, result.HadRestrictedField)
		assert.Equal(t, `[{"value":{"text":"red"}}]`, result.Compressed)
	})

	t.Run("absent", func(t *testing.T) {
		result := engine.Repair(`[{"value":"red"}]`)
		assert.False(t, result.HadRestrictedField)
	})
}

func TestRepair_DoubleEncodedJSON(t *testing.T) {
	engine := NewRepairEngine("")

	// A JSON string whose content is itself JSON.
	result := engine.Repair(`"[1,2,3]"`)
	require.True(t, result.IsValidArray)
	assert.Equal(t, `[1,2,3]`, result.Compressed)
}

func TestRepair_NonArrayResult(t *testing.T) {
	engine := NewRepairEngine("")

	result := engine.Repair(`{"value":"red"}`)
	assert.False(t, result.IsValidArray)
	assert.Contains(t, result.ValidationError, "object")
	// Best-effort cleaned structure is still returned.
	assert.Equal(t, `{"value":"red"}`, result.Compressed)
}

func TestRepair_UnparseableInput(t *testing.T) {
	engine := NewRepairEngine("marketplace_id")

	result := engine.Repair("this is not json")
	assert.False(t, result.IsValidArray)
	assert.Equal(t, "none", result.Method)
	assert.NotEmpty(t, result.ValidationError)
}

func TestRepair_MethodReporting(t *testing.T) {
	engine := NewRepairEngine("")

	tests := []struct {
		input  string
		method string
	}{
		{`[1,2]`, "direct_parse"},
		{`noise [1,2] noise`, "balanced_extraction"},
		{`[1,2,]`, "cleanup_retry"},
	}
	for _, tt := range tests {
		result := engine.Repair(tt.input)
		assert.Equal(t, tt.method, result.Method, "input: %q", tt.input)
	}
}

func TestRepair_WasModified(t *testing.T) {
	engine := NewRepairEngine("")

	unchanged := engine.Repair(`[{"value":"red"}]`)
	assert.False(t, unchanged.WasModified)

	changed := engine.Repair(`[ {"value": "red"} ]`)
	assert.True(t, changed.WasModified)
}
