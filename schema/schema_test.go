package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw json.RawMessage) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestOpenAIStrictMarksAdditionalPropertiesFalseAndRequiresAll(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string"},
			"recursive": {"type": "boolean", "default": null}
		},
		"required": ["path"]
	}`)
	out, err := OpenAIStrict(raw)
	require.NoError(t, err)
	m := decode(t, out)
	require.Equal(t, false, m["additionalProperties"])
	required := m["required"].([]any)
	require.ElementsMatch(t, []any{"path", "recursive"}, required)
	props := m["properties"].(map[string]any)
	recursive := props["recursive"].(map[string]any)
	_, hasDefault := recursive["default"]
	require.False(t, hasDefault)
}

func TestOpenAIStrictUnwrapsSingleElementAllOf(t *testing.T) {
	raw := json.RawMessage(`{"allOf": [{"type": "string", "description": "a path"}]}`)
	out, err := OpenAIStrict(raw)
	require.NoError(t, err)
	m := decode(t, out)
	require.Equal(t, "string", m["type"])
	require.Equal(t, "a path", m["description"])
	_, hasAllOf := m["allOf"]
	require.False(t, hasAllOf)
}

func TestOpenAIStrictUnwrapsRefWithSiblings(t *testing.T) {
	raw := json.RawMessage(`{
		"$defs": {"Path": {"type": "string"}},
		"$ref": "#/$defs/Path",
		"description": "override"
	}`)
	out, err := OpenAIStrict(raw)
	require.NoError(t, err)
	m := decode(t, out)
	require.Equal(t, "string", m["type"])
	require.Equal(t, "override", m["description"])
	_, hasDefs := m["$defs"]
	require.True(t, hasDefs, "$defs is preserved by the OpenAI rewrite")
}

func TestGeminiInlinesRefsAndDropsDefs(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"$defs": {"Path": {"type": "string"}},
		"properties": {
			"path": {"$ref": "#/$defs/Path"},
			"count": {"type": "integer"}
		}
	}`)
	out, err := Gemini(raw)
	require.NoError(t, err)
	m := decode(t, out)
	_, hasDefs := m["$defs"]
	require.False(t, hasDefs)
	props := m["properties"].(map[string]any)
	path := props["path"].(map[string]any)
	require.Equal(t, "string", path["type"])
	ordering := m["propertyOrdering"].([]any)
	require.ElementsMatch(t, []any{"path", "count"}, ordering)
}

func TestGeminiRewritesConstAsSingleElementEnum(t *testing.T) {
	raw := json.RawMessage(`{"type": "string", "const": "fixed"}`)
	out, err := Gemini(raw)
	require.NoError(t, err)
	m := decode(t, out)
	_, hasConst := m["const"]
	require.False(t, hasConst)
	require.Equal(t, []any{"fixed"}, m["enum"])
}

type sampleParams struct {
	Path string `json:"path" jsonschema:"required"`
}

func TestFromStructProducesObjectSchema(t *testing.T) {
	raw, err := FromStruct(sampleParams{})
	require.NoError(t, err)
	m := decode(t, raw)
	require.Equal(t, "object", m["type"])
}
