package tool_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sidedotdev/jp/tool"
)

const sampleSchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string"},
		"recursive": {"type": "boolean", "default": false}
	},
	"required": ["path"]
}`

func TestValidateArgumentsAppliesDefault(t *testing.T) {
	args, err := tool.ValidateArguments(json.RawMessage(sampleSchema), map[string]any{"path": "/tmp"})
	require.Nil(t, err)
	require.Equal(t, "/tmp", args["path"])
	require.Equal(t, false, args["recursive"])
}

func TestValidateArgumentsMissingRequired(t *testing.T) {
	_, err := tool.ValidateArguments(json.RawMessage(sampleSchema), map[string]any{"recursive": true})
	require.NotNil(t, err)
	require.Equal(t, "arguments", err.Kind)
	require.Contains(t, err.Missing, "path")
}

func TestValidateArgumentsUnknownKey(t *testing.T) {
	_, err := tool.ValidateArguments(json.RawMessage(sampleSchema), map[string]any{"path": "/tmp", "bogus": 1})
	require.NotNil(t, err)
	require.Contains(t, err.Unknown, "bogus")
}

func TestValidateArgumentsNoSchemaPassesThrough(t *testing.T) {
	args, err := tool.ValidateArguments(nil, map[string]any{"anything": 1})
	require.Nil(t, err)
	require.Equal(t, 1, args["anything"])
}

// Mirrors the fs_modify_file schema: patterns is an array of
// { old: string (required), new: string (required) }.
const nestedArraySchema = `{
	"type": "object",
	"properties": {
		"path": {"type": "string"},
		"patterns": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"old": {"type": "string"},
					"new": {"type": "string"}
				},
				"required": ["old", "new"]
			}
		}
	},
	"required": ["path", "patterns"]
}`

func TestValidateArgumentsNestedArrayItemProperties(t *testing.T) {
	args, err := tool.ValidateArguments(json.RawMessage(nestedArraySchema), map[string]any{
		"path": "src/lib.rs",
		"patterns": []any{
			map[string]any{"old": "foo", "new": "bar"},
			map[string]any{"old": "a", "new": "b"},
		},
	})
	require.Nil(t, err)
	require.Len(t, args["patterns"], 2)
}

func TestValidateArgumentsNestedArrayItemUnknownKey(t *testing.T) {
	_, err := tool.ValidateArguments(json.RawMessage(nestedArraySchema), map[string]any{
		"path":     "src/lib.rs",
		"patterns": []any{map[string]any{"old": "foo", "new": "bar", "extra": true}},
	})
	require.NotNil(t, err)
	require.Equal(t, []string{"extra"}, err.Unknown)
	require.Empty(t, err.Missing)
}

func TestValidateArgumentsNestedArrayItemMissingRequired(t *testing.T) {
	_, err := tool.ValidateArguments(json.RawMessage(nestedArraySchema), map[string]any{
		"path":     "src/lib.rs",
		"patterns": []any{map[string]any{"old": "foo"}},
	})
	require.NotNil(t, err)
	require.Equal(t, []string{"new"}, err.Missing)
	require.Empty(t, err.Unknown)
}

const nestedObjectSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"config": {
			"type": "object",
			"properties": {
				"verbose": {"type": "boolean"},
				"output": {"type": "string"}
			},
			"required": ["output"]
		}
	},
	"required": ["name"]
}`

func TestValidateArgumentsNestedObjectProperties(t *testing.T) {
	args, err := tool.ValidateArguments(json.RawMessage(nestedObjectSchema), map[string]any{
		"name":   "test",
		"config": map[string]any{"verbose": true, "output": "out.txt"},
	})
	require.Nil(t, err)
	require.Equal(t, "out.txt", args["config"].(map[string]any)["output"])
}

func TestValidateArgumentsNestedObjectOptionalOmitted(t *testing.T) {
	args, err := tool.ValidateArguments(json.RawMessage(nestedObjectSchema), map[string]any{"name": "test"})
	require.Nil(t, err)
	require.Equal(t, "test", args["name"])
}

func TestValidateArgumentsNestedObjectUnknownKey(t *testing.T) {
	_, err := tool.ValidateArguments(json.RawMessage(nestedObjectSchema), map[string]any{
		"name":   "test",
		"config": map[string]any{"output": "o", "bogus": 1},
	})
	require.NotNil(t, err)
	require.Equal(t, []string{"bogus"}, err.Unknown)
	require.Empty(t, err.Missing)
}

func TestValidateArgumentsNestedObjectMissingRequired(t *testing.T) {
	_, err := tool.ValidateArguments(json.RawMessage(nestedObjectSchema), map[string]any{
		"name":   "test",
		"config": map[string]any{"verbose": true},
	})
	require.NotNil(t, err)
	require.Equal(t, []string{"output"}, err.Missing)
	require.Empty(t, err.Unknown)
}

const nestedDefaultsSchema = `{
	"type": "object",
	"properties": {
		"config": {
			"type": "object",
			"properties": {
				"verbose": {"type": "boolean", "default": true}
			}
		}
	}
}`

func TestValidateArgumentsAppliesDefaultsRecursivelyIntoObjects(t *testing.T) {
	args, err := tool.ValidateArguments(json.RawMessage(nestedDefaultsSchema), map[string]any{
		"config": map[string]any{},
	})
	require.Nil(t, err)
	require.Equal(t, true, args["config"].(map[string]any)["verbose"])
}

const nestedArrayDefaultsSchema = `{
	"type": "object",
	"properties": {
		"items": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"name": {"type": "string"},
					"enabled": {"type": "boolean", "default": true}
				}
			}
		}
	},
	"required": ["items"]
}`

func TestValidateArgumentsAppliesDefaultsRecursivelyIntoArrayItems(t *testing.T) {
	args, err := tool.ValidateArguments(json.RawMessage(nestedArrayDefaultsSchema), map[string]any{
		"items": []any{
			map[string]any{"name": "a"},
			map[string]any{"name": "b", "enabled": false},
		},
	})
	require.Nil(t, err)
	items := args["items"].([]any)
	require.Equal(t, true, items[0].(map[string]any)["enabled"])
	require.Equal(t, false, items[1].(map[string]any)["enabled"])
}
