// Package schema rewrites a core JSON Schema subset into the dialect
// each provider actually accepts for tool/structured-output parameters
// (spec §4.3.1). Tool authors produce one schema; each provider adapter
// asks this package for its own wire variant immediately before sending.
package schema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"
)

// FromStruct generates a JSON Schema document from a Go type, for tool
// authors who'd rather describe parameters as a struct than hand-write
// JSON. DoNotReference keeps the result free of $ref/$defs for the
// common case; nested types that still produce them are handled fine by
// OpenAIStrict/Gemini below.
func FromStruct(v any) (json.RawMessage, error) {
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	s := reflector.Reflect(v)
	return json.Marshal(s)
}

// OpenAIStrict rewrites raw into OpenAI's strict-mode tool-parameter
// subset: additionalProperties is set false on every object, every
// declared property becomes required, a single-element allOf is
// inlined, a $ref with sibling keys is unwrapped, and default: null is
// stripped. $defs and const are left untouched.
func OpenAIStrict(raw json.RawMessage) (json.RawMessage, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}
	rewriteOpenAINode(root, root)
	return json.Marshal(root)
}

func rewriteOpenAINode(node, root map[string]any) {
	if allOf, ok := node["allOf"].([]any); ok && len(allOf) == 1 {
		if sub, ok := allOf[0].(map[string]any); ok {
			delete(node, "allOf")
			mergeMissing(node, sub)
		}
	}

	if ref, ok := node["$ref"].(string); ok && len(node) > 1 {
		if resolved := resolveRef(root, ref); resolved != nil {
			delete(node, "$ref")
			mergeMissing(node, resolved)
		}
	}

	if v, ok := node["default"]; ok && v == nil {
		delete(node, "default")
	}

	if t, _ := node["type"].(string); t == "object" {
		node["additionalProperties"] = false
		if props, ok := node["properties"].(map[string]any); ok {
			node["required"] = sortedKeys(props)
			for _, v := range props {
				if sub, ok := v.(map[string]any); ok {
					rewriteOpenAINode(sub, root)
				}
			}
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		rewriteOpenAINode(items, root)
	}
}

// Gemini rewrites raw into Gemini's accepted subset: all $refs are
// inlined (Gemini does not honor them), const becomes a single-element
// enum, objects with more than one property get an explicit
// propertyOrdering, and $defs/definitions are removed.
func Gemini(raw json.RawMessage) (json.RawMessage, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, err
	}

	inlined, ok := inlineRefs(root, root).(map[string]any)
	if !ok {
		return nil, nil
	}
	delete(inlined, "$defs")
	delete(inlined, "definitions")
	rewriteGeminiNode(inlined)
	return json.Marshal(inlined)
}

func rewriteGeminiNode(node map[string]any) {
	if c, ok := node["const"]; ok {
		delete(node, "const")
		node["enum"] = []any{c}
	}

	if t, _ := node["type"].(string); t == "object" {
		if props, ok := node["properties"].(map[string]any); ok {
			if len(props) > 1 {
				node["propertyOrdering"] = sortedKeys(props)
			}
			for _, v := range props {
				if sub, ok := v.(map[string]any); ok {
					rewriteGeminiNode(sub)
				}
			}
		}
	}

	if items, ok := node["items"].(map[string]any); ok {
		rewriteGeminiNode(items)
	}
}

func resolveRef(root map[string]any, ref string) map[string]any {
	if !strings.HasPrefix(ref, "#/") {
		return nil
	}
	var cur any = root
	for _, part := range strings.Split(strings.TrimPrefix(ref, "#/"), "/") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur, ok = m[part]
		if !ok {
			return nil
		}
	}
	m, _ := cur.(map[string]any)
	return m
}

// inlineRefs deep-copies node, replacing every $ref encountered
// (recursively, so a referenced schema that itself contains $refs is
// fully resolved) with the referenced document.
func inlineRefs(node any, root map[string]any) any {
	switch v := node.(type) {
	case map[string]any:
		if ref, ok := v["$ref"].(string); ok {
			if resolved := resolveRef(root, ref); resolved != nil {
				return inlineRefs(deepCopyMap(resolved), root)
			}
		}
		out := make(map[string]any, len(v))
		for k, val := range v {
			if k == "$ref" {
				continue
			}
			out[k] = inlineRefs(val, root)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = inlineRefs(val, root)
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMissing(dst, src map[string]any) {
	for k, v := range src {
		if _, exists := dst[k]; !exists {
			dst[k] = v
		}
	}
}

func sortedKeys(m map[string]any) []any {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
