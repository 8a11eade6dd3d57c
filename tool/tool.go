// Package tool implements the four-stage tool-call pipeline (validation,
// permission, execution, inquiry loop) that turns a model-issued
// convo.ToolCallRequest into a convo.ToolCallResponse (spec §4.6).
package tool

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RunMode controls how a tool's permission stage behaves.
type RunMode string

const (
	RunAlways     RunMode = "always"
	RunAsk        RunMode = "ask"
	RunEdit       RunMode = "edit"
	RunSkip       RunMode = "skip"
	RunUnattended RunMode = "unattended"
)

// Tool is a callable function exposed to the model: its name, description,
// parameter schema (a core JSON Schema subset), and its run mode.
type Tool struct {
	Name        string
	Description string
	Parameters  json.RawMessage
	RunMode     RunMode
}

// Error is the tool-error taxonomy (spec §7.2). Only NeedsInput is
// non-terminal; every other variant ends the call with
// ToolCallResponse.Result = Err(text).
type Error struct {
	Kind    string // "not_found" | "disabled" | "arguments" | "skipped" | "cancelled" | "timeout" | "serde" | "open_editor" | "template"
	Message string

	Missing []string // Kind == "arguments"
	Unknown []string // Kind == "arguments"
}

func (e *Error) Error() string { return e.Message }

func notFoundErr(name string) *Error {
	return &Error{Kind: "not_found", Message: fmt.Sprintf("tool not found: %s", name)}
}

func disabledErr(name string) *Error {
	return &Error{Kind: "disabled", Message: fmt.Sprintf("tool disabled: %s", name)}
}

func argumentsErr(missing, unknown []string) *Error {
	return &Error{
		Kind:    "arguments",
		Message: fmt.Sprintf("invalid arguments (missing: %v, unknown: %v)", missing, unknown),
		Missing: missing,
		Unknown: unknown,
	}
}

func skippedErr(reason string) *Error {
	msg := "tool execution skipped"
	if reason != "" {
		msg += ": " + reason
	}
	return &Error{Kind: "skipped", Message: msg}
}

func cancelledErr() *Error {
	return &Error{Kind: "cancelled", Message: "cancelled"}
}

// schemaObject is the minimal JSON Schema subset validation understands:
// an object with properties, required keys, and optional defaults.
type schemaObject struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties"`
	Required   []string                  `json:"required"`
}

type schemaProperty struct {
	Type       string                    `json:"type"`
	Default    json.RawMessage           `json:"default,omitempty"`
	Properties map[string]schemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
	Items      *schemaProperty           `json:"items,omitempty"`
}

// ValidateArguments checks args against schema: every required key must be
// present, every key must be declared (recursing into nested objects and
// array items), and default values are applied for parameters the model
// omitted. It returns the (possibly defaulted) arguments, or an "arguments"
// Error naming every missing/unknown key.
func ValidateArguments(schema json.RawMessage, args map[string]any) (map[string]any, *Error) {
	var root schemaObject
	if len(schema) == 0 {
		return args, nil
	}
	if err := json.Unmarshal(schema, &root); err != nil {
		return args, nil
	}

	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}

	var missing, unknown []string
	validateObject(root.Properties, root.Required, out, &missing, &unknown)

	if len(missing) == 0 && len(unknown) == 0 {
		return out, nil
	}
	sort.Strings(missing)
	sort.Strings(unknown)
	return out, argumentsErr(missing, unknown)
}

// validateObject fills in defaults and collects missing/unknown keys for
// one object level of args against properties/required, then recurses
// into nested object properties and array items so a schema like
// patterns: array<{old, new}> validates each element's own keys.
func validateObject(properties map[string]schemaProperty, required []string, out map[string]any, missing, unknown *[]string) {
	for key, prop := range properties {
		v, ok := out[key]
		if !ok {
			if len(prop.Default) > 0 {
				var def any
				if json.Unmarshal(prop.Default, &def) == nil {
					out[key] = def
					v, ok = def, true
				}
			}
			if !ok {
				if contains(required, key) {
					*missing = append(*missing, key)
				}
				continue
			}
		}
		validateNested(prop, v, missing, unknown)
	}
	for key := range out {
		if _, ok := properties[key]; !ok {
			*unknown = append(*unknown, key)
		}
	}
}

// validateNested descends into v according to prop's declared shape:
// an object's own properties, or each element of an array's items.
func validateNested(prop schemaProperty, v any, missing, unknown *[]string) {
	switch prop.Type {
	case "object":
		if m, ok := v.(map[string]any); ok {
			validateObject(prop.Properties, prop.Required, m, missing, unknown)
		}
	case "array":
		if prop.Items == nil || prop.Items.Type != "object" {
			return
		}
		items, ok := v.([]any)
		if !ok {
			return
		}
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				validateObject(prop.Items.Properties, prop.Items.Required, m, missing, unknown)
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
