package translator

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// applyTools translates OpenAI tools into functionDeclarations and
// tool_choice into toolConfig.functionCallingConfig.
func applyTools(out string, rawJSON []byte) (string, error) {
	tools := gjson.GetBytes(rawJSON, "tools")
	if tools.Exists() && tools.IsArray() {
		var decls []interface{}
		for _, tool := range tools.Array() {
			if tool.Get("type").String() != "function" {
				continue
			}
			fn := tool.Get("function")
			decl := map[string]interface{}{
				"name": fn.Get("name").String(),
			}
			if desc := fn.Get("description"); desc.Exists() {
				decl["description"] = desc.String()
			}
			if params := fn.Get("parameters"); params.Exists() {
				decl["parameters"] = upperSchemaTypes(params.Value())
			}
			decls = append(decls, decl)
		}
		if len(decls) > 0 {
			declJSON, _ := json.Marshal([]interface{}{
				map[string]interface{}{"functionDeclarations": decls},
			})
			out, _ = sjson.SetRaw(out, "tools", string(declJSON))
		}
	}

	choice := gjson.GetBytes(rawJSON, "tool_choice")
	if !choice.Exists() {
		return out, nil
	}

	fcc := map[string]interface{}{}
	switch {
	case choice.Type == gjson.String && choice.String() == "none":
		fcc["mode"] = "NONE"
	case choice.Type == gjson.String && choice.String() == "auto":
		fcc["mode"] = "AUTO"
	case choice.Type == gjson.String && choice.String() == "required":
		fcc["mode"] = "ANY"
	case choice.IsObject():
		name := choice.Get("function.name").String()
		if name == "" {
			return "", fmt.Errorf("tool_choice object must name a function")
		}
		fcc["mode"] = "ANY"
		fcc["allowed_function_names"] = []string{name}
	default:
		return "", fmt.Errorf("unsupported tool_choice %s", choice.Raw)
	}

	fccJSON, _ := json.Marshal(map[string]interface{}{"functionCallingConfig": fcc})
	out, _ = sjson.SetRaw(out, "toolConfig", string(fccJSON))
	return out, nil
}

// upperSchemaTypes rewrites JSON Schema "type" values to the upstream's
// uppercase enum (OBJECT, STRING, ...) throughout a parameters tree.
func upperSchemaTypes(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			if k == "type" {
				if s, ok := val.(string); ok {
					out[k] = upperType(s)
					continue
				}
			}
			out[k] = upperSchemaTypes(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = upperSchemaTypes(val)
		}
		return out
	default:
		return v
	}
}

func upperType(s string) string {
	switch s {
	case "object":
		return "OBJECT"
	case "string":
		return "STRING"
	case "number":
		return "NUMBER"
	case "integer":
		return "INTEGER"
	case "boolean":
		return "BOOLEAN"
	case "array":
		return "ARRAY"
	case "null":
		return "NULL"
	default:
		return s
	}
}
