package strategy

import "encoding/json"

// parseJSONBodyOrEmptyObject parses body as JSON into the tree shape the
// template engine expects (spec §4.2: "if the body is empty or not valid
// JSON the value is an empty object").
func parseJSONBodyOrEmptyObject(body []byte) any {
	if len(body) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return map[string]any{}
	}
	return v
}
