package mcpserver

import (
	"encoding/json"
	"fmt"
)

// parseJSONArg decodes a tool argument that may arrive either as a JSON
// string or as an already decoded value.
func parseJSONArg(args map[string]any, key string, target any) error {
	switch v := args[key].(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		if err := json.Unmarshal([]byte(v), target); err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
		if err := json.Unmarshal(b, target); err != nil {
			return fmt.Errorf("parse %s: %w", key, err)
		}
	}
	return nil
}
