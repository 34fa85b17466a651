package validator

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// knownParameters lists the JSON field names of a request struct.
func knownParameters(v any) map[string]bool {
	known := make(map[string]bool)
	t := reflect.TypeOf(v)
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		if tag == "" || tag == "-" {
			continue
		}
		if name, _, _ := strings.Cut(tag, ","); name != "" {
			known[name] = true
		}
	}
	return known
}

// IgnoredParameters returns the sorted top level keys of body that request
// does not declare. The relay accepts them and drops them; callers log the
// list so clients can see what had no effect.
func IgnoredParameters(body []byte, request any) []string {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	known := knownParameters(request)
	var ignored []string
	for name := range raw {
		if !known[name] {
			ignored = append(ignored, name)
		}
	}
	sort.Strings(ignored)
	return ignored
}
