// Package preferences holds the user preference map that accompanies every
// search, the rules that extract preferences from free text and the
// per-session store that remembers them between chat turns.
package preferences

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

const (
	KeyBudget            = "budget"
	KeyMaxBudget         = "max_budget"
	KeyPreferredLocation = "preferred_location"
	KeyRoomType          = "room_type"
	KeyNonAlcoholic      = "non_alcoholic"
	KeyFurnished         = "furnished"
	KeySmokingAllowed    = "smoking_allowed"
)

// Preferences maps a preference name to a scalar value. Values decoded from
// JSON arrive as string, bool or float64.
type Preferences map[string]any

// Clone returns a shallow copy. A nil receiver yields an empty map.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for key, value := range p {
		out[key] = value
	}
	return out
}

// Bool reports the boolean preference at key and whether it was set.
func (p Preferences) Bool(key string) (bool, bool) {
	switch value := p[key].(type) {
	case bool:
		return value, true
	case string:
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

// Int reports the integer preference at key and whether it was set.
func (p Preferences) Int(key string) (int, bool) {
	switch value := p[key].(type) {
	case int:
		return value, true
	case int64:
		return int(value), true
	case float64:
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return 0, false
		}
		return int(value), true
	case json.Number:
		parsed, err := value.Int64()
		if err != nil {
			return 0, false
		}
		return int(parsed), true
	case string:
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

// String reports the string preference at key and whether it was set.
func (p Preferences) String(key string) (string, bool) {
	value, ok := p[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Format renders preferences as indented JSON with sorted keys so the same
// preferences always produce the same prompt text.
func Format(p Preferences) string {
	if len(p) == 0 {
		return "{}"
	}
	encoded, err := json.MarshalIndent(map[string]any(p), "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(p))
	}
	return string(encoded)
}
