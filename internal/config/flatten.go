package config

import (
	"strings"
)

// secretKeys lists the dotted keys whose values are masked in listings.
var secretKeys = map[string]bool{
	"backend.api_key": true,
	"telegram.token":  true,
}

// IsSecretKey reports whether key holds a credential.
func IsSecretKey(key string) bool {
	return secretKeys[key]
}

// Flatten converts a nested map into dotted keys:
// {"http": {"listen": ":3000"}} becomes {"http.listen": ":3000"}.
func Flatten(m map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", m)
	return out
}

func flattenInto(out map[string]any, prefix string, m map[string]any) {
	for k, v := range m {
		if prefix != "" {
			k = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flattenInto(out, k, child)
			continue
		}
		out[k] = v
	}
}

// Unflatten is the inverse of Flatten. A scalar sitting where a section is
// needed is replaced by the section.
func Unflatten(flat map[string]any) map[string]any {
	out := make(map[string]any)
	for k, v := range flat {
		parts := strings.Split(k, ".")
		section := out
		for _, part := range parts[:len(parts)-1] {
			next, ok := section[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				section[part] = next
			}
			section = next
		}
		section[parts[len(parts)-1]] = v
	}
	return out
}

// MaskSecrets returns a copy of flat with non-empty secrets shown as
// "***" plus their last 4 characters.
func MaskSecrets(flat map[string]any) map[string]any {
	out := make(map[string]any, len(flat))
	for k, v := range flat {
		s, ok := v.(string)
		if !secretKeys[k] || !ok || s == "" {
			out[k] = v
			continue
		}
		out[k] = "***" + s[max(0, len(s)-4):]
	}
	return out
}
