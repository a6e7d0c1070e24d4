package masking

import (
	"encoding/json"
	"strings"
)

const (
	FilteredToken       = "[FILTERED]"
	UnserializableToken = "[Unserializable]"
	truncationSuffix    = "..."
)

var sensitiveKeys = map[string]struct{}{
	"password":      {},
	"pass":          {},
	"pwd":           {},
	"token":         {},
	"accesstoken":   {},
	"refreshtoken":  {},
	"authorization": {},
	"auth":          {},
	"ssn":           {},
	"creditcard":    {},
	"ccv":           {},
	"cvv":           {},
	"secret":        {},
}

// IsSensitiveKey reports whether values under key must never be stored.
// Keys match case-insensitively.
func IsSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Sanitize returns a copy of value with every sensitive key, at any depth,
// replaced by FilteredToken. Non-container values are returned unchanged.
func Sanitize(value any) any {
	switch cast := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(cast))
		for key, item := range cast {
			if IsSensitiveKey(key) {
				out[key] = FilteredToken
				continue
			}
			out[key] = Sanitize(item)
		}
		return out
	case []any:
		out := make([]any, 0, len(cast))
		for _, item := range cast {
			out = append(out, Sanitize(item))
		}
		return out
	default:
		return value
	}
}

// EncodeBody sanitizes body and serializes it as JSON, cut to maxLen
// characters plus "..." when longer. A nil body is stored as "{}".
func EncodeBody(body any, maxLen int) string {
	if body == nil {
		body = map[string]any{}
	}
	raw, err := json.Marshal(Sanitize(body))
	if err != nil {
		return UnserializableToken
	}
	return Truncate(string(raw), maxLen)
}

// Truncate cuts s to maxLen runes and appends "..." when it was longer.
// A non-positive maxLen disables truncation.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + truncationSuffix
}
