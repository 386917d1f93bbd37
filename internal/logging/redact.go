package logging

import (
	"encoding/json"
	"strings"
)

var sensitiveKeys = []string{
	"api_key", "apikey", "x-api-key", "authorization", "auth", "token",
	"access_token", "refresh_token", "password", "secret", "bearer", "github_token",
}

// RedactJSON marshals v and replaces values under sensitive-looking keys
// (tokens, passwords, auth headers) with a placeholder. Used when logging a
// job payload, whose inline source specs may carry a GitHub token.
func RedactJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return raw
	}
	redacted, err := json.Marshal(redactValue(decoded))
	if err != nil {
		return raw
	}
	return redacted
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, vv := range val {
			if isSensitiveKey(k) {
				val[k] = "[REDACTED]"
			} else {
				val[k] = redactValue(vv)
			}
		}
		return val
	case []any:
		for i := range val {
			val[i] = redactValue(val[i])
		}
		return val
	default:
		return v
	}
}

func isSensitiveKey(k string) bool {
	low := strings.ToLower(k)
	for _, s := range sensitiveKeys {
		if strings.Contains(low, s) {
			return true
		}
	}
	return false
}
