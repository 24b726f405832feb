package gymapi

import (
	"encoding/json"
	"strings"
)

// Field names whose values never reach the logs in clear text. The list
// mirrors the login and user-context payloads of the gym API.
var sensitiveFields = []string{
	"password",
	"username",
	"accountusername",
	"token",
	"credentialid",
	"email",
	"mobilephonenumber",
	"firstname",
	"lastname",
	"nickname",
	"birthdate",
	"displaybirthdate",
	"address1",
	"pictureurl",
	"thumbpictureurl",
}

// maskBody renders a request or response body for debug logging with
// sensitive fields masked. Non-JSON bodies are logged as-is.
func maskBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	masked, err := json.Marshal(maskValue(v, false))
	if err != nil {
		return string(body)
	}
	return string(masked)
}

func maskValue(v any, sensitive bool) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = maskValue(val, sensitive || isSensitiveField(k))
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, maskValue(item, sensitive))
		}
		return out
	case string:
		if sensitive {
			return maskLast4(typed)
		}
		return typed
	default:
		if sensitive {
			return "****"
		}
		return typed
	}
}

func isSensitiveField(key string) bool {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, f := range sensitiveFields {
		if key == f {
			return true
		}
	}
	return false
}

// maskLast4 keeps only the last 4 characters of a value.
func maskLast4(value string) string {
	if value == "" {
		return ""
	}
	if len(value) <= 4 {
		return "****" + value
	}
	return "****" + value[len(value)-4:]
}

// maskBearer masks an Authorization value, preserving the scheme.
func maskBearer(value string) string {
	parts := strings.Fields(value)
	if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
		return "Bearer " + maskLast4(parts[1])
	}
	return maskLast4(value)
}

// truncate caps very large response bodies in the logs.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
