package gymapi

import (
	"encoding/json"
	"testing"
)

func TestMaskBodyMasksCredentials(t *testing.T) {
	body := []byte(`{"domain":"it.example","username":"user@example.com","password":"hunter22"}`)
	masked := maskBody(body)

	var got map[string]any
	if err := json.Unmarshal([]byte(masked), &got); err != nil {
		t.Fatalf("masked body is not JSON: %v", err)
	}
	if got["password"] != "****er22" {
		t.Fatalf("expected masked password, got %v", got["password"])
	}
	if got["username"] != "****.com" {
		t.Fatalf("expected masked username, got %v", got["username"])
	}
	if got["domain"] != "it.example" {
		t.Fatalf("non-sensitive field must pass through, got %v", got["domain"])
	}
}

func TestMaskBodyNestedUserContext(t *testing.T) {
	body := []byte(`{"token":"abcdef123456","data":{"userContext":{"id":"u-1","firstName":"Ada","email":"ada@example.com"}}}`)
	masked := maskBody(body)

	var got map[string]any
	if err := json.Unmarshal([]byte(masked), &got); err != nil {
		t.Fatalf("masked body is not JSON: %v", err)
	}
	if got["token"] != "****3456" {
		t.Fatalf("expected masked token, got %v", got["token"])
	}
	uc := got["data"].(map[string]any)["userContext"].(map[string]any)
	if uc["firstName"] != "****Ada" {
		t.Fatalf("expected masked firstName, got %v", uc["firstName"])
	}
	if uc["id"] != "u-1" {
		t.Fatalf("id must pass through, got %v", uc["id"])
	}
}

func TestMaskBodyNonJSON(t *testing.T) {
	if got := maskBody([]byte("plain text")); got != "plain text" {
		t.Fatalf("non-JSON body must pass through, got %q", got)
	}
	if got := maskBody(nil); got != "" {
		t.Fatalf("empty body must render empty, got %q", got)
	}
}

func TestMaskBearer(t *testing.T) {
	if got := maskBearer("Bearer abcdef1234"); got != "Bearer ****1234" {
		t.Fatalf("expected masked bearer, got %q", got)
	}
	if got := maskBearer("raw-token"); got != "****oken" {
		t.Fatalf("expected masked raw value, got %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("abcdefgh", 4); got != "abcd..." {
		t.Fatalf("unexpected truncation %q", got)
	}
	if got := truncate("abc", 4); got != "abc" {
		t.Fatalf("short strings must pass through, got %q", got)
	}
}
