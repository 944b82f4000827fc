package logger

import (
	"log/slog"
	"strings"
	"testing"
)

func TestRedactSensitive_Keys(t *testing.T) {
	tests := []struct {
		key      string
		value    string
		redacted bool
	}{
		{"password", "hunter2", true},
		{"redis_password", "hunter2", true},
		{"auth", "x", true},
		{"password", "", false},
		{"cache_key", "grvutils:cache:x", false},
		{"host", "localhost", false},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			got := redactSensitive(slog.String(tt.key, tt.value)).Value.String()
			if tt.redacted && got != redactedValue {
				t.Errorf("got %q, want redacted", got)
			}
			if !tt.redacted && got != tt.value {
				t.Errorf("got %q, want %q", got, tt.value)
			}
		})
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	a := slog.Group("redis", slog.String("host", "h"), slog.String("password", "p"))
	got := redactSensitive(a)

	for _, attr := range got.Value.Group() {
		if attr.Key == "password" && attr.Value.String() != redactedValue {
			t.Errorf("nested password not redacted: %q", attr.Value.String())
		}
		if attr.Key == "host" && attr.Value.String() != "h" {
			t.Errorf("host changed: %q", attr.Value.String())
		}
	}
}

func TestRedactURL(t *testing.T) {
	got := RedactURL("redis://:s3cret@cache.internal:6379/2")
	if strings.Contains(got, "s3cret") {
		t.Errorf("password leaked: %q", got)
	}
	if !strings.Contains(got, "cache.internal:6379") {
		t.Errorf("host lost: %q", got)
	}

	plain := "redis://cache.internal:6379"
	if RedactURL(plain) != plain {
		t.Errorf("RedactURL(%q) = %q", plain, RedactURL(plain))
	}

	attr := redactSensitive(slog.String("target", "redis://u:pw@h:1"))
	if strings.Contains(attr.Value.String(), "pw@") {
		t.Errorf("url attribute not redacted: %q", attr.Value.String())
	}
}

func TestIsSensitiveKey(t *testing.T) {
	if !IsSensitiveKey("Redis.Password") {
		t.Error("expected Redis.Password to be sensitive")
	}
	if IsSensitiveKey("database") {
		t.Error("database should not be sensitive")
	}
}
