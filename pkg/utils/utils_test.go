package utils

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestGenerateID(t *testing.T) {
	id1 := GenerateID("test")
	id2 := GenerateID("test")

	if id1 == id2 {
		t.Error("expected different IDs")
	}

	if !strings.HasPrefix(id1, "test_") {
		t.Errorf("expected prefix 'test_', got %s", id1)
	}
}

func TestGenerateArtifactID(t *testing.T) {
	id := GenerateArtifactID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("expected a uuid, got %q: %v", id, err)
	}
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"iso date", "2024-05-01", "2024-05-01"},
		{"slashed date", "5/1/2024", "5_1_2024"},
		{"backslash", `a\b`, "a_b"},
		{"control chars", "still\x00name", "stillname"},
		{"dot dot", "..", "_"},
		{"empty", "  ", "_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeFileName(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFrameInterval(t *testing.T) {
	if got := FrameInterval(25); got != 40*time.Millisecond {
		t.Errorf("FrameInterval(25) = %v", got)
	}
	if got := FrameInterval(0); got != time.Second/30 {
		t.Errorf("FrameInterval(0) = %v", got)
	}
}

func TestOriginChecker(t *testing.T) {
	check := OriginChecker([]string{"https://studio.example"})

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if !check(r) {
		t.Error("expected requests without an origin to pass")
	}
	r.Header.Set("Origin", "https://studio.example")
	if !check(r) {
		t.Error("expected listed origin to pass")
	}
	r.Header.Set("Origin", "https://evil.example")
	if check(r) {
		t.Error("expected unlisted origin to be rejected")
	}
	if !OriginChecker([]string{"*"})(r) {
		t.Error("expected wildcard to allow any origin")
	}
}
