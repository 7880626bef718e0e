package validation

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestValidateOperatorID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid id", "operator1", false},
		{"valid with underscore", "front_desk", false},
		{"valid with dash", "booth-2", false},
		{"too short", "ab", true},
		{"empty", "", true},
		{"too long", strings.Repeat("a", 51), true},
		{"invalid chars", "op name", true},
		{"invalid chars 2", "op@booth", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOperatorID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOperatorID() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret(""); err == nil {
		t.Error("expected error for empty secret")
	}
	if err := ValidateSecret(strings.Repeat("s", 129)); err == nil {
		t.Error("expected error for long secret")
	}
	if err := ValidateSecret("s3cret"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateOverlayKey(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{"catalog key", "aqua", false},
		{"with digits", "rem2", false},
		{"empty", "", true},
		{"upper case", "Dio", true},
		{"path", "../dio", true},
		{"too long", strings.Repeat("a", 65), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOverlayKey(tt.key)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateOverlayKey() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateArtifactID(t *testing.T) {
	if err := ValidateArtifactID(uuid.NewString()); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateArtifactID("not-a-uuid"); err == nil {
		t.Error("expected error for malformed id")
	}
	if err := ValidateArtifactID(""); err == nil {
		t.Error("expected error for empty id")
	}
}

func TestValidateFacingMode(t *testing.T) {
	for _, ok := range []string{"", "user", "environment"} {
		if err := ValidateFacingMode(ok); err != nil {
			t.Errorf("ValidateFacingMode(%q) unexpected error: %v", ok, err)
		}
	}
	if err := ValidateFacingMode("rear"); err == nil {
		t.Error("expected error for unknown facing mode")
	}
}

func TestValidateDirection(t *testing.T) {
	for _, ok := range []string{"up", "down", "left", "right"} {
		if err := ValidateDirection(ok); err != nil {
			t.Errorf("ValidateDirection(%q) unexpected error: %v", ok, err)
		}
	}
	if err := ValidateDirection("north"); err == nil {
		t.Error("expected error for unknown direction")
	}
}

func TestValidateContainer(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		wantErr       bool
	}{
		{"unknown", 0, 0, false},
		{"desktop", 1280, 720, false},
		{"negative", -1, 10, true},
		{"too large", MaxContainerSide + 1, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateContainer(tt.width, tt.height)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateContainer() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateBarcodeFormats(t *testing.T) {
	supported := []string{"QR_CODE", "EAN_13"}
	if err := ValidateBarcodeFormats([]string{"QR_CODE"}, supported); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateBarcodeFormats(nil, supported); err != nil {
		t.Errorf("unexpected error for empty list: %v", err)
	}
	if err := ValidateBarcodeFormats([]string{"AZTEC"}, supported); err == nil {
		t.Error("expected error for unsupported format")
	}
}
