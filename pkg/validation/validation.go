package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	// OperatorIDRegex validates operator ID format
	OperatorIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// OverlayKeyRegex validates overlay catalog keys
	OverlayKeyRegex = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

// MaxContainerSide bounds the container size an operator may request.
const MaxContainerSide = 8192

// ValidateOperatorID validates operator ID
func ValidateOperatorID(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("operator ID is required")
	}
	if len(id) < 3 {
		return fmt.Errorf("operator ID must be at least 3 characters")
	}
	if len(id) > 50 {
		return fmt.Errorf("operator ID is too long (max 50 characters)")
	}
	if !OperatorIDRegex.MatchString(id) {
		return fmt.Errorf("operator ID contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateSecret validates an operator secret
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret is required")
	}
	if len(secret) > 128 {
		return fmt.Errorf("secret is too long (max 128 characters)")
	}
	return nil
}

// ValidateOverlayKey validates an overlay catalog key
func ValidateOverlayKey(key string) error {
	if key == "" {
		return fmt.Errorf("overlay key is required")
	}
	if len(key) > 64 {
		return fmt.Errorf("overlay key is too long (max 64 characters)")
	}
	if !OverlayKeyRegex.MatchString(key) {
		return fmt.Errorf("invalid overlay key format")
	}
	return nil
}

// ValidateArtifactID validates artifact ID; artifact IDs are UUIDs.
func ValidateArtifactID(id string) error {
	if id == "" {
		return fmt.Errorf("artifact ID is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("invalid artifact ID format")
	}
	return nil
}

// ValidateFacingMode validates camera facing mode. Empty means the default.
func ValidateFacingMode(facing string) error {
	switch facing {
	case "", "user", "environment":
		return nil
	}
	return fmt.Errorf("invalid facing mode (must be user or environment)")
}

// ValidateDirection validates a move command
func ValidateDirection(dir string) error {
	switch dir {
	case "up", "down", "left", "right":
		return nil
	}
	return fmt.Errorf("invalid direction (must be up, down, left, or right)")
}

// ValidateContainer validates container bounds. Zero means unknown.
func ValidateContainer(width, height int) error {
	if width < 0 || height < 0 {
		return fmt.Errorf("container size must not be negative")
	}
	if width > MaxContainerSide || height > MaxContainerSide {
		return fmt.Errorf("container size is too large (max %d)", MaxContainerSide)
	}
	return nil
}

// ValidateBarcodeFormats checks every format against the supported set.
func ValidateBarcodeFormats(formats, supported []string) error {
	allowed := make(map[string]bool, len(supported))
	for _, f := range supported {
		allowed[f] = true
	}
	for _, f := range formats {
		if !allowed[f] {
			return fmt.Errorf("unsupported barcode format %q", f)
		}
	}
	return nil
}

