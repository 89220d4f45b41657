// Package firmware manages Proxmark3 firmware images: the bundled image
// store, hardware variant and serial port validation, and the S3 fallback
// used when no image ships with the client.
package firmware

import (
	"fmt"
	"log/slog"
	"regexp"
)

// MaxImageSize caps a firmware image. A fullimage.elf is under 1 MiB;
// anything past this is not a Proxmark3 image.
const MaxImageSize int64 = 64 * 1024 * 1024

// ImageName is the flashable artifact inside each variant directory.
const ImageName = "fullimage.elf"

// variants is the closed set of supported hardware variants.
var variants = map[string]bool{
	"rdv4":        true,
	"rdv4-bt":     true,
	"generic":     true,
	"generic-256": true,
}

var portPattern = regexp.MustCompile(`^(/dev/(tty|cu)[A-Za-z0-9._-]+|COM[0-9]+)$`)

// ValidateVariant rejects hardware variants outside the supported set.
func ValidateVariant(variant string) error {
	if !variants[variant] {
		slog.Error("firmware_variant_rejected", "variant", variant)
		return fmt.Errorf("unsupported hardware variant: %q", variant)
	}
	return nil
}

// ValidatePort rejects strings that are not serial port paths. Port values
// reach shell-adjacent tooling on the agent side, so the allow-list is
// strict.
func ValidatePort(port string) error {
	if !portPattern.MatchString(port) {
		slog.Error("firmware_port_rejected", "port", port)
		return fmt.Errorf("invalid serial port: %q", port)
	}
	return nil
}

// ValidateImageSize rejects images larger than MaxImageSize.
func ValidateImageSize(size int64) error {
	if size <= 0 {
		return fmt.Errorf("firmware image is empty")
	}
	if size > MaxImageSize {
		slog.Error("firmware_image_too_large", "size_mb", size/1024/1024, "max_mb", MaxImageSize/1024/1024)
		return fmt.Errorf("firmware image size %d exceeds max %d", size, MaxImageSize)
	}
	return nil
}
