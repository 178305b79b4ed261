// Package validation checks candidate uploads before anything touches the
// file sink or the database.
package validation

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// Validation failure reasons reported in DomainError details.
const (
	ReasonDisallowedExtension = "disallowed_extension"
	ReasonFileTooLarge        = "file_too_large"
)

// AttachmentValidator is a pure predicate over filename and byte size.
// The allow-set and ceiling come from configuration at construction.
type AttachmentValidator struct {
	allowed      map[string]struct{}
	allowedList  string
	maxSizeBytes int64
}

// NewAttachmentValidator builds a validator from config.
func NewAttachmentValidator(cfg config.AttachmentConfig) *AttachmentValidator {
	allowed := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = struct{}{}
	}
	return &AttachmentValidator{
		allowed:      allowed,
		allowedList:  strings.Join(cfg.AllowedExtensions, ", "),
		maxSizeBytes: cfg.MaxSizeBytes,
	}
}

// Validate checks the extension first, then the size. It performs no I/O
// and must run before the file is handed to the storage sink.
func (v *AttachmentValidator) Validate(filename string, sizeBytes int64) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := v.allowed[ext]; !ok {
		return util.NewValidationError(
			fmt.Sprintf("file type %q is not allowed; allowed types: %s", ext, v.allowedList),
			map[string]any{"reason": ReasonDisallowedExtension, "extension": ext},
		)
	}
	if sizeBytes > v.maxSizeBytes {
		return util.NewValidationError(
			fmt.Sprintf("file size %.2f MB exceeds the maximum of %.0f MB",
				float64(sizeBytes)/(1<<20), float64(v.maxSizeBytes)/(1<<20)),
			map[string]any{"reason": ReasonFileTooLarge, "size_bytes": sizeBytes, "max_bytes": v.maxSizeBytes},
		)
	}
	return nil
}

// MaxSizeBytes exposes the configured ceiling for request pre-checks.
func (v *AttachmentValidator) MaxSizeBytes() int64 {
	return v.maxSizeBytes
}
