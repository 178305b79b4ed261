package validation

import (
	"errors"
	"testing"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/pkg/util"
)

func newTestValidator() *AttachmentValidator {
	return NewAttachmentValidator(config.AttachmentConfig{
		AllowedExtensions: []string{".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp", ".pdf", ".doc", ".docx", ".xls", ".xlsx", ".csv", ".har"},
		MaxSizeBytes:      5 << 20,
	})
}

func validationReason(t *testing.T, err error) string {
	t.Helper()
	var domainErr *util.DomainError
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected DomainError, got %T", err)
	}
	if domainErr.Code != "VALIDATION_FAILED" {
		t.Fatalf("expected VALIDATION_FAILED, got %s", domainErr.Code)
	}
	reason, _ := domainErr.Details["reason"].(string)
	return reason
}

func TestValidateDisallowedExtension(t *testing.T) {
	v := newTestValidator()

	err := v.Validate("x.exe", 1024)
	if err == nil {
		t.Fatal("expected error for .exe upload")
	}
	if reason := validationReason(t, err); reason != ReasonDisallowedExtension {
		t.Errorf("reason = %q, want %q", reason, ReasonDisallowedExtension)
	}
}

func TestValidateFileTooLarge(t *testing.T) {
	v := newTestValidator()

	err := v.Validate("x.pdf", 6<<20)
	if err == nil {
		t.Fatal("expected error for 6 MiB upload with 5 MiB ceiling")
	}
	if reason := validationReason(t, err); reason != ReasonFileTooLarge {
		t.Errorf("reason = %q, want %q", reason, ReasonFileTooLarge)
	}
}

func TestValidatePasses(t *testing.T) {
	v := newTestValidator()

	if err := v.Validate("x.pdf", 1<<20); err != nil {
		t.Errorf("1 MiB pdf should pass, got %v", err)
	}
	if err := v.Validate("screenshot.PNG", 2048); err != nil {
		t.Errorf("extension check must be case-insensitive, got %v", err)
	}
	if err := v.Validate("exactly.csv", 5<<20); err != nil {
		t.Errorf("file at exactly the ceiling should pass, got %v", err)
	}
}

func TestValidateExtensionCheckedBeforeSize(t *testing.T) {
	v := newTestValidator()

	// Both checks would fail; the extension error must win.
	err := v.Validate("dump.exe", 10<<20)
	if err == nil {
		t.Fatal("expected error")
	}
	if reason := validationReason(t, err); reason != ReasonDisallowedExtension {
		t.Errorf("reason = %q, want %q", reason, ReasonDisallowedExtension)
	}
}

func TestValidateNoExtension(t *testing.T) {
	v := newTestValidator()

	if err := v.Validate("README", 10); err == nil {
		t.Error("file without extension should be rejected")
	}
}
