package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Attachment is a stored file hanging off exactly one parent: either a
// ticket or a comment, never both. It is destroyed with its parent.
type Attachment struct {
	ID         string
	TicketID   *string
	CommentID  *string
	StorageKey string
	FileName   string
	SizeBytes  int64
	UploaderID string
	UploadedAt time.Time
}

// Extension returns the lowercase filename suffix including the dot.
func (a *Attachment) Extension() string {
	return strings.ToLower(filepath.Ext(a.FileName))
}

var imageExtensions = map[string]struct{}{
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".webp": {},
}

// IsImage reports whether the attachment looks like an image file.
func (a *Attachment) IsImage() bool {
	_, ok := imageExtensions[a.Extension()]
	return ok
}

// SizeDisplay renders the byte size in human-readable form.
func (a *Attachment) SizeDisplay() string {
	size := float64(a.SizeBytes)
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if size < 1024.0 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024.0
	}
	return fmt.Sprintf("%.1f TB", size)
}
