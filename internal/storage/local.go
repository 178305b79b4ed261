// Package storage provides the file sink attachments are written to.
// Files are namespaced by their parent ticket or comment id so uploads
// with identical names cannot collide.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/pkg/util"
)

// Store abstracts the byte sink. Validation happens before Store is
// called; a failed Store aborts the enclosing create so no database row
// ever references a missing file.
type Store interface {
	Store(ctx context.Context, r io.Reader, hint string) (string, error)
	Open(key string) (io.ReadCloser, error)
	Remove(key string) error
}

// TicketHint namespaces an upload under its parent ticket. Only the base
// name of the uploaded file is used; directory components in a client
// supplied filename never reach the sink.
func TicketHint(ticketID, filename string) string {
	return filepath.Join("tickets", ticketID, filepath.Base(filename))
}

// CommentHint namespaces an upload under its parent comment.
func CommentHint(commentID, filename string) string {
	return filepath.Join("comments", commentID, filepath.Base(filename))
}

// LocalStore writes attachments to a directory tree on disk.
type LocalStore struct {
	root string
}

// NewLocalStore creates the sink rooted at cfg.Root.
func NewLocalStore(cfg config.StorageConfig) *LocalStore {
	return &LocalStore{root: cfg.Root}
}

// resolve maps a key to its on-disk path. Keys whose cleaned path would
// leave the root are refused so no caller can read or delete outside it.
func (s *LocalStore) resolve(key string) (string, error) {
	dest := filepath.Join(s.root, key)
	rel, err := filepath.Rel(s.root, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", util.NewStorageError(fmt.Errorf("key %q escapes storage root", key))
	}
	return dest, nil
}

// Store writes the stream to root/hint and returns hint as the handle.
func (s *LocalStore) Store(ctx context.Context, r io.Reader, hint string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", util.NewStorageError(err)
	}
	dest, err := s.resolve(hint)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", util.NewStorageError(fmt.Errorf("create attachment dir: %w", err))
	}
	f, err := os.Create(dest)
	if err != nil {
		return "", util.NewStorageError(fmt.Errorf("create attachment file: %w", err))
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(dest)
		return "", util.NewStorageError(fmt.Errorf("write attachment: %w", err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return "", util.NewStorageError(err)
	}
	return hint, nil
}

// Open returns the stored file for download.
func (s *LocalStore) Open(key string) (io.ReadCloser, error) {
	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, util.NewNotFound("attachment file", map[string]any{"key": key})
		}
		return nil, util.NewStorageError(err)
	}
	return f, nil
}

// Remove deletes a stored file. Missing files are not an error; cascade
// deletes may race with manual cleanup.
func (s *LocalStore) Remove(key string) error {
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return util.NewStorageError(err)
	}
	return nil
}
