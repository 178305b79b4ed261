package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{
			name:       "no rows maps to not found",
			err:        pgx.ErrNoRows,
			wantCode:   "NOT_FOUND",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "wrapped no rows maps to not found",
			err:        fmt.Errorf("fetch user: %w", pgx.ErrNoRows),
			wantCode:   "NOT_FOUND",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unique violation maps to conflict",
			err:        &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"},
			wantCode:   "CONFLICT",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "wrapped unique violation maps to conflict",
			err:        fmt.Errorf("insert user: %w", &pgconn.PgError{Code: "23505"}),
			wantCode:   "CONFLICT",
			wantStatus: http.StatusConflict,
		},
		{
			name:       "other pg error stays internal",
			err:        &pgconn.PgError{Code: "23503"},
			wantCode:   "INTERNAL_ERROR",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "plain error stays internal",
			err:        errors.New("boom"),
			wantCode:   "INTERNAL_ERROR",
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ToDomainError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if got.HTTPStatus != tt.wantStatus {
				t.Errorf("status = %d, want %d", got.HTTPStatus, tt.wantStatus)
			}
		})
	}
}

func TestToDomainErrorPassthrough(t *testing.T) {
	original := NewForbidden("no access")
	got := ToDomainError(fmt.Errorf("handler: %w", original))
	if got.Code != "FORBIDDEN" || got.HTTPStatus != http.StatusForbidden {
		t.Errorf("got %q/%d, want FORBIDDEN/403", got.Code, got.HTTPStatus)
	}
	if ToDomainError(nil) != nil {
		t.Error("nil error should map to nil")
	}
}
