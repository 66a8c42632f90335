package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/keyxmakerx/userservice/internal/apperror"
)

// perPage is the number of audit entries returned per page.
const perPage = 50

// maxAccountHistoryEntries caps the history returned for a single account.
const maxAccountHistoryEntries = 100

// AuditService handles business logic for the audit log.
type AuditService interface {
	// Log validates and persists an entry, returning any failure.
	Log(ctx context.Context, entry *AuditEntry) error

	// Record is Log for callers that must not fail on audit errors. Failures
	// are logged and swallowed.
	Record(ctx context.Context, entry *AuditEntry)

	// List returns one page of the feed, most recent first. Pages are
	// 1-indexed; out of range values are clamped to 1.
	List(ctx context.Context, page int) (*Page, error)

	// ListForAccount returns recent entries targeting the given email.
	ListForAccount(ctx context.Context, email string) ([]AuditEntry, error)
}

// auditService implements AuditService.
type auditService struct {
	repo AuditRepository
}

// NewAuditService creates a new audit service with the given repository.
func NewAuditService(repo AuditRepository) AuditService {
	return &auditService{repo: repo}
}

// Log validates and persists an audit entry.
func (s *auditService) Log(ctx context.Context, entry *AuditEntry) error {
	if entry.ActorEmail == "" {
		return apperror.NewBadRequest("actor is required for audit entry")
	}
	if entry.Action == "" {
		return apperror.NewBadRequest("action is required for audit entry")
	}

	if err := s.repo.Log(ctx, entry); err != nil {
		return apperror.NewInternal(fmt.Errorf("writing audit entry: %w", err))
	}
	return nil
}

// Record persists the entry and logs instead of returning on failure.
func (s *auditService) Record(ctx context.Context, entry *AuditEntry) {
	if err := s.Log(ctx, entry); err != nil {
		slog.Error("failed to write audit log entry",
			slog.String("actor", entry.ActorEmail),
			slog.String("action", entry.Action),
			slog.Any("error", err),
		)
	}
}

// List returns a page of the audit feed.
func (s *auditService) List(ctx context.Context, page int) (*Page, error) {
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * perPage
	entries, total, err := s.repo.List(ctx, perPage, offset)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing audit entries: %w", err))
	}
	if entries == nil {
		entries = []AuditEntry{}
	}

	return &Page{Entries: entries, Total: total, Page: page, PerPage: perPage}, nil
}

// ListForAccount returns the most recent entries targeting an account.
func (s *auditService) ListForAccount(ctx context.Context, email string) ([]AuditEntry, error) {
	if email == "" {
		return nil, apperror.NewBadRequest("email is required")
	}

	entries, err := s.repo.ListByTarget(ctx, email, maxAccountHistoryEntries)
	if err != nil {
		return nil, apperror.NewInternal(fmt.Errorf("listing account history: %w", err))
	}
	return entries, nil
}
