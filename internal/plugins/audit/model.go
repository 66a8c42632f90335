// Package audit records account lifecycle events: registrations, password
// changes and resets, profile edits, and every admin mutation. Entries are
// persisted to the audit_log table and readable by admins.
//
// Audit writes never block the primary operation. A failed write is logged
// and the caller carries on.
package audit

import "time"

// --- Action Constants ---
// Each action string follows the pattern "resource.verb".

const (
	ActionAccountRegistered = "account.registered"
	ActionPasswordChanged   = "account.password_changed"
	ActionPasswordReset     = "account.password_reset"
	ActionProfileUpdated    = "account.profile_updated"

	// Admin actions record the admin as actor and the account as target.
	ActionUserUpdated     = "user.updated"
	ActionUserDeleted     = "user.deleted"
	ActionUserDeactivated = "user.deactivated"
)

// AuditEntry is a single recorded action. ActorEmail is who did it;
// TargetID and TargetEmail identify the account it was done to, which is the
// actor itself for self-service actions.
type AuditEntry struct {
	ID          int64          `json:"id"`
	ActorEmail  string         `json:"actorEmail"`
	Action      string         `json:"action"`
	TargetID    int64          `json:"targetId,omitempty"`
	TargetEmail string         `json:"targetEmail,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
}

// Page is one page of the audit feed.
type Page struct {
	Entries []AuditEntry `json:"entries"`
	Total   int          `json:"total"`
	Page    int          `json:"page"`
	PerPage int          `json:"perPage"`
}
