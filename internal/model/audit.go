package model

import "time"

// Audit actions recorded by the privilege managers. Business handlers log
// their own action names attributed to the effective role.
const (
	AuditActionElevate     = "elevate"
	AuditActionDrop        = "drop"
	AuditActionAssume      = "assume"
	AuditActionClear       = "clear"
	AuditActionLogin       = "login"
	AuditActionSetOverride = "permission.override"
)

// AuditEntry is an append-only security event row. The application never
// updates or deletes entries; retention is an operational concern.
type AuditEntry struct {
	ID         string    `json:"id"`
	OccurredAt time.Time `json:"occurred_at"`
	Actor      string    `json:"actor"`
	Role       string    `json:"role"`
	Action     string    `json:"action"`
	Detail     string    `json:"detail,omitempty"`
	ClientIP   string    `json:"client_ip,omitempty"`
}
