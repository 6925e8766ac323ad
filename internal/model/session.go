package model

import "time"

// Session is the signed payload carried in the portal cookie. It is read
// once at request start; elevation and assumption expiry are resolved by
// comparing the embedded timestamps against the clock, never by a store
// round trip.
type Session struct {
	Identity       string     `json:"identity"`
	BaseRole       Role       `json:"base_role"`
	IssuedAt       time.Time  `json:"issued_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	Fingerprint    string     `json:"fingerprint,omitempty"`
	ElevatedRole   Role       `json:"elevated_role,omitempty"`
	ElevatedUntil  *time.Time `json:"elevated_until,omitempty"`
	AssumedRole    Role       `json:"assumed_role,omitempty"`
	AssumedUntil   *time.Time `json:"assumed_until,omitempty"`
}

// ElevationActive reports whether a time-boxed elevation is still open.
func (s *Session) ElevationActive(now time.Time) bool {
	return s.ElevatedRole != "" && s.ElevatedUntil != nil && now.Before(*s.ElevatedUntil)
}

// AssumptionActive reports whether an assumed role is still open.
func (s *Session) AssumptionActive(now time.Time) bool {
	return s.AssumedRole != "" && s.AssumedUntil != nil && now.Before(*s.AssumedUntil)
}

// EffectiveRole resolves the role this session acts as right now.
// Assumption wins over elevation; an expired window counts as dropped.
func (s *Session) EffectiveRole(now time.Time) Role {
	if s.AssumptionActive(now) {
		return s.AssumedRole
	}
	if s.ElevationActive(now) {
		return s.ElevatedRole
	}
	return BaselineOf(s.BaseRole)
}

// ClearElevation removes any elevation state, expired or not.
func (s *Session) ClearElevation() {
	s.ElevatedRole = ""
	s.ElevatedUntil = nil
}

// ClearAssumption removes any assumed-role state, expired or not.
func (s *Session) ClearAssumption() {
	s.AssumedRole = ""
	s.AssumedUntil = nil
}
