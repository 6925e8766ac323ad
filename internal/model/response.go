package model

type APIResponse struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   *APIError `json:"error,omitempty"`
	Meta    *Meta     `json:"meta,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type Meta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type SessionInfo struct {
	Identity      string `json:"identity"`
	BaseRole      string `json:"base_role"`
	EffectiveRole string `json:"effective_role"`
	ElevatedRole  string `json:"elevated_role,omitempty"`
	ElevatedUntil string `json:"elevated_until,omitempty"`
	AssumedRole   string `json:"assumed_role,omitempty"`
	AssumedUntil  string `json:"assumed_until,omitempty"`
	ExpiresAt     string `json:"expires_at"`
}

type OverrideEntry struct {
	Route string `json:"route"`
	Role  string `json:"role"`
	Level string `json:"level"`
}
