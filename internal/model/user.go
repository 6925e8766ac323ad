package model

import "time"

// User is an account row supplied by the identity provider. Credential
// verification happens in the identity service; the security core only
// consumes Identity and BaseRole after a successful login.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"`
	BaseRole     Role      `json:"base_role"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
