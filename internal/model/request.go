package model

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type ElevateRequest struct {
	Role string `json:"role"`
}

type AssumeRequest struct {
	Role string `json:"role"`
}

type SetOverrideRequest struct {
	Route string `json:"route"`
	Role  string `json:"role"`
	Level string `json:"level"`
}

type AuditQuery struct {
	Actor  string
	Action string
	From   string
	To     string
	Page   int
	Limit  int
}

type CreateMinuteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
