package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"go-member-portal/internal/model"
	"go-member-portal/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &model.APIError{
		Code:    "INTERNAL_ERROR",
		Message: "Unexpected server error",
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		status = apiErr.HTTPStatus
		body.Code = apiErr.Code
		body.Message = apiErr.Message
		body.Details = apiErr.Details
	} else if errors.Is(err, model.ErrInvalidCredentials) || errors.Is(err, model.ErrAccountLocked) {
		// A locked account answers exactly like a wrong password so
		// the response cannot confirm an account exists.
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Invalid credentials"
	} else if errors.Is(err, model.ErrUnauthenticated) {
		status = http.StatusUnauthorized
		body.Code = "UNAUTHORIZED"
		body.Message = "Authentication required"
	} else if errors.Is(err, model.ErrForbidden) {
		status = http.StatusForbidden
		body.Code = "FORBIDDEN"
		body.Message = "Access denied"
	} else if errors.Is(err, model.ErrRateLimited) {
		status = http.StatusTooManyRequests
		body.Code = "RATE_LIMITED"
		body.Message = "Too many requests"
	} else if errors.Is(err, model.ErrNotElevationEligible) {
		status = http.StatusForbidden
		body.Code = "NOT_ELIGIBLE"
		body.Message = "Role is not elevation eligible"
	} else if errors.Is(err, model.ErrNotAssumeEligible) {
		status = http.StatusForbidden
		body.Code = "NOT_ELIGIBLE"
		body.Message = "Role may not be assumed"
	} else if errors.Is(err, model.ErrAssumptionActive) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "Another role assumption is still active"
	} else if errors.Is(err, model.ErrNoActiveElevation) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "No active elevation"
	} else if errors.Is(err, model.ErrNoActiveAssumption) {
		status = http.StatusConflict
		body.Code = "CONFLICT"
		body.Message = "No active role assumption"
	} else if errors.Is(err, model.ErrUserNotFound) {
		status = http.StatusNotFound
		body.Code = "NOT_FOUND"
		body.Message = "User not found"
	} else if errors.Is(err, model.ErrInvalidInput) {
		status = http.StatusBadRequest
		body.Code = "BAD_REQUEST"
		body.Message = "Invalid input"
	} else {
		slog.Error("unhandled error in writeError", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}
