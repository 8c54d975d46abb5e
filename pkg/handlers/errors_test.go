package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/middleware"
	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"

	"github.com/matryer/is"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &services.ValidationError{Err: errors.New("bad")}, http.StatusBadRequest},
		{"not found", &services.NotFoundError{Kind: services.KindTeam, ID: "t1"}, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", &services.NotFoundError{Kind: services.KindTeam, ID: "t1"}), http.StatusNotFound},
		{"permission", &services.PermissionError{UserID: "u1", Action: "read"}, http.StatusForbidden},
		{"transition", &services.TransitionError{Kind: "project", From: "submitted", To: "submitted"}, http.StatusConflict},
		{"rule", &services.RuleError{Rule: "team_full", Message: "full"}, http.StatusUnprocessableEntity},
		{"conflict", services.ErrTransactionConflict, http.StatusConflict},
		{"duplicate", database.ErrDuplicateKey, http.StatusConflict},
		{"email taken", services.ErrEmailTaken, http.StatusConflict},
		{"credentials", services.ErrInvalidCredentials, http.StatusUnauthorized},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			rec := httptest.NewRecorder()
			writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			is.Equal(rec.Code, tt.want)
		})
	}
}

func TestRequireActor(t *testing.T) {
	is := is.New(t)

	rec := httptest.NewRecorder()
	_, ok := requireActor(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	is.True(!ok)
	is.Equal(rec.Code, http.StatusUnauthorized)

	want := models.Actor{UserID: "u1", Email: "u1@example.com", Role: models.RoleParticipant}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(middleware.WithActor(req.Context(), want))
	rec = httptest.NewRecorder()
	got, ok := requireActor(rec, req)
	is.True(ok)
	is.Equal(got, want)
}
