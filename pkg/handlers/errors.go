package handlers

import (
	"errors"
	"net/http"

	"challenge-hub-backend/pkg/database"
	"challenge-hub-backend/pkg/middleware"
	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/services"
	"challenge-hub-backend/pkg/utils"

	"github.com/charmbracelet/log"
)

// writeServiceError maps a service error onto the API error envelope.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		notFound   *services.NotFoundError
		permission *services.PermissionError
		transition *services.TransitionError
		rule       *services.RuleError
		validation *services.ValidationError
	)
	switch {
	case errors.As(err, &validation):
		utils.WriteValidationErrorResponse(w, "Invalid input", validation.Err.Error())
	case errors.As(err, &notFound):
		utils.WriteNotFoundResponse(w, notFound.Error())
	case errors.As(err, &permission):
		utils.WriteForbiddenResponse(w, permission.Error())
	case errors.As(err, &transition):
		utils.WriteErrorResponseWithCode(w, http.StatusConflict, "INVALID_TRANSITION", transition.Error(), "")
	case errors.As(err, &rule):
		utils.WriteUnprocessableResponse(w, rule.Rule, rule.Message)
	case errors.Is(err, services.ErrTransactionConflict):
		utils.WriteErrorResponseWithCode(w, http.StatusConflict, "TRANSACTION_CONFLICT", "Concurrent update, please retry", "")
	case errors.Is(err, services.ErrEmailTaken), errors.Is(err, database.ErrDuplicateKey):
		utils.WriteConflictResponse(w, err.Error())
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, middleware.ErrUnauthenticated):
		utils.WriteUnauthorizedResponse(w, err.Error())
	default:
		log.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		utils.WriteInternalServerErrorResponse(w, "Internal server error")
	}
}

// requireActor writes 401 when the request carries no actor.
func requireActor(w http.ResponseWriter, r *http.Request) (models.Actor, bool) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return models.Actor{}, false
	}
	return actor, true
}
