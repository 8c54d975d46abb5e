package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"challenge-hub-backend/pkg/models"
	"challenge-hub-backend/pkg/utils"

	"github.com/charmbracelet/log"
)

// ContextKey 用于在context中存储调用者信息的键
type ContextKey string

const (
	ActorContextKey ContextKey = "actor"
	infoContextKey  ContextKey = "request-info"
)

// requestInfo is filled in by inner middleware for the request logger.
type requestInfo struct {
	userID string
}

// ErrUnauthenticated is returned by RequireActor when no actor is attached.
var ErrUnauthenticated = errors.New("user not authenticated")

// bearerToken extracts the token of an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// AuthMiddleware JWT认证中间件. Only access tokens are accepted.
func AuthMiddleware(jwtService *utils.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := log.FromContext(r.Context())

			if r.Header.Get("Authorization") == "" {
				utils.WriteUnauthorizedResponse(w, "Missing authorization header")
				return
			}
			tokenString, ok := bearerToken(r)
			if !ok {
				utils.WriteUnauthorizedResponse(w, "Invalid authorization header format")
				return
			}

			actor, err := jwtService.ExtractActor(tokenString)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "err", err)
				utils.WriteUnauthorizedResponse(w, "Invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// OptionalAuthMiddleware 可选的认证中间件（不强制要求认证）
func OptionalAuthMiddleware(jwtService *utils.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenString, ok := bearerToken(r); ok {
				if actor, err := jwtService.ExtractActor(tokenString); err == nil {
					r = r.WithContext(WithActor(r.Context(), actor))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor models.Actor) context.Context {
	if info, ok := ctx.Value(infoContextKey).(*requestInfo); ok {
		info.userID = actor.UserID
	}
	return context.WithValue(ctx, ActorContextKey, actor)
}

// GetActorFromContext 从context中获取调用者
func GetActorFromContext(ctx context.Context) (models.Actor, bool) {
	actor, ok := ctx.Value(ActorContextKey).(models.Actor)
	return actor, ok && actor.UserID != ""
}

// RequireActor 要求用户必须已认证的辅助函数
func RequireActor(ctx context.Context) (models.Actor, error) {
	actor, ok := GetActorFromContext(ctx)
	if !ok {
		return models.Actor{}, ErrUnauthenticated
	}
	return actor, nil
}
