package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"challenge-hub-backend/pkg/metrics"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Logger attaches a request scoped logger to the context and logs every
// request once it is served. Requests are also recorded in m.
func Logger(logger *log.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger.With("request_id", middleware.GetReqID(r.Context()))
			info := &requestInfo{}
			ctx := context.WithValue(r.Context(), infoContextKey, info)
			r = r.WithContext(log.WithContext(ctx, reqLogger))

			// 创建响应写入器包装器来捕获状态码
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, strconv.Itoa(status), duration.Seconds())

			// 获取用户信息（如果有）
			user := "anonymous"
			if info.userID != "" {
				user = info.userID
			}

			kv := []interface{}{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", duration,
				"bytes", ww.BytesWritten(),
				"user", user,
				"ip", r.RemoteAddr,
			}
			switch {
			case status >= 500:
				reqLogger.Error("request", kv...)
			case status >= 400:
				reqLogger.Warn("request", kv...)
			default:
				reqLogger.Info("request", kv...)
			}
		})
	}
}
