package middleware

import (
	"net/http"
	"strings"

	"challenge-hub-backend/pkg/config"

	"github.com/go-chi/cors"
)

// CORS 创建CORS中间件
//
// AllowedOrigins entries may end in "*" to allow every origin with that
// prefix. A lone "*" allows all origins without credentials.
func CORS(cfg *config.Config) func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
			http.MethodPatch,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Requested-With",
			"X-Request-Id",
		},
		ExposedHeaders: []string{
			"Link",
			"X-Request-Id",
		},
		MaxAge: 300, // 5分钟
	}

	origins := cfg.AllowedOrigins
	if len(origins) == 0 || contains(origins, "*") {
		// AllowCredentials 不能与通配符来源同时使用
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false
		return cors.Handler(corsOptions)
	}

	corsOptions.AllowOriginFunc = func(_ *http.Request, origin string) bool {
		return isOriginAllowed(origin, origins)
	}
	corsOptions.AllowCredentials = true
	return cors.Handler(corsOptions)
}

// isOriginAllowed 检查来源是否被允许
func isOriginAllowed(origin string, allowedOrigins []string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range allowedOrigins {
		if allowed == origin {
			return true
		}
		// 简单的通配符支持
		if prefix, ok := strings.CutSuffix(allowed, "*"); ok && strings.HasPrefix(origin, prefix) {
			return true
		}
	}
	return false
}

// contains 检查切片是否包含指定的字符串
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
