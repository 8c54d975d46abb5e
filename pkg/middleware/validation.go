package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"challenge-hub-backend/pkg/utils"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// ContentTypeJSON 验证请求Content-Type为application/json
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 只对带请求体的POST、PUT、PATCH请求验证Content-Type
		if (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) && r.ContentLength != 0 {
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				utils.WriteBadRequestResponse(w, "Content-Type header is required")
				return
			}

			// 检查是否为application/json（忽略charset等参数）
			if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
				utils.WriteErrorResponseWithCode(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA_TYPE",
					"Content-Type must be application/json", "")
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// MaxBodySize 限制请求体大小
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiterEntries bounds the number of client IPs tracked at once.
const rateLimiterEntries = 10000

// RateLimitByIP 简单的IP限流（内存版本，适合单实例）
//
// Every client IP gets a token bucket refilled at requestsPerMinute with a
// burst of the same size. The least recently seen IPs are evicted first.
// A non-positive limit disables the middleware.
func RateLimitByIP(requestsPerMinute int) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	limiters, _ := lru.New[string, *rate.Limiter](rateLimiterEntries)
	every := rate.Every(time.Minute / time.Duration(requestsPerMinute))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			limiter, ok := limiters.Get(ip)
			if !ok {
				limiter = rate.NewLimiter(every, requestsPerMinute)
				// a concurrent request may have added one already
				if prev, found, _ := limiters.PeekOrAdd(ip, limiter); found {
					limiter = prev
				}
			}

			if !limiter.Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Minute.Seconds())/requestsPerMinute+1))
				utils.WriteErrorResponseWithCode(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr, which chi's RealIP has
// already set from the forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
