// internal/middleware/csrf.go
package middleware

import (
	"net/http"
	"net/url"

	"filippo.io/csrf/gorilla"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CSRF rejects cross-origin state-changing requests based on Fetch metadata headers. Requests from
// the configured frontend origins are allowed.
func CSRF(authKey []byte, allowedOrigins []string) gin.HandlerFunc {
	opts := []csrf.Option{
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	}
	if hosts := trustedHosts(allowedOrigins); len(hosts) > 0 {
		opts = append(opts, csrf.TrustedOrigins(hosts))
	}
	protect := csrf.Protect(authKey, opts...)

	return func(c *gin.Context) {
		passed := false
		protect(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)

		if !passed {
			c.Abort()
		}
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	reason := "unknown"
	if err := csrf.FailureReason(r); err != nil {
		reason = err.Error()
	}
	logrus.WithFields(logrus.Fields{
		"reason":         reason,
		"method":         r.Method,
		"path":           r.URL.Path,
		"origin":         r.Header.Get("Origin"),
		"sec_fetch_site": r.Header.Get("Sec-Fetch-Site"),
	}).Warn("CSRF validation failed")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"success":false,"error":{"code":"FORBIDDEN","message":"Cross-origin request rejected"}}`))
}

// trustedHosts turns origins like https://example.com into the host-only form the csrf package
// expects.
func trustedHosts(origins []string) []string {
	hosts := make([]string, 0, len(origins))
	for _, origin := range origins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

