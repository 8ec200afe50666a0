package middleware

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
)

// DeviceAuth guards the control API with the shared device token the shell
// was provisioned with. An empty configured token disables the check (dev
// only; production deployments always set one).
type DeviceAuth struct {
	token string
	logr  *zap.Logger
}

func NewDeviceAuth(token string, logr *zap.Logger) *DeviceAuth {
	return &DeviceAuth{token: token, logr: logr}
}

func (m *DeviceAuth) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.token == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get("X-Device-Token")
		if got == "" {
			http.Error(w, "missing device token", http.StatusUnauthorized)
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.token)) != 1 {
			m.logr.Warn("device token mismatch", zap.String("remote", r.RemoteAddr))
			http.Error(w, "invalid device token", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
