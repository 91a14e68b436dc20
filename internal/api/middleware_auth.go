// TourGuard - Tourist Safety Realtime Gateway
// Copyright 2026 TourGuard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tourguard/gateway

package api

import (
	"context"
	"net/http"

	"github.com/tourguard/gateway/internal/auth"
	"github.com/tourguard/gateway/internal/logging"
)

type contextKey string

const identityContextKey contextKey = "identity"

// IdentityFromContext returns the verified identity set by RequireOperator,
// or nil when the request was not authenticated.
func IdentityFromContext(ctx context.Context) *auth.Identity {
	id, _ := ctx.Value(identityContextKey).(*auth.Identity)
	return id
}

// RequireOperator authenticates the bearer token and rejects callers whose
// role cannot manage the gateway.
func (h *Handler) RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required", nil)
			return
		}

		identity, err := h.tokens.Verify(token)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid or expired token", nil)
			return
		}

		if !identity.Role.Operator() {
			logging.Warn().
				Str("subject", sanitizeLogValue(identity.Subject)).
				Str("role", string(identity.Role)).
				Str("path", r.URL.Path).
				Msg("management access denied")
			respondError(w, http.StatusForbidden, "FORBIDDEN", "Operator role required", nil)
			return
		}

		ctx := context.WithValue(r.Context(), identityContextKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
