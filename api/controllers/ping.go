package controllers

import (
	"net/http"

	"github.com/mercura-io/storefront-backend/api/middleware"
	"github.com/mercura-io/storefront-backend/api/responses"
)

func PublicPing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"scope": "public", "status": "ok"})
	}
}

func PrivatePing() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]string{"scope": "private", "status": "ok"}
		if userID := middleware.UserIDFromContext(r.Context()); userID != "" {
			payload["user_id"] = userID
		} else if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" {
			payload["session_id"] = sessionID
		}
		responses.WriteSuccess(w, payload)
	}
}
