package handlers

import (
	"net/http"
	"strconv"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/hub"
)

func HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	sessionCookie, err := r.Cookie("session")
	if err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.Unauthenticated("no session cookie was provided"))
		return
	}

	sessionID, err := strconv.ParseInt(sessionCookie.Value, 10, 64)
	if err != nil {
		apperror.WriteHTTP(w, apperror.BadRequest("session cookie is in improper format"))
		return
	}

	hub.HandleClient(profileID, sessionID, w, r)
}
