package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/hub"
	"discreetx-backend/internal/jwt"
	"discreetx-backend/internal/keyValue"
)

type profileIDKeyType struct{}
type sessionIDKeyType struct{}

func profileIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(profileIDKeyType{}).(int64)
	return id
}

func sessionIDFrom(r *http.Request) int64 {
	id, _ := r.Context().Value(sessionIDKeyType{}).(int64)
	return id
}

func AllowCors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ProfileVerifier authenticates the request from the JWT cookie. The profile's
// existence is cached in keyValue so the database is only hit on a cold key.
// Tokens older than 15 minutes are reissued on the way through.
func ProfileVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jwtCookie, err := r.Cookie("JWT")
		if err != nil {
			sugar.Debug(err)
			apperror.WriteHTTP(w, apperror.Unauthenticated("no jwt cookie was provided"))
			return
		}

		token, err := jwt.VerifyToken(jwtCookie.Value)
		if err != nil {
			sugar.Debug(err)
			apperror.WriteHTTP(w, apperror.Unauthenticated("couldn't verify JWT"))
			return
		}

		if time.Now().UTC().After(token.ExpiresAt.UTC()) {
			apperror.WriteHTTP(w, apperror.Unauthenticated("login expired"))
			return
		}

		key := fmt.Sprintf("profile_exists:%d", token.ProfileID)

		profileFound := false

		value, err := keyValue.Get(key)
		if err != nil {
			sugar.Error(err)
			apperror.WriteHTTP(w, apperror.Internal(err))
			return
		}

		if value == "" { // profile isn't cached
			profileFound, err = st.ProfileExists(r.Context(), token.ProfileID)
			if err != nil {
				sugar.Error(err)
				apperror.WriteHTTP(w, apperror.Internal(err))
				return
			}
			if profileFound {
				if err := keyValue.Set(key, "y", 15*time.Minute); err != nil {
					sugar.Error(err)
					apperror.WriteHTTP(w, apperror.Internal(err))
					return
				}
			}
		} else {
			profileFound = true
		}

		// a valid token for a deleted profile: take the cookie back
		if !profileFound {
			http.SetCookie(w, &http.Cookie{
				Name:     "JWT",
				Value:    "",
				Path:     "/",
				Expires:  time.Unix(0, 0),
				HttpOnly: true,
			})
			apperror.WriteHTTP(w, apperror.Unauthenticated("no resolvable identity"))
			return
		}

		if time.Now().UTC().Sub(token.IssuedAt.Time) >= 15*time.Minute {
			renewedCookie, err := jwt.CreateToken(token.Remember, token.ProfileID)
			if err != nil {
				sugar.Error(err)
				apperror.WriteHTTP(w, apperror.Internal(err))
				return
			}
			http.SetCookie(w, &renewedCookie)
		}

		ctx := context.WithValue(r.Context(), profileIDKeyType{}, token.ProfileID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionVerifier requires a live websocket session, read paths use it so the
// hub can retarget the session's subscriptions.
func SessionVerifier(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionCookie, err := r.Cookie("session")
		if err != nil {
			sugar.Debug(err)
			if errors.Is(err, http.ErrNoCookie) {
				apperror.WriteHTTP(w, apperror.Unauthenticated("no session cookie was provided"))
			} else {
				apperror.WriteHTTP(w, apperror.Internal(err))
			}
			return
		}

		sessionID, err := strconv.ParseInt(sessionCookie.Value, 10, 64)
		if err != nil {
			apperror.WriteHTTP(w, apperror.BadRequest("session cookie is in improper format"))
			return
		}

		if _, exists := hub.GetClient(sessionID); !exists {
			apperror.WriteHTTP(w, apperror.Unauthenticated("you are not connected to websocket"))
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKeyType{}, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
