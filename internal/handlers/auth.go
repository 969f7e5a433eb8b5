package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/jwt"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"
	"discreetx-backend/internal/validator"

	playgroundValidator "github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

func Register(w http.ResponseWriter, r *http.Request) {
	type Registration struct {
		Email           string `json:"email" validate:"required,email"`
		DisplayName     string `json:"displayName" validate:"required"`
		Password        string `json:"password" validate:"required,eqfield=ConfirmPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}

	var registration Registration
	if err := json.NewDecoder(r.Body).Decode(&registration); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	if err := validate.Struct(registration); err != nil {
		var validateErrs playgroundValidator.ValidationErrors
		if !errors.As(err, &validateErrs) {
			sugar.Error(err)
			apperror.WriteHTTP(w, apperror.Internal(err))
			return
		}

		fields := make([]apperror.FieldError, 0, len(validateErrs))
		for _, e := range validateErrs {
			fields = append(fields, apperror.FieldError{Path: e.Field(), Message: e.Tag()})
		}
		apperror.WriteHTTP(w, apperror.Validation(fields...))
		return
	}

	var fields []apperror.FieldError
	if err := validator.Email(registration.Email); err != nil {
		fields = append(fields, apperror.FieldError{Path: "email", Message: err.Error()})
	}
	if err := validator.Password(registration.Password); err != nil {
		fields = append(fields, apperror.FieldError{Path: "password", Message: err.Error()})
	}
	if err := validator.DisplayName(registration.DisplayName); err != nil {
		fields = append(fields, apperror.FieldError{Path: "displayName", Message: err.Error()})
	}
	if len(fields) > 0 {
		apperror.WriteHTTP(w, apperror.Validation(fields...))
		return
	}

	if _, err := st.ProfileByEmail(r.Context(), registration.Email); err == nil {
		apperror.WriteHTTP(w, apperror.Conflict("email is already registered"))
		return
	} else if !errors.Is(err, store.ErrNotFound) {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	profileID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	passwordBytes, err := bcrypt.GenerateFromPassword([]byte(registration.Password), 12)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	profile := models.Profile{
		ID:          profileID,
		Email:       registration.Email,
		DisplayName: registration.DisplayName,
		Password:    passwordBytes,
	}

	if err := st.CreateProfile(r.Context(), profile); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	sugar.Infof("Registered profile ID [%d]", profileID)

	cookie, err := jwt.CreateToken(false, profileID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}
	http.SetCookie(w, &cookie)

	if err := json.NewEncoder(w).Encode(profile); err != nil {
		sugar.Error(err)
	}
}

func Login(w http.ResponseWriter, r *http.Request) {
	type Login struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	var login Login
	if err := json.NewDecoder(r.Body).Decode(&login); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	profile, err := st.ProfileByEmail(r.Context(), login.Email)
	if errors.Is(err, store.ErrNotFound) {
		apperror.WriteHTTP(w, apperror.Unauthenticated("wrong email or password"))
		return
	} else if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := bcrypt.CompareHashAndPassword(profile.Password, []byte(login.Password)); err != nil {
		apperror.WriteHTTP(w, apperror.Unauthenticated("wrong email or password"))
		return
	}

	cookie, err := jwt.CreateToken(r.URL.Query().Get("rememberMe") == "true", profile.ID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}
	http.SetCookie(w, &cookie)
}

func NewSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	sessionCookie := http.Cookie{
		Name:     "session",
		Value:    fmt.Sprint(sessionID),
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, &sessionCookie)
}
