package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/fileHandlers"
	"discreetx-backend/internal/store"
	"discreetx-backend/internal/validator"
)

func GetProfile(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	param := r.URL.Query().Get("profileID")
	if param == "" {
		apperror.WriteHTTP(w, apperror.BadRequest("profileID is required"))
		return
	}

	requestedID := profileID
	if param != "self" {
		var err error
		requestedID, err = strconv.ParseInt(param, 10, 64)
		if err != nil {
			apperror.WriteHTTP(w, apperror.BadRequest("invalid profile ID"))
			return
		}
	}

	profile, err := st.ProfileByID(r.Context(), requestedID)
	if errors.Is(err, store.ErrNotFound) {
		apperror.WriteHTTP(w, apperror.NotFound("profile not found"))
		return
	} else if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	// the email stays private to its owner
	if requestedID != profileID {
		profile.Email = ""
	}

	if err := json.NewEncoder(w).Encode(profile); err != nil {
		sugar.Error(err)
	}
}

func UpdateProfile(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	profile, err := st.ProfileByID(r.Context(), profileID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if displayName := r.FormValue("displayName"); displayName != "" {
		if err := validator.DisplayName(displayName); err != nil {
			apperror.WriteHTTP(w, apperror.Validation(apperror.FieldError{Path: "displayName", Message: err.Error()}))
			return
		}
		profile.DisplayName = displayName
	}

	pictureName, err := fileHandlers.HandleAvatarPicture(r)
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.BadRequest("couldn't process the picture"))
		return
	}
	if pictureName != "" {
		profile.Picture = pictureName
	}

	if err := st.UpdateProfile(r.Context(), profileID, profile.DisplayName, profile.Picture); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := json.NewEncoder(w).Encode(profile); err != nil {
		sugar.Error(err)
	}
}
