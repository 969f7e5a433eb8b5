package handlers

import (
	"encoding/json"
	"net/http"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/fileHandlers"
)

// UploadAttachment stores a file and returns the URL to pass as fileUrl when
// posting a message.
func UploadAttachment(w http.ResponseWriter, r *http.Request) {
	fileURL, err := fileHandlers.HandleAttachment(r)
	if err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("couldn't store the attachment"))
		return
	}

	if err := json.NewEncoder(w).Encode(map[string]string{"fileUrl": fileURL}); err != nil {
		sugar.Error(err)
	}
}
