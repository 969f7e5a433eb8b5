package handlers

import (
	"encoding/json"
	"net/http"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/models"
)

func StartCall(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type StartCallRequest struct {
		ConversationID int64           `json:"conversationID,string"`
		Type           models.CallType `json:"type"`
	}

	var req StartCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	call, err := callCoordinator.Start(r.Context(), profileID, req.ConversationID, req.Type)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(call); err != nil {
		sugar.Error(err)
	}
}

func UpdateCall(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type UpdateCallRequest struct {
		CallID    int64 `json:"callID,string"`
		Answered  bool  `json:"answered"`
		Declined  bool  `json:"declined"`
		Cancelled bool  `json:"cancelled"`
	}

	var req UpdateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	call, err := callCoordinator.Update(r.Context(), profileID, req.CallID, req.Answered, req.Declined, req.Cancelled)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(call); err != nil {
		sugar.Error(err)
	}
}

func EndCall(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type EndCallRequest struct {
		CallID int64 `json:"callID,string"`
	}

	var req EndCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	call, err := callCoordinator.End(r.Context(), profileID, req.CallID)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(call); err != nil {
		sugar.Error(err)
	}
}
