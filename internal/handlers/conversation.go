package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"
)

// OpenConversation returns the direct conversation between the caller and
// another member of the same server, creating it on first use. Concurrent
// opens of the same pair converge on one conversation.
func OpenConversation(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type OpenConversationRequest struct {
		ServerID int64 `json:"serverID,string"`
		MemberID int64 `json:"memberID,string"`
	}

	var req OpenConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	caller, err := gate.MemberOfServer(r.Context(), profileID, req.ServerID)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	other, err := st.MemberByID(r.Context(), req.MemberID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && other.ServerID != req.ServerID) {
		apperror.WriteHTTP(w, apperror.NotFound("member not found"))
		return
	} else if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if other.ID == caller.ID {
		apperror.WriteHTTP(w, apperror.BadRequest("cannot open a conversation with yourself"))
		return
	}

	newID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	conv, err := st.GetOrCreateConversation(r.Context(), newID, req.ServerID, caller.ID, other.ID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := json.NewEncoder(w).Encode(conv); err != nil {
		sugar.Error(err)
	}
}
