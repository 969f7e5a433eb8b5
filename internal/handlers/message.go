package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/hub"
	"discreetx-backend/internal/store"
)

// chatRef points a request at a channel or a direct conversation, exactly one
// of the two.
type chatRef struct {
	ChannelID      int64 `json:"channelID,string,omitempty"`
	ConversationID int64 `json:"conversationID,string,omitempty"`
}

func (c chatRef) scope() (store.Scope, error) {
	switch {
	case c.ChannelID != 0 && c.ConversationID == 0:
		return store.ChannelScope(c.ChannelID), nil
	case c.ConversationID != 0 && c.ChannelID == 0:
		return store.ConversationScope(c.ConversationID), nil
	default:
		return store.Scope{}, apperror.BadRequest("exactly one of channelID and conversationID is required")
	}
}

func scopeFromQuery(r *http.Request) (store.Scope, error) {
	var ref chatRef
	if param := r.URL.Query().Get("channelID"); param != "" {
		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			return store.Scope{}, apperror.BadRequest("invalid channel ID")
		}
		ref.ChannelID = id
	}
	if param := r.URL.Query().Get("conversationID"); param != "" {
		id, err := strconv.ParseInt(param, 10, 64)
		if err != nil {
			return store.Scope{}, apperror.BadRequest("invalid conversation ID")
		}
		ref.ConversationID = id
	}
	return ref.scope()
}

func CreateMessage(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type CreateMessageRequest struct {
		chatRef
		Content string  `json:"content"`
		FileURL *string `json:"fileUrl"`
	}

	var req CreateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	scope, err := req.scope()
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	msg, err := msgService.Post(r.Context(), profileID, scope, req.Content, req.FileURL)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(msg); err != nil {
		sugar.Error(err)
	}
}

func GetMessageList(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)
	sessionID := sessionIDFrom(r)

	scope, err := scopeFromQuery(r)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	list, err := msgService.List(r.Context(), profileID, scope)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	memberIDs, err := chatMemberIDs(r, scope)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := hub.SwitchChat(sessionID, scope.ID(), memberIDs); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := json.NewEncoder(w).Encode(list); err != nil {
		sugar.Error(err)
	}
}

// chatMemberIDs lists the members whose typing indicators belong to the scope.
func chatMemberIDs(r *http.Request, scope store.Scope) ([]int64, error) {
	ctx := r.Context()

	if scope.IsConversation() {
		conv, err := st.ConversationByID(ctx, scope.ConversationID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.NotFound("conversation not found")
		} else if err != nil {
			return nil, apperror.Internal(err)
		}
		return []int64{conv.MemberOneID, conv.MemberTwoID}, nil
	}

	channel, err := st.ChannelByID(ctx, scope.ChannelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NotFound("channel not found")
	} else if err != nil {
		return nil, apperror.Internal(err)
	}

	members, err := st.MembersForServer(ctx, channel.ServerID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func EditMessage(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type EditMessageRequest struct {
		chatRef
		MessageID int64  `json:"messageID,string"`
		Content   string `json:"content"`
	}

	var req EditMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	scope, err := req.scope()
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	msg, err := msgService.Edit(r.Context(), profileID, scope, req.MessageID, req.Content)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(msg); err != nil {
		sugar.Error(err)
	}
}

func DeleteMessage(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type DeleteMessageRequest struct {
		chatRef
		MessageID int64 `json:"messageID,string"`
	}

	var req DeleteMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	scope, err := req.scope()
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	msg, err := msgService.SoftDelete(r.Context(), profileID, scope, req.MessageID)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(msg); err != nil {
		sugar.Error(err)
	}
}

func Typing(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type TypingRequest struct {
		chatRef
		IsTyping bool `json:"isTyping"`
	}

	var req TypingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	scope, err := req.scope()
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := msgService.Typing(r.Context(), profileID, scope, req.IsTyping); err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}
