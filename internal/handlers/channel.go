package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/hub"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/permissions"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"
	"discreetx-backend/internal/validator"
)

func CreateChannel(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type CreateChannelRequest struct {
		ServerID int64              `json:"serverID,string"`
		Name     string             `json:"name"`
		Type     models.ChannelType `json:"type"`
	}

	var req CreateChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	if err := validator.ChannelName(req.Name); err != nil {
		apperror.WriteHTTP(w, apperror.Validation(apperror.FieldError{Path: "name", Message: err.Error()}))
		return
	}
	if req.Name == permissions.ReservedChannelName {
		apperror.WriteHTTP(w, apperror.Conflict("channel name is reserved"))
		return
	}
	if req.Type != models.ChannelText && req.Type != models.ChannelAudio && req.Type != models.ChannelVideo {
		apperror.WriteHTTP(w, apperror.Validation(apperror.FieldError{Path: "type", Message: "must be TEXT, AUDIO or VIDEO"}))
		return
	}

	member, err := gate.MemberOfServer(r.Context(), profileID, req.ServerID)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}
	if err := gate.Require(permissions.OpCreateChannel, member.Role, false); err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	channelID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	channel := models.Channel{ID: channelID, ServerID: req.ServerID, Name: req.Name, Type: req.Type}
	if err := st.CreateChannel(r.Context(), channel); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	eventRouter.ServerEvent(r.Context(), req.ServerID, fanout.EventChannelCreated, channel)

	if err := json.NewEncoder(w).Encode(channel); err != nil {
		sugar.Error(err)
	}
}

func GetChannelList(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)
	sessionID := sessionIDFrom(r)

	serverID, err := strconv.ParseInt(r.URL.Query().Get("serverID"), 10, 64)
	if err != nil || serverID == 0 {
		apperror.WriteHTTP(w, apperror.BadRequest("invalid server ID"))
		return
	}

	if _, err := gate.MemberOfServer(r.Context(), profileID, serverID); err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	channels, err := st.ChannelsForServer(r.Context(), serverID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := hub.SwitchServer(sessionID, serverID); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := json.NewEncoder(w).Encode(channels); err != nil {
		sugar.Error(err)
	}
}

// channelForStructuralChange resolves the channel and checks the caller may
// run the given operation on its server.
func channelForStructuralChange(r *http.Request, profileID, channelID int64, op permissions.Operation) (models.Channel, error) {
	channel, err := st.ChannelByID(r.Context(), channelID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Channel{}, apperror.NotFound("channel not found")
	} else if err != nil {
		return models.Channel{}, apperror.Internal(err)
	}

	member, err := gate.MemberOfServer(r.Context(), profileID, channel.ServerID)
	if err != nil {
		return models.Channel{}, err
	}
	if err := gate.Require(op, member.Role, false); err != nil {
		return models.Channel{}, err
	}
	return channel, nil
}

func RenameChannel(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type RenameChannelRequest struct {
		ChannelID int64  `json:"channelID,string"`
		Name      string `json:"name"`
	}

	var req RenameChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	if err := validator.ChannelName(req.Name); err != nil {
		apperror.WriteHTTP(w, apperror.Validation(apperror.FieldError{Path: "name", Message: err.Error()}))
		return
	}

	channel, err := channelForStructuralChange(r, profileID, req.ChannelID, permissions.OpRenameChannel)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if !permissions.RenameAllowed(channel.Name, req.Name) {
		apperror.WriteHTTP(w, apperror.Forbidden("the general channel cannot be renamed"))
		return
	}

	ok, err := st.RenameChannelExceptGeneral(r.Context(), channel.ID, req.Name)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}
	if !ok {
		apperror.WriteHTTP(w, apperror.Forbidden("the general channel cannot be renamed"))
		return
	}

	channel.Name = req.Name
	eventRouter.ServerEvent(r.Context(), channel.ServerID, fanout.EventChannelUpdated, channel)

	if err := json.NewEncoder(w).Encode(channel); err != nil {
		sugar.Error(err)
	}
}

func DeleteChannel(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type DeleteChannelRequest struct {
		ChannelID int64 `json:"channelID,string"`
	}

	var req DeleteChannelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	channel, err := channelForStructuralChange(r, profileID, req.ChannelID, permissions.OpDeleteChannel)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	ok, err := st.DeleteChannelExceptGeneral(r.Context(), channel.ID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}
	if !ok {
		apperror.WriteHTTP(w, apperror.Forbidden("the general channel cannot be deleted"))
		return
	}

	eventRouter.ServerEvent(r.Context(), channel.ServerID, fanout.EventChannelDeleted, map[string]any{"channelID": channel.ID})

	w.WriteHeader(http.StatusOK)
}
