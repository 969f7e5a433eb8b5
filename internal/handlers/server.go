package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/permissions"
	"discreetx-backend/internal/snowflake"
	"discreetx-backend/internal/store"
	"discreetx-backend/internal/validator"
)

func CreateServer(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type CreateServerRequest struct {
		Name string `json:"name"`
	}

	var req CreateServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	if err := validator.ServerName(req.Name); err != nil {
		apperror.WriteHTTP(w, apperror.Validation(apperror.FieldError{Path: "name", Message: err.Error()}))
		return
	}

	serverID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}
	memberID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}
	channelID, err := snowflake.Generate()
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	server := models.Server{ID: serverID, OwnerID: profileID, Name: req.Name}
	owner := models.Member{ID: memberID, ServerID: serverID, ProfileID: profileID, Role: models.RoleAdmin}
	general := models.Channel{ID: channelID, ServerID: serverID, Name: permissions.ReservedChannelName, Type: models.ChannelText}

	if err := st.CreateServer(r.Context(), server, owner, general); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	sugar.Infof("Profile ID [%d] created server ID [%d]", profileID, serverID)

	if err := json.NewEncoder(w).Encode(server); err != nil {
		sugar.Error(err)
	}
}

func GetServerList(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	servers, err := st.ServersForProfile(r.Context(), profileID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := json.NewEncoder(w).Encode(servers); err != nil {
		sugar.Error(err)
	}
}

// ownedServer loads the server and verifies the caller owns it. Rename and
// delete are owner operations, the role matrix doesn't apply.
func ownedServer(r *http.Request, profileID, serverID int64) (models.Server, error) {
	server, err := st.ServerByID(r.Context(), serverID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Server{}, apperror.NotFound("server not found")
	} else if err != nil {
		return models.Server{}, apperror.Internal(err)
	}

	if server.OwnerID != profileID {
		return models.Server{}, apperror.Forbidden("only the server owner can do that")
	}
	return server, nil
}

func RenameServer(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type RenameServerRequest struct {
		ServerID int64  `json:"serverID,string"`
		Name     string `json:"name"`
	}

	var req RenameServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	if err := validator.ServerName(req.Name); err != nil {
		apperror.WriteHTTP(w, apperror.Validation(apperror.FieldError{Path: "name", Message: err.Error()}))
		return
	}

	server, err := ownedServer(r, profileID, req.ServerID)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := st.RenameServer(r.Context(), server.ID, req.Name); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	server.Name = req.Name
	eventRouter.ServerEvent(r.Context(), server.ID, fanout.EventServerUpdated, server)

	if err := json.NewEncoder(w).Encode(server); err != nil {
		sugar.Error(err)
	}
}

func DeleteServer(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type DeleteServerRequest struct {
		ServerID int64 `json:"serverID,string"`
	}

	var req DeleteServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	server, err := ownedServer(r, profileID, req.ServerID)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := st.DeleteServer(r.Context(), server.ID); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	sugar.Infof("Profile ID [%d] deleted server ID [%d]", profileID, server.ID)
	eventRouter.ServerEvent(r.Context(), server.ID, fanout.EventServerDeleted, map[string]any{"serverID": server.ID})

	w.WriteHeader(http.StatusOK)
}

func LeaveServer(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type LeaveServerRequest struct {
		ServerID int64 `json:"serverID,string"`
	}

	var req LeaveServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	member, err := gate.MemberOfServer(r.Context(), profileID, req.ServerID)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	server, err := st.ServerByID(r.Context(), req.ServerID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}
	if server.OwnerID == profileID {
		apperror.WriteHTTP(w, apperror.Conflict("the owner cannot leave, delete the server instead"))
		return
	}

	if err := st.RemoveMember(r.Context(), member.ID); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	eventRouter.ServerEvent(r.Context(), req.ServerID, fanout.EventServerLeave, member)

	w.WriteHeader(http.StatusOK)
}
