package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"discreetx-backend/internal/apperror"
	"discreetx-backend/internal/fanout"
	"discreetx-backend/internal/models"
	"discreetx-backend/internal/permissions"
	"discreetx-backend/internal/store"
)

func GetMemberList(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	serverID, err := strconv.ParseInt(r.URL.Query().Get("serverID"), 10, 64)
	if err != nil || serverID == 0 {
		apperror.WriteHTTP(w, apperror.BadRequest("invalid server ID"))
		return
	}

	if _, err := gate.MemberOfServer(r.Context(), profileID, serverID); err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	members, err := st.MembersForServer(r.Context(), serverID)
	if err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	if err := json.NewEncoder(w).Encode(members); err != nil {
		sugar.Error(err)
	}
}

// targetMember resolves a member-targeting operation: the caller's membership
// on the target's server, the role matrix, and the ADMIN-on-ADMIN rule.
func targetMember(r *http.Request, profileID, memberID int64, op permissions.Operation) (models.Member, error) {
	target, err := st.MemberByID(r.Context(), memberID)
	if errors.Is(err, store.ErrNotFound) {
		return models.Member{}, apperror.NotFound("member not found")
	} else if err != nil {
		return models.Member{}, apperror.Internal(err)
	}

	caller, err := gate.MemberOfServer(r.Context(), profileID, target.ServerID)
	if err != nil {
		return models.Member{}, err
	}

	if err := gate.RequireOnMember(op, caller.Role, target.Role); err != nil {
		return models.Member{}, err
	}
	return target, nil
}

func ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type ChangeRoleRequest struct {
		MemberID int64       `json:"memberID,string"`
		Role     models.Role `json:"role"`
	}

	var req ChangeRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	if !models.ValidRole(req.Role) {
		apperror.WriteHTTP(w, apperror.Validation(apperror.FieldError{Path: "role", Message: "must be GUEST, MODERATOR or ADMIN"}))
		return
	}

	target, err := targetMember(r, profileID, req.MemberID, permissions.OpChangeRole)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if err := st.UpdateMemberRole(r.Context(), target.ID, req.Role); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	target.Role = req.Role
	eventRouter.ServerEvent(r.Context(), target.ServerID, fanout.EventMemberUpdated, target)

	if err := json.NewEncoder(w).Encode(target); err != nil {
		sugar.Error(err)
	}
}

func KickMember(w http.ResponseWriter, r *http.Request) {
	profileID := profileIDFrom(r)

	type KickMemberRequest struct {
		MemberID int64 `json:"memberID,string"`
	}

	var req KickMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sugar.Debug(err)
		apperror.WriteHTTP(w, apperror.BadRequest("malformed request body"))
		return
	}

	target, err := targetMember(r, profileID, req.MemberID, permissions.OpKickMember)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	if target.ProfileID == profileID {
		apperror.WriteHTTP(w, apperror.Conflict("use leave to remove yourself"))
		return
	}

	if err := st.RemoveMember(r.Context(), target.ID); err != nil {
		sugar.Error(err)
		apperror.WriteHTTP(w, apperror.Internal(err))
		return
	}

	sugar.Infof("Member ID [%d] was kicked from server ID [%d]", target.ID, target.ServerID)
	eventRouter.ServerEvent(r.Context(), target.ServerID, fanout.EventMemberDeleted, map[string]any{"memberID": target.ID})

	w.WriteHeader(http.StatusOK)
}
