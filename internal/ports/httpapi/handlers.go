package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"ito/internal/app/cleanup"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"
)

const maxBodyBytes = 4 << 10

type sessionResponse struct {
	UserID    string    `json:"userId"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type successResponse struct {
	Success bool `json:"success"`
}

var okResponse = successResponse{Success: true}

type joinRequest struct {
	Password string `json:"password"`
}

type kickRequest struct {
	PlayerID string `json:"playerId"`
}

type topicRequest struct {
	Topic *string `json:"topic"`
}

type nameRequest struct {
	Name *string `json:"name"`
}

type avatarRequest struct {
	Avatar *int `json:"avatar"`
}

type hintRequest struct {
	Hint *string `json:"hint"`
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errBadRequest("invalid JSON body")
	}
	return nil
}

func roomID(r *http.Request) string {
	return chi.URLParam(r, "roomId")
}

// createSession mints an anonymous identity and a bearer token for it.
func (h handler) createSession(w http.ResponseWriter, r *http.Request) {
	ident, err := h.Identities.CreateAnonymous(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := h.Rooms.InitPlayer(r.Context(), ident.ID); err != nil {
		writeError(w, r, err)
		return
	}
	token, expires, err := h.Sessions.Issue(ident.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{UserID: ident.ID, Token: token, ExpiresAt: expires})
}

func (h handler) initPlayer(w http.ResponseWriter, r *http.Request) {
	session, err := h.Rooms.InitPlayer(r.Context(), callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h handler) createRoom(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Rooms.CreateRoom(r.Context(), callerID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (h handler) joinRoom(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ticket, err := h.Rooms.JoinRoom(r.Context(), callerID(r.Context()), req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

// roomAction adapts a body-less room operation.
func (h handler) roomAction(op func(ctx context.Context, callerID, roomID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := op(r.Context(), callerID(r.Context()), roomID(r)); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, okResponse)
	}
}

func (h handler) kickPlayer(w http.ResponseWriter, r *http.Request) {
	var req kickRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.Rooms.KickPlayer(r.Context(), callerID(r.Context()), roomID(r), req.PlayerID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h handler) updateTopic(w http.ResponseWriter, r *http.Request) {
	var req topicRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Topic == nil {
		writeError(w, r, errBadRequest("topic is required"))
		return
	}
	if err := h.Rooms.UpdateTopic(r.Context(), callerID(r.Context()), roomID(r), *req.Topic); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h handler) updateName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name == nil {
		writeError(w, r, errBadRequest("name is required"))
		return
	}
	if err := h.Rooms.UpdateName(r.Context(), callerID(r.Context()), roomID(r), *req.Name); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h handler) updateAvatar(w http.ResponseWriter, r *http.Request) {
	var req avatarRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Avatar == nil {
		writeError(w, r, errBadRequest("avatar is required"))
		return
	}
	if err := h.Rooms.UpdateAvatar(r.Context(), callerID(r.Context()), roomID(r), *req.Avatar); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h handler) updateHint(w http.ResponseWriter, r *http.Request) {
	var req hintRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Hint == nil {
		writeError(w, r, errBadRequest("hint is required"))
		return
	}
	if err := h.Rooms.UpdateHint(r.Context(), callerID(r.Context()), roomID(r), *req.Hint); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse)
}

func (h handler) getRoomConfig(w http.ResponseWriter, r *http.Request) {
	view, err := h.Rooms.GetRoomConfig(r.Context(), callerID(r.Context()), roomID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h handler) getValue(w http.ResponseWriter, r *http.Request) {
	value, err := h.Rooms.GetValue(r.Context(), callerID(r.Context()), roomID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, value)
}

func (h handler) getRoomInfo(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.Rooms.GetRoomInfo(r.Context(), callerID(r.Context()), roomID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h handler) runCleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.Cleanup.Run(r.Context())
	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("cleanup finished with errors")
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		cleanup.Report
	}{Success: true, Report: report})
}
