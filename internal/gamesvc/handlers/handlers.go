package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/voysta/game-services/internal/comm"
	"github.com/voysta/game-services/internal/coordinator"
	"github.com/voysta/game-services/internal/rooms"
	"github.com/voysta/game-services/internal/session"
	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

type Handler struct {
	tokenAuth *jwtauth.JWTAuth
	registry  session.Registry
	rooms     rooms.Directory
	coord     *coordinator.Coordinator
}

func NewHandler(registry session.Registry, dir rooms.Directory, coord *coordinator.Coordinator) *Handler {
	return &Handler{
		registry: registry,
		rooms:    dir,
		coord:    coord,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode response: %v", err)
	}
}

// CreateSessionHandler issues a single-use game session for the
// authenticated caller. The caller identity comes from the bearer token;
// only the room is named in the body.
func (h *Handler) CreateSessionHandler(w http.ResponseWriter, r *http.Request) {
	userId, ok := h.callerUserId(r)
	if !ok {
		h.CreateResponse(w, Response{Code: http.StatusUnauthorized, Error: comm.CodeUserNotFound})
		return
	}

	var body struct {
		RoomId string `json:"room_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RoomId == "" {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: comm.CodeActionInvalid})
		return
	}

	exists, err := h.rooms.RoomExists(r.Context(), body.RoomId)
	if err != nil {
		log.Errorf("room lookup failed for %s: %v", body.RoomId, err)
		h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "room lookup failed"})
		return
	}
	if !exists {
		h.CreateResponse(w, Response{Code: http.StatusNotFound, Error: comm.CodeRoomNotFound})
		return
	}

	sess, err := h.registry.Create(r.Context(), body.RoomId, userId)
	if err != nil {
		log.Errorf("session create failed for user %d room %s: %v", userId, body.RoomId, err)
		h.CreateResponse(w, Response{Code: http.StatusServiceUnavailable, Error: "session unavailable"})
		return
	}

	grant := comm.SessionGrant{
		RoomId:    sess.RoomId,
		UserId:    sess.UserId,
		SessionId: sess.SessionId,
		ExpiresAt: sess.ExpiresAt,
	}
	h.CreateResponse(w, Response{Code: http.StatusOK, Data: grant, Message: "session issued"})
}

// GameStateHandler returns the room's current authoritative state so a
// client can resynchronize after a missed broadcast.
func (h *Handler) GameStateHandler(w http.ResponseWriter, r *http.Request) {
	roomId := chi.URLParam(r, "roomId")
	if roomId == "" {
		h.CreateResponse(w, Response{Code: http.StatusBadRequest, Error: comm.CodeActionInvalid})
		return
	}

	snap, ok := h.coord.Snapshot(roomId)
	if !ok {
		h.CreateResponse(w, Response{Code: http.StatusNotFound, Error: comm.CodeRoomNotFound})
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: snap})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "game service is running at port " + os.Getenv("SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	if err := json.NewEncoder(w).Encode(rsp); err != nil {
		log.Errorf("Failed to encode health response: %v", err)
	}
}

func (h *Handler) callerUserId(r *http.Request) (int64, bool) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return 0, false
	}

	switch v := claims["user_id"].(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}
