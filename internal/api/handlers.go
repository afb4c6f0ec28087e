package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/hub"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/metrics"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/models"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/permissions"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/roomsync"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/status"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/utils"
)

var validateToken = utils.ValidateRoomToken

type Handlers struct {
	log      *zap.Logger
	coord    *roomsync.Coordinator
	hub      *hub.Hub
	perms    *permissions.Table
	status   *status.Store
	upgrader websocket.Upgrader
}

func NewHandlers(log *zap.Logger, coord *roomsync.Coordinator, h *hub.Hub, perms *permissions.Table, st *status.Store) *Handlers {
	return &Handlers{
		log:      log,
		coord:    coord,
		hub:      h,
		perms:    perms,
		status:   st,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// RoomStatus serves room metadata from the status mirror.
func (h *Handlers) RoomStatus(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	if roomID == "" {
		http.Error(w, "room id is required", http.StatusBadRequest)
		return
	}
	if h.status == nil {
		http.Error(w, "status store unavailable", http.StatusServiceUnavailable)
		return
	}
	info, err := h.status.GetRoomStatus(r.Context(), roomID)
	if err != nil {
		http.Error(w, "room not found", http.StatusNotFound)
		return
	}
	writeJSON(w, info)
}

// RoomPermissions lists the room's permission entries. Host only.
func (h *Handlers) RoomPermissions(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "id")
	token, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	claims, err := validateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if !h.perms.CheckHost(roomID, claims.UserId) {
		http.Error(w, "host only", http.StatusForbidden)
		return
	}

	entries := h.perms.Snapshot(roomID)
	out := make(map[string]models.PermissionUpdate, len(entries))
	for identity, e := range entries {
		out[identity] = models.PermissionUpdate{
			RoomID:      roomID,
			Identity:    identity,
			Permissions: e.PermissionSet,
			IsHost:      e.IsHost,
		}
	}
	writeJSON(w, out)
}

/*** Room sync WebSocket: one connection, any number of joined rooms ***/

func (h *Handlers) RoomWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		if t, err := utils.ExtractTokenFromHeader(r.Header.Get("Authorization")); err == nil {
			token = t
		}
	}
	claims, err := validateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	client := hub.NewClient(uuid.New().String(), claims.UserId, conn)
	h.hub.Register(client)
	metrics.ActiveConnections.Inc()
	defer func() {
		h.coord.OnDisconnect(client.ID)
		metrics.ActiveConnections.Dec()
	}()

	h.log.Info("connection opened",
		zap.String("conn", client.ID), zap.String("identity", claims.UserId))

	for {
		var frame models.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}

		switch frame.Type {
		case "join":
			var req models.JoinRequest
			marshal(frame.Data, &req)
			if req.RoomID == "" {
				continue
			}
			if claims.RoomId != "" && claims.RoomId != req.RoomID {
				client.Send(errFrame("unauthorized_room"))
				continue
			}
			h.coord.OnJoin(client.ID, req.RoomID)

		case "leave":
			var req models.LeaveRequest
			marshal(frame.Data, &req)
			if req.RoomID == "" {
				continue
			}
			h.coord.OnLeave(client.ID, req.RoomID)

		case "change":
			var req models.ContentChange
			marshal(frame.Data, &req)
			if req.RoomID == "" {
				continue
			}
			h.coord.OnChange(client.ID, req.RoomID, req.Content)

		case "draw", "clear", "undo", "redo":
			var op models.BoardOp
			marshal(frame.Data, &op)
			if op.RoomID == "" {
				continue
			}
			payload, err := json.Marshal(frame.Data)
			if err != nil {
				continue
			}
			h.coord.OnBoardOp(client.ID, op.RoomID, frame.Type, payload)

		case "grant":
			var req models.GrantRequest
			marshal(frame.Data, &req)
			if req.RoomID == "" || req.TargetID == "" {
				continue
			}
			h.coord.OnGrant(client.ID, req)

		default:
			client.Send(errFrame("unknown_type"))
		}
	}
}

func marshal(in any, out any) { b, _ := json.Marshal(in); _ = json.Unmarshal(b, out) }

func errFrame(msg string) models.Frame { return models.Frame{Type: "error", Data: msg} }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
