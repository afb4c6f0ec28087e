package roomsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/hub"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/metrics"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/models"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/permissions"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/registry"
)

// Publisher forwards accepted updates to peer instances. Delivery is
// best-effort; a publish failure never blocks local fan-out.
type Publisher interface {
	Publish(roomID string, payload []byte) error
}

// RoomRecorder mirrors room metadata to an external status store.
type RoomRecorder interface {
	RecordRoom(ctx context.Context, info models.RoomInfo) error
	SetParticipants(ctx context.Context, roomID string, count int) error
}

// Coordinator validates inbound events, applies them to the registry and
// permission table, and asks the hub to fan results out. All mutating
// operations on a given room are serialized through a per-room mutex so each
// recipient observes accepted updates in acceptance order.
type Coordinator struct {
	registry *registry.Registry
	perms    *permissions.Table
	hub      *hub.Hub
	log      *zap.Logger

	relay  Publisher    // optional
	status RoomRecorder // optional

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(reg *registry.Registry, perms *permissions.Table, h *hub.Hub, log *zap.Logger) *Coordinator {
	return &Coordinator{
		registry: reg,
		perms:    perms,
		hub:      h,
		log:      log,
		locks:    make(map[string]*sync.Mutex),
	}
}

func (c *Coordinator) SetRelay(p Publisher) { c.relay = p }

func (c *Coordinator) SetStatusStore(s RoomRecorder) { c.status = s }

func (c *Coordinator) roomLock(roomID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[roomID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[roomID] = l
	}
	return l
}

// OnJoin adds the connection to the room and unicasts the current content
// back to it, empty default included. Unknown connections are ignored.
func (c *Coordinator) OnJoin(connID, roomID string) {
	metrics.EventsTotal.WithLabelValues("join").Inc()
	l := c.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	if !c.hub.Join(connID, roomID) {
		return
	}
	identity, _ := c.hub.Identity(connID)
	entry, created := c.perms.Ensure(roomID, identity)
	if created && entry.IsHost && c.status != nil {
		_ = c.status.RecordRoom(context.Background(), models.RoomInfo{
			RoomID:    roomID,
			Host:      identity,
			Status:    "active",
			CreatedAt: time.Now().Format(time.RFC3339),
		})
	}
	c.registry.Touch(roomID)
	metrics.OpenRooms.Set(float64(c.registry.Len()))
	c.recordParticipants(roomID)

	c.hub.Unicast(connID, models.Frame{
		Type: "sync",
		Data: models.SyncResponse{RoomID: roomID, Content: c.registry.Get(roomID)},
	})
}

func (c *Coordinator) OnLeave(connID, roomID string) {
	metrics.EventsTotal.WithLabelValues("leave").Inc()
	c.hub.Leave(connID, roomID)
	c.recordParticipants(roomID)
}

// OnChange replaces the room's whole content blob. Any joined participant may
// issue it; this mirrors the code-sync path, which is not permission-gated.
func (c *Coordinator) OnChange(connID, roomID, content string) {
	metrics.EventsTotal.WithLabelValues("change").Inc()
	if !c.hub.IsMember(connID, roomID) {
		return
	}
	l := c.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	c.registry.Set(roomID, content)
	update := models.UpdateEvent{RoomID: roomID, Content: content}
	c.hub.BroadcastExceptSender(roomID, connID, models.Frame{Type: "update", Data: update})
	metrics.BroadcastsTotal.Inc()
	c.publish(roomID, update)
}

// OnBoardOp relays a drawing operation (draw, clear, undo, redo). Unlike
// OnChange it is gated by the edit capability; a denied op is dropped without
// a broadcast and without touching the registry.
func (c *Coordinator) OnBoardOp(connID, roomID, op string, opData json.RawMessage) {
	metrics.EventsTotal.WithLabelValues(op).Inc()
	if !c.hub.IsMember(connID, roomID) {
		return
	}
	identity, ok := c.hub.Identity(connID)
	if !ok || !c.perms.CheckEdit(roomID, identity) {
		metrics.DeniedMutations.Inc()
		c.log.Debug("board op denied",
			zap.String("room", roomID), zap.String("identity", identity), zap.String("op", op))
		return
	}
	l := c.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	c.registry.Set(roomID, string(opData))
	update := models.UpdateEvent{RoomID: roomID, Op: op, OpData: opData}
	c.hub.BroadcastExceptSender(roomID, connID, models.Frame{Type: "update", Data: update})
	metrics.BroadcastsTotal.Inc()
	c.publish(roomID, update)
}

// OnGrant applies a host's permission change for another participant and
// notifies the room. A non-host grant is dropped silently.
func (c *Coordinator) OnGrant(connID string, req models.GrantRequest) {
	metrics.EventsTotal.WithLabelValues("grant").Inc()
	if !c.hub.IsMember(connID, req.RoomID) {
		return
	}
	identity, ok := c.hub.Identity(connID)
	if !ok {
		return
	}
	entry := permissions.Entry{PermissionSet: req.Permissions, IsHost: req.IsHost}
	if err := c.perms.Grant(req.RoomID, identity, req.TargetID, entry); err != nil {
		if errors.Is(err, permissions.ErrUnauthorized) {
			metrics.DeniedMutations.Inc()
			c.log.Debug("grant denied",
				zap.String("room", req.RoomID), zap.String("granter", identity))
		}
		return
	}
	frame := models.Frame{Type: "permissions", Data: models.PermissionUpdate{
		RoomID:      req.RoomID,
		Identity:    req.TargetID,
		Permissions: req.Permissions,
		IsHost:      req.IsHost,
	}}
	c.hub.BroadcastExceptSender(req.RoomID, connID, frame)
	c.hub.Unicast(connID, frame)
}

// OnDisconnect drops the connection from every room. Peers get no explicit
// notification; the connection simply stops appearing in broadcasts.
func (c *Coordinator) OnDisconnect(connID string) {
	metrics.EventsTotal.WithLabelValues("disconnect").Inc()
	rooms := c.hub.Rooms(connID)
	c.hub.Disconnect(connID)
	for _, roomID := range rooms {
		c.recordParticipants(roomID)
	}
}

// ApplyRemote applies an update published by a peer instance: store locally,
// then fan out to every local member of the room (no sender to exclude here).
func (c *Coordinator) ApplyRemote(roomID string, payload []byte) {
	var update models.UpdateEvent
	if err := json.Unmarshal(payload, &update); err != nil {
		c.log.Warn("dropping malformed relay payload", zap.String("room", roomID), zap.Error(err))
		return
	}
	l := c.roomLock(roomID)
	l.Lock()
	defer l.Unlock()

	if update.Op != "" {
		c.registry.Set(roomID, string(update.OpData))
	} else {
		c.registry.Set(roomID, update.Content)
	}
	c.hub.BroadcastExceptSender(roomID, "", models.Frame{Type: "update", Data: update})
}

func (c *Coordinator) publish(roomID string, update models.UpdateEvent) {
	if c.relay == nil {
		return
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	if err := c.relay.Publish(roomID, payload); err != nil {
		c.log.Warn("relay publish failed", zap.String("room", roomID), zap.Error(err))
	}
}

func (c *Coordinator) recordParticipants(roomID string) {
	if c.status == nil {
		return
	}
	_ = c.status.SetParticipants(context.Background(), roomID, c.hub.RoomSize(roomID))
}
