package roomsync

import (
	"encoding/json"
	"testing"

	"go.uber.org/zap"

	"github.com/Adnxnn/ILCT-Platform-sub001/internal/hub"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/models"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/permissions"
	"github.com/Adnxnn/ILCT-Platform-sub001/internal/registry"
)

type frameCapture struct {
	frames []models.Frame
}

func (c *frameCapture) hook(frame models.Frame) { c.frames = append(c.frames, frame) }

func (c *frameCapture) list() []models.Frame {
	out := make([]models.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *frameCapture) ofType(frameType string) []models.Frame {
	var out []models.Frame
	for _, f := range c.frames {
		if f.Type == frameType {
			out = append(out, f)
		}
	}
	return out
}

type fixture struct {
	registry *registry.Registry
	perms    *permissions.Table
	hub      *hub.Hub
	coord    *Coordinator
}

func newFixture() *fixture {
	reg := registry.New(0)
	perms := permissions.NewTable()
	h := hub.New()
	return &fixture{
		registry: reg,
		perms:    perms,
		hub:      h,
		coord:    New(reg, perms, h, zap.NewNop()),
	}
}

func (f *fixture) connect(id, identity string) *frameCapture {
	c := hub.NewClient(id, identity, nil)
	capture := &frameCapture{}
	c.SetSendHook(capture.hook)
	f.hub.Register(c)
	return capture
}

func syncContent(t *testing.T, frame models.Frame) models.SyncResponse {
	t.Helper()
	resp, ok := frame.Data.(models.SyncResponse)
	if !ok {
		t.Fatalf("expected SyncResponse payload, got %#v", frame.Data)
	}
	return resp
}

func updatePayload(t *testing.T, frame models.Frame) models.UpdateEvent {
	t.Helper()
	ev, ok := frame.Data.(models.UpdateEvent)
	if !ok {
		t.Fatalf("expected UpdateEvent payload, got %#v", frame.Data)
	}
	return ev
}

func TestJoinUnicastsCurrentContentEvenWhenEmpty(t *testing.T) {
	f := newFixture()
	capA := f.connect("a", "alice")

	f.coord.OnJoin("a", "42")

	frames := capA.ofType("sync")
	if len(frames) != 1 {
		t.Fatalf("joiner must receive exactly one sync frame, got %d", len(frames))
	}
	resp := syncContent(t, frames[0])
	if resp.RoomID != "42" || resp.Content != "" {
		t.Fatalf("expected empty default sync for room 42, got %#v", resp)
	}
}

func TestLateJoinerReceivesLatestContent(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	f.coord.OnJoin("a", "42")
	f.coord.OnChange("a", "42", "print(1)")

	capB := f.connect("b", "bob")
	f.coord.OnJoin("b", "42")

	frames := capB.ofType("sync")
	if len(frames) != 1 {
		t.Fatalf("expected one sync frame, got %d", len(frames))
	}
	if resp := syncContent(t, frames[0]); resp.Content != "print(1)" {
		t.Fatalf("late joiner should see latest content, got %q", resp.Content)
	}
}

func TestJoinUnknownConnectionIsNoop(t *testing.T) {
	f := newFixture()
	f.coord.OnJoin("ghost", "42")
	if f.registry.Len() != 0 {
		t.Fatalf("a join from an unknown connection must not create the room")
	}
}

func TestChangeBroadcastsToAllButSender(t *testing.T) {
	f := newFixture()
	capA := f.connect("a", "alice")
	capB := f.connect("b", "bob")
	capC := f.connect("c", "carol")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")
	f.coord.OnJoin("c", "42")

	f.coord.OnChange("a", "42", "print(1)")

	if got := f.registry.Get("42"); got != "print(1)" {
		t.Fatalf("registry should hold the new content, got %q", got)
	}
	if len(capA.ofType("update")) != 0 {
		t.Fatalf("sender must not receive its own update")
	}
	for name, cap := range map[string]*frameCapture{"b": capB, "c": capC} {
		frames := cap.ofType("update")
		if len(frames) != 1 {
			t.Fatalf("%s should receive one update, got %d", name, len(frames))
		}
		ev := updatePayload(t, frames[0])
		if ev.RoomID != "42" || ev.Content != "print(1)" {
			t.Fatalf("unexpected update for %s: %#v", name, ev)
		}
	}
}

func TestChangeFromNonMemberIsDropped(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	capB := f.connect("b", "bob")
	f.coord.OnJoin("b", "42")

	// "a" never joined room 42.
	f.coord.OnChange("a", "42", "sneaky")

	if got := f.registry.Get("42"); got != "" {
		t.Fatalf("non-member change must not mutate the registry, got %q", got)
	}
	if len(capB.ofType("update")) != 0 {
		t.Fatalf("non-member change must not broadcast")
	}
}

func TestChangeIsNotPermissionGated(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	capB := f.connect("b", "bob")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")

	// Bob is not the host and has no edit rights, but whole-content
	// replaces are accepted from any joined participant.
	if f.perms.CheckEdit("42", "bob") {
		t.Fatalf("precondition: bob must not have edit rights")
	}
	f.coord.OnChange("b", "42", "bob wrote this")

	if got := f.registry.Get("42"); got != "bob wrote this" {
		t.Fatalf("change from a joined non-editor must be accepted, got %q", got)
	}
	if len(capB.ofType("update")) != 0 {
		t.Fatalf("sender must not receive its own update")
	}
}

func TestBoardOpRequiresEditPermission(t *testing.T) {
	f := newFixture()
	capA := f.connect("a", "alice")
	f.connect("b", "bob")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")
	f.coord.OnChange("a", "42", "baseline")

	op := json.RawMessage(`{"roomId":"42","points":[[0,0],[1,1]]}`)
	f.coord.OnBoardOp("b", "42", "draw", op)

	if got := f.registry.Get("42"); got != "baseline" {
		t.Fatalf("denied op must not mutate the registry, got %q", got)
	}
	if len(capA.ofType("update")) != 0 {
		t.Fatalf("denied op must not broadcast")
	}
}

func TestBoardOpFromEditorIsRelayedVerbatim(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	capB := f.connect("b", "bob")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")

	op := json.RawMessage(`{"roomId":"42","points":[[0,0],[1,1]]}`)
	f.coord.OnBoardOp("a", "42", "draw", op)

	frames := capB.ofType("update")
	if len(frames) != 1 {
		t.Fatalf("expected one update, got %d", len(frames))
	}
	ev := updatePayload(t, frames[0])
	if ev.Op != "draw" || string(ev.OpData) != string(op) {
		t.Fatalf("op payload must be relayed verbatim, got %#v", ev)
	}
	if got := f.registry.Get("42"); got != string(op) {
		t.Fatalf("accepted op should become the room's latest blob, got %q", got)
	}
}

func TestUpdatesArriveInAcceptanceOrder(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	capB := f.connect("b", "bob")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")

	f.coord.OnChange("a", "42", "M1")
	f.coord.OnChange("a", "42", "M2")

	frames := capB.ofType("update")
	if len(frames) != 2 {
		t.Fatalf("expected two updates, got %d", len(frames))
	}
	if updatePayload(t, frames[0]).Content != "M1" || updatePayload(t, frames[1]).Content != "M2" {
		t.Fatalf("updates must be observed in acceptance order, got %#v", frames)
	}
	if got := f.registry.Get("42"); got != "M2" {
		t.Fatalf("registry should hold the last write, got %q", got)
	}
}

func TestDisconnectStopsDeliveries(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	capB := f.connect("b", "bob")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")

	f.coord.OnDisconnect("b")
	f.coord.OnChange("a", "42", "after")

	if len(capB.ofType("update")) != 0 {
		t.Fatalf("disconnected connection must never be targeted")
	}
	// Events from a disconnected connection are no-ops, never fatal.
	f.coord.OnDisconnect("a")
	f.coord.OnChange("a", "42", "nobody home")
}

func TestLeaveThenRejoin(t *testing.T) {
	f := newFixture()
	capA := f.connect("a", "alice")
	f.coord.OnJoin("a", "42")
	f.coord.OnChange("a", "42", "kept")
	f.coord.OnLeave("a", "42")

	f.coord.OnChange("a", "42", "while away")
	if got := f.registry.Get("42"); got != "kept" {
		t.Fatalf("a change after leave must be dropped, got %q", got)
	}

	f.coord.OnJoin("a", "42")
	frames := capA.ofType("sync")
	if len(frames) != 2 {
		t.Fatalf("expected a sync per join, got %d", len(frames))
	}
	if resp := syncContent(t, frames[1]); resp.Content != "kept" {
		t.Fatalf("room content persists across leave, got %q", resp.Content)
	}
	// Alice keeps her host entry from the first join.
	if !f.perms.CheckHost("42", "alice") {
		t.Fatalf("permission entries persist across rejoin")
	}
}

func TestGrantFlowsThroughToBoardOps(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	capB := f.connect("b", "bob")
	capC := f.connect("c", "carol")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")
	f.coord.OnJoin("c", "42")

	// Bob's draw is dropped before the grant.
	op := json.RawMessage(`{"roomId":"42","shape":"line"}`)
	f.coord.OnBoardOp("b", "42", "draw", op)
	if len(capC.ofType("update")) != 0 {
		t.Fatalf("pre-grant op should be denied")
	}

	f.coord.OnGrant("a", models.GrantRequest{
		RoomID:      "42",
		TargetID:    "bob",
		Permissions: models.PermissionSet{CanEdit: true, CanChat: true},
	})

	if len(capB.ofType("permissions")) != 1 {
		t.Fatalf("room should be notified of the permission change")
	}

	f.coord.OnBoardOp("b", "42", "draw", op)
	if len(capC.ofType("update")) != 1 {
		t.Fatalf("post-grant op should be relayed")
	}
}

func TestGrantByNonHostIsSilentlyDropped(t *testing.T) {
	f := newFixture()
	f.connect("a", "alice")
	capB := f.connect("b", "bob")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")

	f.coord.OnGrant("b", models.GrantRequest{
		RoomID:      "42",
		TargetID:    "bob",
		Permissions: models.PermissionSet{CanEdit: true},
	})

	if f.perms.CheckEdit("42", "bob") {
		t.Fatalf("non-host grant must not apply")
	}
	if len(capB.ofType("permissions")) != 0 {
		t.Fatalf("non-host grant must not broadcast")
	}
}

func TestApplyRemoteStoresAndFansOutToAllMembers(t *testing.T) {
	f := newFixture()
	capA := f.connect("a", "alice")
	capB := f.connect("b", "bob")
	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")

	payload, _ := json.Marshal(models.UpdateEvent{RoomID: "42", Content: "from peer"})
	f.coord.ApplyRemote("42", payload)

	if got := f.registry.Get("42"); got != "from peer" {
		t.Fatalf("remote update should be stored, got %q", got)
	}
	if len(capA.ofType("update")) != 1 || len(capB.ofType("update")) != 1 {
		t.Fatalf("remote update should reach every local member")
	}
}

func TestApplyRemoteDropsMalformedPayload(t *testing.T) {
	f := newFixture()
	f.coord.ApplyRemote("42", []byte("{not json"))
	if f.registry.Len() != 0 {
		t.Fatalf("malformed relay payload must be dropped")
	}
}

// The worked end-to-end scenario: A joins, B joins, A edits, B is denied.
func TestExampleScenario(t *testing.T) {
	f := newFixture()
	capA := f.connect("a", "alice")
	capB := f.connect("b", "bob")

	f.coord.OnJoin("a", "42")
	f.coord.OnJoin("b", "42")
	if syncContent(t, capA.ofType("sync")[0]).Content != "" {
		t.Fatalf("A should receive the empty default")
	}
	if syncContent(t, capB.ofType("sync")[0]).Content != "" {
		t.Fatalf("B should receive the empty default")
	}

	f.coord.OnChange("a", "42", "print(1)")
	if got := f.registry.Get("42"); got != "print(1)" {
		t.Fatalf("registry should hold print(1), got %q", got)
	}
	updates := capB.ofType("update")
	if len(updates) != 1 || updatePayload(t, updates[0]).Content != "print(1)" {
		t.Fatalf("B should receive the update, got %#v", updates)
	}
	if len(capA.ofType("update")) != 0 {
		t.Fatalf("A must not receive its own update")
	}

	// B lacks edit rights; a drawing mutation is dropped.
	f.coord.OnBoardOp("b", "42", "draw", json.RawMessage(`{"roomId":"42"}`))
	if got := f.registry.Get("42"); got != "print(1)" {
		t.Fatalf("registry must be unchanged, got %q", got)
	}
	if len(capA.ofType("update")) != 0 {
		t.Fatalf("A should receive nothing from B's denied mutation")
	}
}
