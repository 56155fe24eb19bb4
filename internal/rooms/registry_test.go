package rooms

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stillwater-health/telesession/internal/token"
)

// fakePresence records mirror writes in order.
type fakePresence struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (p *fakePresence) AddPeer(_ context.Context, roomID, socketID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.added = append(p.added, roomID+"/"+socketID)
	return nil
}

func (p *fakePresence) RemovePeer(_ context.Context, roomID, socketID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed = append(p.removed, roomID+"/"+socketID)
	return nil
}

// newTestClient builds a client with no underlying websocket: registry
// behavior only ever touches the send channel.
func newTestClient(id, userID, role, name string) *Client {
	return &Client{
		ID:       id,
		Identity: token.Identity{UserID: userID, Name: name, Role: role},
		send:     make(chan []byte, sendBufferSize),
	}
}

// recv pops the next queued message decoded into a generic map, or
// fails if none is pending.
func recv(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data := <-c.send:
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal %q: %v", data, err)
		}
		return msg
	default:
		t.Fatalf("client %s: no message pending", c.ID)
		return nil
	}
}

func assertQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("client %s: unexpected message %s", c.ID, data)
	default:
	}
}

func participants(t *testing.T, msg map[string]any) []any {
	t.Helper()
	list, ok := msg["participants"].([]any)
	if !ok {
		t.Fatalf("participants missing or wrong shape: %v", msg)
	}
	return list
}

func TestJoinFirstMemberGetsEmptyList(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u-clin", token.RoleClinician, "Dr. Reyes")

	reg.Join(a, "appt-123")

	msg := recv(t, a)
	if msg["type"] != TypeRoomJoined {
		t.Fatalf("type = %v, want room-joined", msg["type"])
	}
	if msg["roomId"] != "appt-123" {
		t.Fatalf("roomId = %v", msg["roomId"])
	}
	if got := participants(t, msg); len(got) != 0 {
		t.Fatalf("participants = %v, want empty", got)
	}
	assertQuiet(t, a)
}

func TestJoinSecondMemberSeesFirstAndFirstIsNotified(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u-clin", token.RoleClinician, "Dr. Reyes")
	b := newTestClient("sock-b", "u-cli", token.RoleClient, "Sam")

	reg.Join(a, "appt-123")
	recv(t, a) // own room-joined

	reg.Join(b, "appt-123")

	msg := recv(t, b)
	if msg["type"] != TypeRoomJoined {
		t.Fatalf("type = %v, want room-joined", msg["type"])
	}
	got := participants(t, msg)
	if len(got) != 1 {
		t.Fatalf("participants = %v, want exactly the clinician", got)
	}
	entry := got[0].(map[string]any)
	if entry["socketId"] != "sock-a" || entry["userId"] != "u-clin" ||
		entry["role"] != token.RoleClinician || entry["name"] != "Dr. Reyes" {
		t.Fatalf("participant entry = %v", entry)
	}

	note := recv(t, a)
	if note["type"] != TypeUserJoined || note["socketId"] != "sock-b" || note["role"] != token.RoleClient {
		t.Fatalf("user-joined to A = %v", note)
	}
	// The joiner never receives its own join broadcast.
	assertQuiet(t, b)
}

func TestJoinResponseOrderedBeforeBroadcast(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")
	b := newTestClient("sock-b", "u2", token.RoleClient, "B")

	reg.Join(a, "room")
	reg.Join(b, "room")

	// B's first queued message must be its own room-joined, not any
	// broadcast about the same event.
	if msg := recv(t, b); msg["type"] != TypeRoomJoined {
		t.Fatalf("first message to joiner = %v, want room-joined", msg["type"])
	}
}

func TestJoinEmptyRoomIDIsIgnored(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")

	reg.Join(a, "")

	assertQuiet(t, a)
	if got := reg.RoomSize(""); got != 0 {
		t.Fatalf("room size for empty id = %d, want 0", got)
	}
}

func TestJoinIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")
	b := newTestClient("sock-b", "u2", token.RoleClient, "B")

	reg.Join(a, "room")
	reg.Join(b, "room")
	recv(t, a)
	recv(t, a) // room-joined + user-joined
	recv(t, b)

	reg.Join(a, "room")

	if got := reg.RoomSize("room"); got != 2 {
		t.Fatalf("room size = %d after duplicate join, want 2", got)
	}
	// A gets a fresh snapshot; B hears nothing about it.
	msg := recv(t, a)
	if msg["type"] != TypeRoomJoined || len(participants(t, msg)) != 1 {
		t.Fatalf("duplicate join response = %v", msg)
	}
	assertQuiet(t, b)
}

func TestRoomSwitchIsAtomic(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")
	peer := newTestClient("sock-p", "u2", token.RoleClient, "P")

	reg.Join(peer, "room-a")
	reg.Join(a, "room-a")
	recv(t, a)
	recv(t, peer)
	recv(t, peer)

	reg.Join(a, "room-b")

	if got := reg.RoomSize("room-a"); got != 1 {
		t.Fatalf("room-a size = %d, want 1", got)
	}
	if got := reg.RoomSize("room-b"); got != 1 {
		t.Fatalf("room-b size = %d, want 1", got)
	}
	// The old room hears the same departure an explicit leave emits.
	note := recv(t, peer)
	if note["type"] != TypeUserLeft || note["socketId"] != "sock-a" {
		t.Fatalf("departure to old room = %v", note)
	}
}

func TestRelayDeliversVerbatimWithProvenance(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")
	b := newTestClient("sock-b", "u2", token.RoleClient, "B")

	reg.Join(a, "room")
	reg.Join(b, "room")
	recv(t, a)
	recv(t, a)
	recv(t, b)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0 o=- 46117 2"}`)
	reg.Relay(a, Inbound{Type: TypeOffer, TargetSocketID: "sock-b", Offer: offer})

	msg := recv(t, b)
	if msg["type"] != TypeOffer || msg["fromSocketId"] != "sock-a" {
		t.Fatalf("forwarded offer = %v", msg)
	}
	raw, _ := json.Marshal(msg["offer"])
	var want, got map[string]any
	json.Unmarshal(offer, &want)
	json.Unmarshal(raw, &got)
	if got["sdp"] != want["sdp"] {
		t.Fatalf("offer payload altered: %v", msg["offer"])
	}
	assertQuiet(t, a)
}

func TestRelayToGoneTargetIsSilent(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")
	b := newTestClient("sock-b", "u2", token.RoleClient, "B")

	reg.Join(a, "room")
	reg.Join(b, "room")
	recv(t, a)
	recv(t, a)
	recv(t, b)

	reg.Disconnect(b)
	recv(t, a) // user-left

	reg.Relay(a, Inbound{Type: TypeCandidate, TargetSocketID: "sock-b", Candidate: json.RawMessage(`{}`)})

	assertQuiet(t, a)
	assertQuiet(t, b)
}

func TestRelayFromUnjoinedSenderIsSilent(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")

	reg.Relay(a, Inbound{Type: TypeOffer, TargetSocketID: "sock-x", Offer: json.RawMessage(`{}`)})
	assertQuiet(t, a)
}

func TestBroadcastEventExcludesSender(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")
	b := newTestClient("sock-b", "u2", token.RoleClient, "B")

	reg.Join(a, "room")
	reg.Join(b, "room")
	recv(t, a)
	recv(t, a)
	recv(t, b)

	reg.BroadcastEvent(a, TypeRecordingStarted)

	if msg := recv(t, b); msg["type"] != TypeRecordingStarted {
		t.Fatalf("broadcast to B = %v", msg)
	}
	assertQuiet(t, a)
}

func TestBroadcastFromUnjoinedSenderIsNoop(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")

	reg.BroadcastEvent(a, TypeRecordingStopped)
	assertQuiet(t, a)
}

func TestDisconnectDeletesEmptyRoomAndSkipsBroadcast(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")

	reg.Join(a, "room")
	recv(t, a)
	reg.Disconnect(a)

	if got := reg.RoomSize("room"); got != 0 {
		t.Fatalf("room size = %d after last member left, want 0", got)
	}

	// Never-joined disconnect announces nothing either.
	ghost := newTestClient("sock-g", "u9", token.RoleClient, "G")
	reg.Disconnect(ghost)
	assertQuiet(t, ghost)
}

func TestTwoPartySessionEndToEnd(t *testing.T) {
	reg := NewRegistry(nil)
	clin := newTestClient("sock-clin", "u-clin", token.RoleClinician, "Dr. Reyes")
	cli := newTestClient("sock-cli", "u-cli", token.RoleClient, "Sam")

	reg.Join(clin, "appt-123")
	msg := recv(t, clin)
	if len(participants(t, msg)) != 0 {
		t.Fatal("clinician joined first but saw existing participants")
	}

	reg.Join(cli, "appt-123")
	msg = recv(t, cli)
	got := participants(t, msg)
	if len(got) != 1 || got[0].(map[string]any)["socketId"] != "sock-clin" {
		t.Fatalf("client's member list = %v", got)
	}
	if note := recv(t, clin); note["type"] != TypeUserJoined || note["socketId"] != "sock-cli" {
		t.Fatalf("clinician's join notification = %v", note)
	}

	offer := json.RawMessage(`{"sdp":"offer-sdp"}`)
	reg.Relay(clin, Inbound{Type: TypeOffer, TargetSocketID: "sock-cli", Offer: offer})
	fwd := recv(t, cli)
	if fwd["type"] != TypeOffer || fwd["fromSocketId"] != "sock-clin" {
		t.Fatalf("forwarded offer = %v", fwd)
	}

	reg.Disconnect(cli)
	if note := recv(t, clin); note["type"] != TypeUserLeft || note["userId"] != "u-cli" {
		t.Fatalf("departure notification = %v", note)
	}
	if got := reg.RoomSize("appt-123"); got != 1 {
		t.Fatalf("room size = %d, want 1", got)
	}
}

func TestPresenceMirrorFollowsMembership(t *testing.T) {
	presence := &fakePresence{}
	reg := NewRegistry(presence)
	a := newTestClient("sock-a", "u1", token.RoleClinician, "A")

	reg.Join(a, "room-a")
	// Switching rooms must remove the old mirror entry: external
	// readers may never see one socket in two rooms.
	reg.Join(a, "room-b")
	reg.Disconnect(a)

	wantAdded := []string{"room-a/sock-a", "room-b/sock-a"}
	wantRemoved := []string{"room-a/sock-a", "room-b/sock-a"}

	if fmt.Sprint(presence.added) != fmt.Sprint(wantAdded) {
		t.Fatalf("added = %v, want %v", presence.added, wantAdded)
	}
	if fmt.Sprint(presence.removed) != fmt.Sprint(wantRemoved) {
		t.Fatalf("removed = %v, want %v", presence.removed, wantRemoved)
	}
}

func TestConcurrentJoinsDoNotCorruptMembership(t *testing.T) {
	reg := NewRegistry(nil)

	const n = 32
	var wg sync.WaitGroup
	clients := make([]*Client, n)
	for i := range clients {
		clients[i] = newTestClient(
			fmt.Sprintf("sock-%d", i),
			fmt.Sprintf("u-%d", i),
			token.RoleClient,
			fmt.Sprintf("P%d", i),
		)
	}

	// Half churn through a side room first, forcing concurrent
	// switches into the target room.
	for i, c := range clients {
		wg.Add(1)
		go func(i int, c *Client) {
			defer wg.Done()
			if i%2 == 0 {
				reg.Join(c, "side")
			}
			reg.Join(c, "target")
		}(i, c)
	}
	wg.Wait()

	if got := reg.RoomSize("target"); got != n {
		t.Fatalf("target room size = %d, want %d", got, n)
	}
	if got := reg.RoomSize("side"); got != 0 {
		t.Fatalf("side room size = %d, want 0", got)
	}

	for _, c := range clients {
		reg.Disconnect(c)
	}
	if got := reg.RoomSize("target"); got != 0 {
		t.Fatalf("target room size = %d after disconnects, want 0", got)
	}
}
