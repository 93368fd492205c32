package nakama

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/protocol"

	"github.com/heroiclabs/nakama-common/api"
	"github.com/heroiclabs/nakama-common/runtime"
)

// noopLogger implements runtime.Logger for tests that only need to satisfy the interface.
type noopLogger struct{}

func (noopLogger) Debug(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{})  {}
func (noopLogger) Warn(string, ...interface{})  {}
func (noopLogger) Error(string, ...interface{}) {}
func (noopLogger) WithField(string, interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) WithFields(map[string]interface{}) runtime.Logger {
	return noopLogger{}
}
func (noopLogger) Fields() map[string]interface{} {
	return nil
}

// frame is one stream message as seen by a single session.
type frame struct {
	label     string
	sessionID string
	envelope  protocol.Envelope
}

// fakeNakama implements the parts of runtime.NakamaModule the module touches.
// Any other call panics on the nil embedded interface.
type fakeNakama struct {
	runtime.NakamaModule

	mu       sync.Mutex
	members  map[string]map[string]bool // label -> session ids
	frames   []frame
	counters map[string]int64
	gauges   map[string]float64
	events   []*api.Event
	accounts map[string]*api.Account
	updates  []profileUpdate
}

type profileUpdate struct {
	userID      string
	username    string
	displayName string
}

func newFakeNakama() *fakeNakama {
	return &fakeNakama{
		members:  make(map[string]map[string]bool),
		counters: make(map[string]int64),
		gauges:   make(map[string]float64),
		accounts: make(map[string]*api.Account),
	}
}

func (f *fakeNakama) StreamUserJoin(mode uint8, subject, subcontext, label, userID, sessionID string, hidden, persistence bool, status string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if mode != StreamModeRoom {
		return false, errors.New("unexpected stream mode")
	}
	if f.members[label] == nil {
		f.members[label] = make(map[string]bool)
	}
	f.members[label][sessionID] = true
	return false, nil
}

func (f *fakeNakama) StreamUserLeave(mode uint8, subject, subcontext, label, userID, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.members[label], sessionID)
	return nil
}

func (f *fakeNakama) StreamSend(mode uint8, subject, subcontext, label, data string, presences []runtime.Presence, reliable bool) error {
	var env protocol.Envelope
	if err := json.Unmarshal([]byte(data), &env); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if presences == nil {
		for sessionID := range f.members[label] {
			f.frames = append(f.frames, frame{label: label, sessionID: sessionID, envelope: env})
		}
		return nil
	}
	for _, p := range presences {
		f.frames = append(f.frames, frame{label: label, sessionID: p.GetSessionId(), envelope: env})
	}
	return nil
}

func (f *fakeNakama) MetricsCounterAdd(name string, tags map[string]string, delta int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters[name] += delta
}

func (f *fakeNakama) MetricsGaugeSet(name string, tags map[string]string, value float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gauges[name] = value
}

func (f *fakeNakama) Event(ctx context.Context, evt *api.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}

func (f *fakeNakama) AccountGetId(ctx context.Context, userID string) (*api.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[userID]; ok {
		return acc, nil
	}
	return nil, errors.New("account not found")
}

func (f *fakeNakama) AccountUpdateId(ctx context.Context, userID, username string, metadata map[string]interface{}, displayName, timezone, location, langTag, avatarUrl string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, profileUpdate{userID: userID, username: username, displayName: displayName})
	return nil
}

// received returns the payloads of event delivered to sessionID, in order.
func (f *fakeNakama) received(sessionID, event string) []json.RawMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []json.RawMessage
	for _, fr := range f.frames {
		if fr.sessionID == sessionID && fr.envelope.Event == event {
			out = append(out, fr.envelope.Data)
		}
	}
	return out
}

func (f *fakeNakama) counter(name string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters[name]
}

func (f *fakeNakama) gauge(name string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gauges[name]
}

func TestStreamGateway_BroadcastFollowsMembership(t *testing.T) {
	nk := newFakeNakama()
	gw := NewStreamGateway(nk)
	gw.Track("s1", "u1", "ann", "node")
	gw.Track("s2", "u2", "bo", "node")
	ctx := context.Background()

	for _, s := range []string{"s1", "s2"} {
		if err := gw.JoinChannel(ctx, s, "ABC123"); err != nil {
			t.Fatalf("JoinChannel(%s): %v", s, err)
		}
	}
	if err := gw.Dispatch(ctx, "ABC123", app.Event{Kind: app.EventBothConfirmed}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := gw.LeaveChannel(ctx, "s2", "ABC123"); err != nil {
		t.Fatalf("LeaveChannel: %v", err)
	}
	if err := gw.Dispatch(ctx, "ABC123", app.Event{Kind: app.EventCountdown, Payload: 3}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if got := len(nk.received("s1", "both_confirmed")); got != 1 {
		t.Errorf("s1 both_confirmed = %d, want 1", got)
	}
	if got := len(nk.received("s2", "both_confirmed")); got != 1 {
		t.Errorf("s2 both_confirmed = %d, want 1", got)
	}
	countdown := nk.received("s1", "countdown")
	if len(countdown) != 1 || string(countdown[0]) != "3" {
		t.Errorf("s1 countdown = %s, want [3]", countdown)
	}
	if got := len(nk.received("s2", "countdown")); got != 0 {
		t.Errorf("s2 received %d countdown frames after leaving", got)
	}
}

func TestStreamGateway_TargetedDispatch(t *testing.T) {
	nk := newFakeNakama()
	gw := NewStreamGateway(nk)
	gw.Track("s1", "u1", "ann", "node")
	gw.Track("s2", "u2", "bo", "node")
	ctx := context.Background()
	_ = gw.JoinChannel(ctx, "s1", "ABC123")
	_ = gw.JoinChannel(ctx, "s2", "ABC123")

	ev := app.Event{Kind: app.EventError, Payload: app.MsgInvalidOption, Recipients: []string{"s2"}}
	if err := gw.Dispatch(ctx, "ABC123", ev); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}

	if got := nk.received("s1", "error"); len(got) != 0 {
		t.Errorf("s1 received targeted error: %s", got)
	}
	got := nk.received("s2", "error")
	if len(got) != 1 || string(got[0]) != `"Invalid option"` {
		t.Errorf("s2 error = %s", got)
	}
}

func TestStreamGateway_UnknownSession(t *testing.T) {
	gw := NewStreamGateway(newFakeNakama())
	ctx := context.Background()

	if err := gw.JoinChannel(ctx, "ghost", "ABC123"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("JoinChannel err = %v, want ErrUnknownSession", err)
	}
	if err := gw.LeaveChannel(ctx, "ghost", "ABC123"); err != nil {
		t.Errorf("LeaveChannel err = %v, want nil", err)
	}
	ev := app.Event{Kind: app.EventError, Payload: "x", Recipients: []string{"ghost"}}
	if err := gw.Dispatch(ctx, "ABC123", ev); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("Dispatch err = %v, want ErrUnknownSession", err)
	}

	gw.Track("s1", "u1", "ann", "node")
	gw.Forget("s1")
	if err := gw.JoinChannel(ctx, "s1", "ABC123"); !errors.Is(err, ErrUnknownSession) {
		t.Errorf("JoinChannel after Forget err = %v, want ErrUnknownSession", err)
	}
}
