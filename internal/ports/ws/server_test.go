package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/app"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/domain"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/logging"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/protocol"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := logging.New(io.Discard, slog.LevelDebug)
	hub := NewHub(logger)
	coordinator := app.NewCoordinator(
		domain.NewStore(),
		hub,
		logger,
		app.WithSettings(app.Settings{CountdownFrom: 3, CountdownInterval: time.Millisecond}),
	)
	voice := app.NewVoiceService("secret", "issuer", "example.com")
	ts := httptest.NewServer(NewServer(coordinator, hub, voice, logger, "").Handler())
	t.Cleanup(func() {
		hub.CloseAll()
		ts.Close()
		coordinator.Close()
	})
	return ts
}

type testClient struct {
	t      *testing.T
	conn   *websocket.Conn
	frames chan protocol.Envelope
	nextID int64
}

func dial(t *testing.T, ts *httptest.Server) *testClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)

	c := &testClient{t: t, conn: conn, frames: make(chan protocol.Envelope, 256)}
	go func() {
		defer close(c.frames)
		for {
			_, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			var env protocol.Envelope
			if json.Unmarshal(data, &env) == nil {
				c.frames <- env
			}
		}
	}()
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return c
}

// send writes an intent frame with a fresh ack id and returns the id.
func (c *testClient) send(event string, data any) int64 {
	c.t.Helper()
	c.nextID++
	id := c.nextID
	env := map[string]any{"event": event, "id": id}
	if data != nil {
		env["data"] = data
	}
	raw, err := json.Marshal(env)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.Write(context.Background(), websocket.MessageText, raw))
	return id
}

func (c *testClient) sendRaw(frame string) {
	c.t.Helper()
	require.NoError(c.t, c.conn.Write(context.Background(), websocket.MessageText, []byte(frame)))
}

// expect skips frames until one named event arrives.
func (c *testClient) expect(event string) protocol.Envelope {
	c.t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case env, ok := <-c.frames:
			require.True(c.t, ok, "connection closed while waiting for %s", event)
			if env.Event == event {
				return env
			}
		case <-timeout:
			c.t.Fatalf("timed out waiting for %s", event)
		}
	}
}

func (c *testClient) expectAck(id int64, out any) {
	c.t.Helper()
	env := c.expect(protocol.MsgAck)
	require.NotNil(c.t, env.ID)
	require.Equal(c.t, id, *env.ID)
	if out != nil {
		require.NoError(c.t, json.Unmarshal(env.Data, out))
	}
}

func (c *testClient) expectError(message string) {
	c.t.Helper()
	env := c.expect(string(app.EventError))
	var got string
	require.NoError(c.t, json.Unmarshal(env.Data, &got))
	assert.Equal(c.t, message, got)
}

// seatPlayers fills a room. room_joined is sent before the join ack, so it is
// read first and returned.
func seatPlayers(t *testing.T, ts *httptest.Server) (ann, bo *testClient, roomJoined app.RoomJoinedPayload) {
	t.Helper()
	ann, bo = dial(t, ts), dial(t, ts)

	var created protocol.CreateRoomResponse
	ann.expectAck(ann.send(protocol.MsgCreateRoom, protocol.CreateRoomRequest{Nickname: "Ann"}), &created)
	require.Len(t, created.RoomID, domain.RoomIDLength)

	id := bo.send(protocol.MsgJoinRoom, protocol.JoinRoomRequest{RoomID: strings.ToLower(created.RoomID), Nickname: "Bo"})
	require.NoError(t, json.Unmarshal(bo.expect(string(app.EventRoomJoined)).Data, &roomJoined))
	require.Equal(t, created.RoomID, roomJoined.RoomID)

	var joined protocol.JoinRoomResponse
	bo.expectAck(id, &joined)
	require.True(t, joined.Success, joined.Error)
	return ann, bo, roomJoined
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "OK", body.Status)
	_, err = time.Parse(time.RFC3339, body.Timestamp)
	assert.NoError(t, err)
}

func TestRoundOverWebSocket(t *testing.T) {
	ts := newTestServer(t)
	ann, bo, roomJoined := seatPlayers(t, ts)

	assert.Equal(t, "Bo", roomJoined.Player.Nickname)
	assert.Len(t, roomJoined.Players, 2)

	ann.send(protocol.MsgSelectOption, protocol.SelectOptionRequest{Option: "Rock"})
	bo.send(protocol.MsgSelectOption, protocol.SelectOptionRequest{Option: "Fire"})
	ann.send(protocol.MsgConfirmSelection, nil)
	bo.send(protocol.MsgConfirmSelection, nil)

	for _, c := range []*testClient{ann, bo} {
		c.expect(string(app.EventBothConfirmed))
		for want := 3; want > 0; want-- {
			var tick int
			require.NoError(t, json.Unmarshal(c.expect(string(app.EventCountdown)).Data, &tick))
			assert.Equal(t, want, tick)
		}

		var result domain.RoundResult
		require.NoError(t, json.Unmarshal(c.expect(string(app.EventRoundResult)).Data, &result))
		assert.Equal(t, 1, result.RoundNumber)
		assert.Equal(t, domain.OutcomeWin, result.Player1.Outcome)
		assert.Equal(t, domain.Rock, result.Player1.Option)
		assert.Equal(t, 1, result.Player1.Score)
		assert.Equal(t, domain.OutcomeLose, result.Player2.Outcome)
	}

	ann.send(protocol.MsgReadyForNextRound, nil)
	bo.send(protocol.MsgReadyForNextRound, nil)
	ann.expect(string(app.EventBothReadyNextRound))
	bo.expect(string(app.EventBothReadyNextRound))
}

func TestJoinUnknownRoom(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts)

	var resp protocol.JoinRoomResponse
	c.expectAck(c.send(protocol.MsgJoinRoom, protocol.JoinRoomRequest{RoomID: "ZZZZZZ"}), &resp)
	assert.False(t, resp.Success)
	assert.Equal(t, app.MsgRoomNotFound, resp.Error)
}

func TestInvalidFrames(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts)

	c.sendRaw("not json")
	c.expectError(MsgInvalidMessage)

	c.send("shuffle_deck", nil)
	c.expectError(MsgUnknownEvent)

	c.send(protocol.MsgSelectOption, protocol.SelectOptionRequest{Option: "Spock"})
	c.expectError(app.MsgInvalidOption)
}

func TestDisconnectNotifiesOpponent(t *testing.T) {
	ts := newTestServer(t)
	ann, bo, _ := seatPlayers(t, ts)

	require.NoError(t, bo.conn.Close(websocket.StatusNormalClosure, "bye"))

	ann.expect(string(app.EventOpponentLeft))
	var players []domain.PlayerView
	require.NoError(t, json.Unmarshal(ann.expect(string(app.EventPlayerUpdate)).Data, &players))
	require.Len(t, players, 1)
	assert.Equal(t, "Ann", players[0].Nickname)
}

func TestRateLimit(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts)

	for i := 0; i < MaxMessagesPerSecond+2; i++ {
		c.sendRaw(`{"event":"change_nickname","data":{"nickname":"x"}}`)
	}
	c.expectError(MsgRateLimited)
}

func TestVoiceTokenRequiresRoomForJoin(t *testing.T) {
	ts := newTestServer(t)
	c := dial(t, ts)

	var denied map[string]string
	c.expectAck(c.send(protocol.MsgVoiceToken, protocol.VoiceTokenRequest{Action: app.VoiceActionJoin}), &denied)
	assert.Equal(t, app.MsgNotInRoom, denied["error"])

	var login protocol.VoiceTokenResponse
	c.expectAck(c.send(protocol.MsgVoiceToken, protocol.VoiceTokenRequest{Action: app.VoiceActionLogin}), &login)
	assert.NotEmpty(t, login.Token)
	assert.Empty(t, login.Channel)
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"*"}, originPatterns(""))
	assert.Equal(t, []string{"localhost:5173"}, originPatterns("http://localhost:5173"))
	assert.Equal(t, []string{"example.com"}, originPatterns("https://example.com/"))
}
