package app

import (
	"context"
	"errors"
	"math/rand"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/domain"
	"github.com/Eggplant203/Rock-Paper-Scissors-15/internal/ports"

	"github.com/heroiclabs/nakama-common/runtime"
)

var ErrInvalidSettings = errors.New("invalid coordinator settings")

// Settings tunes the round protocol timing.
type Settings struct {
	CountdownFrom     int
	CountdownInterval time.Duration
}

// DefaultSettings returns the 3-2-1 countdown at 500ms per tick.
func DefaultSettings() Settings {
	return Settings{
		CountdownFrom:     DefaultCountdownFrom,
		CountdownInterval: DefaultCountdownInterval,
	}
}

// Validate rejects settings that would skip or stall the countdown.
func (s Settings) Validate() error {
	if s.CountdownFrom < 1 {
		return errors.Join(ErrInvalidSettings, errors.New("countdown must start at 1 or higher"))
	}
	if s.CountdownInterval <= 0 {
		return errors.Join(ErrInvalidSettings, errors.New("countdown interval must be positive"))
	}
	return nil
}

// Coordinator runs the round protocol for every room. Intents for one room are
// serialized through that room's lane; different rooms never contend.
type Coordinator struct {
	store    *domain.Store
	gateway  Gateway
	logger   runtime.Logger
	metrics  ports.MetricsPort
	settings Settings

	rngMu sync.Mutex
	rng   *rand.Rand

	lanesMu sync.Mutex
	lanes   map[string]*roomLane

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// roomLane serializes protocol steps of one room, including countdown ticks.
type roomLane struct {
	mu        sync.Mutex
	countdown context.CancelFunc // non-nil while a countdown is pending
}

// CoordinatorOption customises a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithSettings overrides the countdown timing.
func WithSettings(s Settings) CoordinatorOption {
	return func(c *Coordinator) { c.settings = s }
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m ports.MetricsPort) CoordinatorOption {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithRand sets the source used for generated nicknames.
func WithRand(rng *rand.Rand) CoordinatorOption {
	return func(c *Coordinator) {
		if rng != nil {
			c.rng = rng
		}
	}
}

// NewCoordinator wires a Coordinator to its store and gateway.
func NewCoordinator(store *domain.Store, gateway Gateway, logger runtime.Logger, opts ...CoordinatorOption) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Coordinator{
		store:    store,
		gateway:  gateway,
		logger:   logger,
		metrics:  ports.NopMetrics{},
		settings: DefaultSettings(),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		lanes:    make(map[string]*roomLane),
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close cancels pending countdowns and waits for them to stop.
func (c *Coordinator) Close() {
	c.cancel()
	c.wg.Wait()
}

// RoomOf returns the id of the room the connection belongs to.
func (c *Coordinator) RoomOf(connectionID string) (string, bool) {
	room, ok := c.store.FindRoomByConnection(connectionID)
	if !ok {
		return "", false
	}
	return room.ID, true
}

// CreateRoom opens a new room for the connection, leaving its current room first.
func (c *Coordinator) CreateRoom(ctx context.Context, connectionID, nickname string) (string, error) {
	c.depart(ctx, connectionID)

	room, err := c.store.CreateRoom(domain.NewPlayer(connectionID, c.resolveNickname(nickname)))
	if err != nil {
		c.logger.Warn("CreateRoom: connection %s rejected: %v", connectionID, err)
		c.metrics.IncCounter(MetricIntentsRejected, map[string]string{"intent": "create_room"}, 1)
		return "", err
	}

	lane := c.lane(room.ID)
	lane.mu.Lock()
	defer lane.mu.Unlock()

	c.subscribe(ctx, connectionID, room.ID)
	c.dispatch(ctx, room.ID, roomJoined(room, connectionID))
	c.dispatch(ctx, room.ID, playerUpdate(room))

	c.metrics.IncCounter(MetricRoomsCreated, nil, 1)
	c.reportActiveRooms()
	c.logger.Info("CreateRoom: room %s created by %s", room.ID, connectionID)
	return room.ID, nil
}

// JoinRoom seats the connection in an existing room. The code is matched
// case-insensitively. Joining the room one is already in succeeds without effect.
// Leaving the previous room and taking the seat happen in one store step under
// both room lanes, so a rejected join leaves the connection where it was.
func (c *Coordinator) JoinRoom(ctx context.Context, connectionID, rawRoomID, nickname string) error {
	roomID, ok := domain.NormalizeRoomID(rawRoomID)
	if !ok {
		return c.rejectJoin(connectionID, rawRoomID, domain.ErrRoomNotFound)
	}
	player := domain.NewPlayer(connectionID, c.resolveNickname(nickname))

	for {
		fromID, _ := c.RoomOf(connectionID)
		if fromID == roomID {
			return nil
		}

		lanes := c.lockLanes(fromID, roomID)
		if current, _ := c.RoomOf(connectionID); current != fromID {
			unlockLanes(lanes)
			continue
		}

		err := c.moveLocked(ctx, player, fromID, roomID, lanes)
		unlockLanes(lanes)
		return err
	}
}

// moveLocked runs the seat change of JoinRoom. Callers hold the lanes of both rooms.
func (c *Coordinator) moveLocked(ctx context.Context, player domain.Player, fromID, roomID string, lanes map[string]*roomLane) error {
	connectionID := player.ConnectionID

	from, left, room, err := c.store.MoveToRoom(roomID, player)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			c.dropLane(roomID, lanes[roomID])
		}
		return c.rejectJoin(connectionID, roomID, err)
	}
	if left {
		c.departed(ctx, connectionID, fromID, lanes[fromID], from)
	}

	c.subscribe(ctx, connectionID, roomID)
	c.dispatch(ctx, roomID, roomJoined(room, connectionID))
	c.dispatch(ctx, roomID, playerUpdate(room))

	c.logger.Info("JoinRoom: %s joined room %s (round %d)", connectionID, roomID, room.Round)
	return nil
}

// QuickMatch seats the connection in the oldest room waiting for an opponent.
// With no such room it keeps the connection's own waiting room, or opens a new
// one. It reports whether a room was created.
func (c *Coordinator) QuickMatch(ctx context.Context, connectionID, nickname string) (string, bool, error) {
	for attempt := 0; attempt < 3; attempt++ {
		open, ok := c.store.FindOpenRoom(connectionID)
		if !ok {
			break
		}
		err := c.JoinRoom(ctx, connectionID, open.ID, nickname)
		if err == nil {
			return open.ID, false, nil
		}
		if !errors.Is(err, domain.ErrRoomFull) && !errors.Is(err, domain.ErrRoomNotFound) {
			return "", false, err
		}
	}

	if current, ok := c.store.FindRoomByConnection(connectionID); ok && len(current.Players) == 1 {
		return current.ID, false, nil
	}
	roomID, err := c.CreateRoom(ctx, connectionID, nickname)
	if err != nil {
		return "", false, err
	}
	return roomID, true, nil
}

// ChangeNickname renames the connection's player. A name that is blank after
// normalisation keeps the current one. Connections outside a room are ignored.
func (c *Coordinator) ChangeNickname(ctx context.Context, connectionID, nickname string) {
	name := domain.NormalizeNickname(nickname)
	if name == "" {
		return
	}
	c.withConnectionLane(connectionID, func(roomID string, _ *roomLane) {
		room, err := c.store.UpdateNickname(connectionID, name)
		if err != nil {
			return
		}
		c.dispatch(ctx, roomID, playerUpdate(room))
	})
}

// SelectOption records the connection's choice for the current round by option name.
func (c *Coordinator) SelectOption(ctx context.Context, connectionID, optionName string) {
	option, err := domain.ParseOption(optionName)
	if err != nil {
		c.reject(ctx, "SelectOption", "", connectionID, MsgInvalidOption, err)
		return
	}

	inRoom := c.withConnectionLane(connectionID, func(roomID string, _ *roomLane) {
		room, err := c.store.UpdateSelection(connectionID, option)
		if err != nil {
			c.reject(ctx, "SelectOption", roomID, connectionID, selectionMessage(err), err)
			return
		}
		c.dispatch(ctx, roomID, playerUpdate(room))
	})
	if !inRoom {
		c.reject(ctx, "SelectOption", "", connectionID, MsgNotInRoom, domain.ErrNotInRoom)
	}
}

// ConfirmSelection locks in the connection's selection. The second confirmation
// in a full room starts the countdown.
func (c *Coordinator) ConfirmSelection(ctx context.Context, connectionID string) {
	inRoom := c.withConnectionLane(connectionID, func(roomID string, lane *roomLane) {
		room, err := c.store.ConfirmSelection(connectionID)
		if err != nil {
			c.reject(ctx, "ConfirmSelection", roomID, connectionID, MsgCannotConfirm, err)
			return
		}
		c.dispatch(ctx, roomID, playerUpdate(room))

		if !c.store.BothConfirmed(roomID) {
			return
		}
		seq, ok := c.store.BeginCountdown(roomID)
		if !ok {
			return
		}
		c.dispatch(ctx, roomID, Event{Kind: EventBothConfirmed})
		c.startCountdown(lane, roomID, seq)
	})
	if !inRoom {
		c.reject(ctx, "ConfirmSelection", "", connectionID, MsgCannotConfirm, domain.ErrNotInRoom)
	}
}

// ReadyForNextRound acknowledges the current result. Once both players have,
// the round counter is bumped, round flags are reset and play resumes.
func (c *Coordinator) ReadyForNextRound(ctx context.Context, connectionID string) {
	inRoom := c.withConnectionLane(connectionID, func(roomID string, _ *roomLane) {
		room, err := c.store.MarkReadyForNextRound(connectionID)
		if err != nil {
			c.reject(ctx, "ReadyForNextRound", roomID, connectionID, MsgCannotMarkReady, err)
			return
		}
		c.dispatch(ctx, roomID, playerUpdate(room))

		if !c.store.BothReadyForNextRound(roomID) {
			return
		}
		if _, ok := c.store.AdvanceRound(roomID); !ok {
			return
		}
		room, ok := c.store.ResetRoundState(roomID)
		if !ok {
			return
		}
		c.dispatch(ctx, roomID, Event{Kind: EventBothReadyNextRound})
		c.dispatch(ctx, roomID, playerUpdate(room))
		c.logger.Debug("ReadyForNextRound: room %s starts round %d", roomID, room.Round)
	})
	if !inRoom {
		c.reject(ctx, "ReadyForNextRound", "", connectionID, MsgCannotMarkReady, domain.ErrNotInRoom)
	}
}

// LeaveRoom removes the connection from its room.
func (c *Coordinator) LeaveRoom(ctx context.Context, connectionID string) {
	c.depart(ctx, connectionID)
}

// Disconnect handles a dropped connection. It behaves like LeaveRoom.
func (c *Coordinator) Disconnect(ctx context.Context, connectionID string) {
	if c.depart(ctx, connectionID) {
		c.logger.Debug("Disconnect: %s removed from its room", connectionID)
	}
}

// PurgeStaleRooms destroys rooms older than maxAge, cancels their countdowns
// and unsubscribes their members. Members are not notified.
func (c *Coordinator) PurgeStaleRooms(ctx context.Context, maxAge time.Duration) []domain.Room {
	purged := c.store.PurgeStaleRooms(maxAge)
	for _, room := range purged {
		lane := c.lane(room.ID)
		lane.mu.Lock()
		lane.stopCountdown()
		for _, connectionID := range room.ConnectionIDs() {
			c.unsubscribe(ctx, connectionID, room.ID)
		}
		c.dropLane(room.ID, lane)
		lane.mu.Unlock()
	}
	if len(purged) > 0 {
		c.reportActiveRooms()
	}
	return purged
}

// RunJanitor purges stale rooms every interval until ctx is done.
func (c *Coordinator) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if purged := c.PurgeStaleRooms(ctx, maxAge); len(purged) > 0 {
				c.logger.Info("RunJanitor: purged %d stale room(s)", len(purged))
			}
		}
	}
}

// depart removes the connection from its room and notifies the survivor.
// It reports whether the connection was in a room.
func (c *Coordinator) depart(ctx context.Context, connectionID string) bool {
	return c.withConnectionLane(connectionID, func(roomID string, lane *roomLane) {
		room, ok := c.store.RemovePlayer(connectionID)
		if !ok {
			return
		}
		c.departed(ctx, connectionID, roomID, lane, room)
	})
}

// departed finishes a departure the store already applied: the room's countdown
// stops, the connection leaves the channel and the survivor, if any, is told.
// Callers hold lane.
func (c *Coordinator) departed(ctx context.Context, connectionID, roomID string, lane *roomLane, room domain.Room) {
	lane.stopCountdown()
	c.unsubscribe(ctx, connectionID, roomID)

	if room.Empty() {
		c.dropLane(roomID, lane)
		c.reportActiveRooms()
		c.logger.Info("Depart: room %s closed", roomID)
		return
	}

	c.dispatch(ctx, roomID, Event{Kind: EventOpponentLeft})
	c.dispatch(ctx, roomID, playerUpdate(room))
	c.logger.Info("Depart: %s left room %s", connectionID, roomID)
}

// withConnectionLane runs fn under the lane of the connection's room. The
// membership is re-checked once the lane is held and the lookup is retried
// while the connection keeps moving. It reports whether fn ran.
func (c *Coordinator) withConnectionLane(connectionID string, fn func(roomID string, lane *roomLane)) bool {
	for {
		roomID, ok := c.RoomOf(connectionID)
		if !ok {
			return false
		}

		lane := c.lane(roomID)
		lane.mu.Lock()
		if current, ok := c.RoomOf(connectionID); ok && current == roomID {
			fn(roomID, lane)
			lane.mu.Unlock()
			return true
		}
		lane.mu.Unlock()
	}
}

// lockLanes takes the lanes of the given rooms in id order, the only order in
// which more than one lane is ever held. Empty ids are skipped.
func (c *Coordinator) lockLanes(roomIDs ...string) map[string]*roomLane {
	ids := make([]string, 0, len(roomIDs))
	for _, id := range roomIDs {
		if id != "" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)

	lanes := make(map[string]*roomLane, len(ids))
	for _, id := range ids {
		l := c.lane(id)
		l.mu.Lock()
		lanes[id] = l
	}
	return lanes
}

func unlockLanes(lanes map[string]*roomLane) {
	for _, l := range lanes {
		l.mu.Unlock()
	}
}

func (c *Coordinator) lane(roomID string) *roomLane {
	c.lanesMu.Lock()
	defer c.lanesMu.Unlock()

	l, ok := c.lanes[roomID]
	if !ok {
		l = &roomLane{}
		c.lanes[roomID] = l
	}
	return l
}

// dropLane forgets the lane of a destroyed room, unless a new room already reuses the id.
func (c *Coordinator) dropLane(roomID string, l *roomLane) {
	c.lanesMu.Lock()
	defer c.lanesMu.Unlock()

	if c.lanes[roomID] == l {
		delete(c.lanes, roomID)
	}
}

func (l *roomLane) stopCountdown() {
	if l.countdown != nil {
		l.countdown()
		l.countdown = nil
	}
}

func (c *Coordinator) resolveNickname(nickname string) string {
	if name := domain.NormalizeNickname(nickname); name != "" {
		return name
	}
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	return domain.RandomNickname(c.rng)
}

func (c *Coordinator) subscribe(ctx context.Context, connectionID, roomID string) {
	if err := c.gateway.JoinChannel(ctx, connectionID, roomID); err != nil {
		c.logger.Error("JoinChannel: %s -> room %s failed: %v", connectionID, roomID, err)
	}
}

func (c *Coordinator) unsubscribe(ctx context.Context, connectionID, roomID string) {
	if err := c.gateway.LeaveChannel(ctx, connectionID, roomID); err != nil {
		c.logger.Warn("LeaveChannel: %s <- room %s failed: %v", connectionID, roomID, err)
	}
}

func (c *Coordinator) dispatch(ctx context.Context, roomID string, ev Event) {
	if err := c.gateway.Dispatch(ctx, roomID, ev); err != nil {
		c.logger.Warn("Dispatch: %s to room %s failed: %v", ev.Kind, roomID, err)
	}
}

func (c *Coordinator) reject(ctx context.Context, op, roomID, connectionID, message string, err error) {
	c.logger.WithField("connection", connectionID).Warn("%s: rejected: %v", op, err)
	c.metrics.IncCounter(MetricIntentsRejected, map[string]string{"intent": op}, 1)
	c.dispatch(ctx, roomID, errorEvent(connectionID, message))
}

func (c *Coordinator) rejectJoin(connectionID, roomID string, err error) error {
	c.logger.WithField("connection", connectionID).Warn("JoinRoom: room %q rejected: %v", roomID, err)
	c.metrics.IncCounter(MetricIntentsRejected, map[string]string{"intent": "JoinRoom"}, 1)
	return err
}

func (c *Coordinator) reportActiveRooms() {
	c.metrics.SetGauge(MetricRoomsActive, nil, float64(c.store.Len()))
}

func (c *Coordinator) recordRound(roomID string, result domain.RoundResult) {
	c.metrics.IncCounter(MetricRoundsResolved, nil, 1)
	c.metrics.RecordEvent(c.ctx, AnalyticsRoundResolved, map[string]string{
		"room_id":        roomID,
		"round":          strconv.Itoa(result.RoundNumber),
		"player1_option": result.Player1.Option.String(),
		"player1_result": string(result.Player1.Outcome),
		"player2_option": result.Player2.Option.String(),
		"player2_result": string(result.Player2.Outcome),
	})
}

// JoinErrorMessage maps a JoinRoom error to the reason reported to the client.
func JoinErrorMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return MsgRoomNotFound
	case errors.Is(err, domain.ErrRoomFull):
		return MsgRoomFull
	default:
		return MsgJoinFailed
	}
}

func selectionMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrSelectionLocked):
		return MsgSelectionLocked
	case errors.Is(err, domain.ErrNotInRoom):
		return MsgNotInRoom
	default:
		return MsgInvalidOption
	}
}
