package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	mathrand "math/rand/v2"
	"strings"
	"sync"
	"time"
)

// RoomIDLength is the number of characters in a room code.
const RoomIDLength = 6

const roomIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomFull        = errors.New("room is full")
	ErrNotInRoom       = errors.New("connection is not in a room")
	ErrAlreadyInRoom   = errors.New("connection already belongs to a room")
	ErrNoSelection     = errors.New("no selection to confirm")
	ErrSelectionLocked = errors.New("selections are locked")
	ErrNoRoundResult   = errors.New("round has no result yet")
)

// roomEntry is the store-owned record behind a Room. Every read or write of its
// fields happens under mu.
type roomEntry struct {
	mu      sync.Mutex
	room    Room
	result  *RoundResult // result of the current round, nil until resolved
	seq     uint64       // bumped whenever a pending countdown must be invalidated
	removed bool
}

func (e *roomEntry) snapshot() Room {
	r := e.room
	r.Players = make([]Player, len(e.room.Players))
	copy(r.Players, e.room.Players)
	for i := range r.Players {
		if sel := r.Players[i].Selection; sel != nil {
			v := *sel
			r.Players[i].Selection = &v
		}
	}
	return r
}

func (e *roomEntry) indexOf(connectionID string) int {
	for i, p := range e.room.Players {
		if p.ConnectionID == connectionID {
			return i
		}
	}
	return -1
}

func (e *roomEntry) full() bool {
	return len(e.room.Players) == PlayersPerRoom
}

func (e *roomEntry) bothConfirmed() bool {
	if !e.full() {
		return false
	}
	for _, p := range e.room.Players {
		if !p.HasSelection() || !p.Confirmed {
			return false
		}
	}
	return true
}

func (e *roomEntry) bothReady() bool {
	if !e.full() {
		return false
	}
	for _, p := range e.room.Players {
		if !p.ReadyForNext {
			return false
		}
	}
	return true
}

func (e *roomEntry) selectionsLocked() bool {
	return e.room.Phase == PhaseCountdown || e.room.Phase == PhaseResult
}

// Store owns every live room. The room map and the connection index are guarded
// by mu; each room is guarded by its own mutex. mu is always taken before a room
// mutex and never while one is held, so rooms never block each other.
type Store struct {
	mu     sync.RWMutex
	rooms  map[string]*roomEntry
	byConn map[string]string // connection id -> room id

	now    func() time.Time
	nextID func() string
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithClock overrides the time source used for room creation timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// WithRoomIDGenerator overrides the random room code source. Collisions are still retried.
func WithRoomIDGenerator(next func() string) StoreOption {
	return func(s *Store) { s.nextID = next }
}

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		rooms:  make(map[string]*roomEntry),
		byConn: make(map[string]string),
		now:    time.Now,
		nextID: randomRoomID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomRoomID() string {
	b := make([]byte, RoomIDLength)
	max := big.NewInt(int64(len(roomIDAlphabet)))
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			b[i] = roomIDAlphabet[mathrand.IntN(len(roomIDAlphabet))]
			continue
		}
		b[i] = roomIDAlphabet[idx.Int64()]
	}
	return string(b)
}

// NormalizeRoomID upper-cases and trims user input and reports whether the
// result is a well-formed room code.
func NormalizeRoomID(raw string) (string, bool) {
	id := strings.ToUpper(strings.TrimSpace(raw))
	if len(id) != RoomIDLength {
		return id, false
	}
	for i := 0; i < len(id); i++ {
		if strings.IndexByte(roomIDAlphabet, id[i]) < 0 {
			return id, false
		}
	}
	return id, true
}

// GenerateRoomID returns a code that no live room currently uses.
func (s *Store) GenerateRoomID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uniqueRoomIDLocked()
}

func (s *Store) uniqueRoomIDLocked() string {
	for {
		id := s.nextID()
		if _, exists := s.rooms[id]; !exists {
			return id
		}
	}
}

// Len returns the number of live rooms.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}

// CreateRoom opens a WAITING room with player as its only member.
func (s *Store) CreateRoom(player Player) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byConn[player.ConnectionID]; ok {
		return Room{}, ErrAlreadyInRoom
	}

	id := s.uniqueRoomIDLocked()
	e := &roomEntry{
		room: Room{
			ID:        id,
			Players:   []Player{player},
			Phase:     PhaseWaiting,
			Round:     0,
			CreatedAt: s.now(),
		},
	}
	s.rooms[id] = e
	s.byConn[player.ConnectionID] = id

	return e.snapshot(), nil
}

// JoinRoom adds player to an existing room. Filling the second seat starts round 1.
func (s *Store) JoinRoom(roomID string, player Player) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byConn[player.ConnectionID]; ok {
		return Room{}, ErrAlreadyInRoom
	}
	e, ok := s.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.room.Players) >= PlayersPerRoom {
		return Room{}, ErrRoomFull
	}

	e.room.Players = append(e.room.Players, player)
	s.byConn[player.ConnectionID] = roomID

	if e.full() {
		e.room.Phase = PhaseSelecting
		e.room.Round = 1
	}

	return e.snapshot(), nil
}

// RemovePlayer drops a connection from its room. The room is destroyed when it
// becomes empty; otherwise it falls back to WAITING with the survivor's round
// state cleared. The returned room reflects the state after removal.
func (s *Store) RemovePlayer(connectionID string) (Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byConn[connectionID]
	if !ok {
		return Room{}, false
	}
	e := s.rooms[id]

	e.mu.Lock()
	defer e.mu.Unlock()
	return s.detachLocked(id, e, connectionID), true
}

// MoveToRoom seats player in the target room and takes it out of the room it
// occupied before, in one step. The target is checked first, so a rejected move
// leaves the connection where it was. left reports whether there was a previous
// room; from is that room after the departure.
func (s *Store) MoveToRoom(targetID string, player Player) (from Room, left bool, to Room, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.rooms[targetID]
	if !ok {
		return Room{}, false, Room{}, ErrRoomNotFound
	}
	oldID, inRoom := s.byConn[player.ConnectionID]
	if inRoom && oldID == targetID {
		return Room{}, false, Room{}, ErrAlreadyInRoom
	}

	target.mu.Lock()
	defer target.mu.Unlock()

	if len(target.room.Players) >= PlayersPerRoom {
		return Room{}, false, Room{}, ErrRoomFull
	}

	if inRoom {
		old := s.rooms[oldID]
		old.mu.Lock()
		from = s.detachLocked(oldID, old, player.ConnectionID)
		old.mu.Unlock()
		left = true
	}

	target.room.Players = append(target.room.Players, player)
	s.byConn[player.ConnectionID] = targetID
	if target.full() {
		target.room.Phase = PhaseSelecting
		target.room.Round = 1
	}
	return from, left, target.snapshot(), nil
}

// detachLocked removes connectionID from e. Callers hold s.mu and e.mu.
func (s *Store) detachLocked(id string, e *roomEntry, connectionID string) Room {
	delete(s.byConn, connectionID)
	if idx := e.indexOf(connectionID); idx >= 0 {
		e.room.Players = append(e.room.Players[:idx], e.room.Players[idx+1:]...)
	}

	e.result = nil
	e.seq++

	if len(e.room.Players) == 0 {
		e.removed = true
		delete(s.rooms, id)
		return e.snapshot()
	}

	e.room.Phase = PhaseWaiting
	e.room.Round = 0
	for i := range e.room.Players {
		e.room.Players[i].clearRound()
	}
	return e.snapshot()
}

// FindRoomByConnection returns the room the connection belongs to.
func (s *Store) FindRoomByConnection(connectionID string) (Room, bool) {
	room, err := s.withMember(connectionID, func(*roomEntry, int) error { return nil })
	return room, err == nil
}

// Room returns the room with the given id.
func (s *Store) Room(roomID string) (Room, bool) {
	var room Room
	ok := s.withRoom(roomID, func(e *roomEntry) bool {
		room = e.snapshot()
		return true
	})
	return room, ok
}

// FindOpenRoom returns the oldest room waiting for a second player. Rooms the
// connection already belongs to are skipped.
func (s *Store) FindOpenRoom(connectionID string) (Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  Room
		found bool
	)
	for id, e := range s.rooms {
		if s.byConn[connectionID] == id {
			continue
		}
		e.mu.Lock()
		if !e.removed && len(e.room.Players) == 1 && (!found || e.room.CreatedAt.Before(best.CreatedAt)) {
			best, found = e.snapshot(), true
		}
		e.mu.Unlock()
	}
	return best, found
}

// UpdateNickname changes a member's display name.
func (s *Store) UpdateNickname(connectionID, nickname string) (Room, error) {
	return s.withMember(connectionID, func(e *roomEntry, idx int) error {
		e.room.Players[idx].Nickname = nickname
		return nil
	})
}

// UpdateSelection records option for the member and clears its confirmation.
func (s *Store) UpdateSelection(connectionID string, option Option) (Room, error) {
	if !option.Valid() {
		return Room{}, ErrInvalidOption
	}
	return s.withMember(connectionID, func(e *roomEntry, idx int) error {
		if e.selectionsLocked() {
			return ErrSelectionLocked
		}
		p := &e.room.Players[idx]
		p.Selection = &option
		p.Confirmed = false
		return nil
	})
}

// ConfirmSelection locks in the member's current selection.
func (s *Store) ConfirmSelection(connectionID string) (Room, error) {
	return s.withMember(connectionID, func(e *roomEntry, idx int) error {
		if e.selectionsLocked() {
			return ErrSelectionLocked
		}
		p := &e.room.Players[idx]
		if !p.HasSelection() {
			return ErrNoSelection
		}
		p.Confirmed = true
		return nil
	})
}

// BothConfirmed reports whether two players are present and both confirmed a selection.
func (s *Store) BothConfirmed(roomID string) bool {
	return s.withRoom(roomID, func(e *roomEntry) bool { return e.bothConfirmed() })
}

// MarkReadyForNextRound records that the member has seen the current round result.
func (s *Store) MarkReadyForNextRound(connectionID string) (Room, error) {
	return s.withMember(connectionID, func(e *roomEntry, idx int) error {
		if e.room.Phase != PhaseResult || e.result == nil {
			return ErrNoRoundResult
		}
		e.room.Players[idx].ReadyForNext = true
		return nil
	})
}

// BothReadyForNextRound reports whether two players are present and both acknowledged the result.
func (s *Store) BothReadyForNextRound(roomID string) bool {
	return s.withRoom(roomID, func(e *roomEntry) bool { return e.bothReady() })
}

// BeginCountdown moves a SELECTING room with two confirmed players into
// COUNTDOWN. Only one caller wins; the returned sequence identifies the
// countdown for CompleteRound.
func (s *Store) BeginCountdown(roomID string) (uint64, bool) {
	var seq uint64
	ok := s.withRoom(roomID, func(e *roomEntry) bool {
		if e.room.Phase != PhaseSelecting || !e.bothConfirmed() {
			return false
		}
		e.room.Phase = PhaseCountdown
		e.seq++
		seq = e.seq
		return true
	})
	return seq, ok
}

// CompleteRound resolves the round started by the countdown seq and moves the
// room to RESULT. It fails if the countdown was invalidated by a departure.
func (s *Store) CompleteRound(roomID string, seq uint64) (RoundResult, Room, bool) {
	var (
		result RoundResult
		room   Room
	)
	ok := s.withRoom(roomID, func(e *roomEntry) bool {
		if e.room.Phase != PhaseCountdown || e.seq != seq || !e.bothConfirmed() {
			return false
		}
		players := e.room.Players
		result = ResolveRound(&players[0], &players[1], e.room.Round)
		e.result = &result
		e.room.Phase = PhaseResult
		room = e.snapshot()
		return true
	})
	return result, room, ok
}

// AdvanceRound bumps the round counter once both players acknowledged the
// result. The result is consumed, so concurrent callers advance at most once.
// Round-scoped flags are left for ResetRoundState.
func (s *Store) AdvanceRound(roomID string) (Room, bool) {
	var room Room
	ok := s.withRoom(roomID, func(e *roomEntry) bool {
		if e.room.Phase != PhaseResult || e.result == nil || !e.bothReady() {
			return false
		}
		e.room.Round++
		e.result = nil
		room = e.snapshot()
		return true
	})
	return room, ok
}

// ResetRoundState clears selections, confirmations and ready flags and returns
// the room to SELECTING.
func (s *Store) ResetRoundState(roomID string) (Room, bool) {
	var room Room
	ok := s.withRoom(roomID, func(e *roomEntry) bool {
		for i := range e.room.Players {
			e.room.Players[i].clearRound()
		}
		e.result = nil
		if e.full() {
			e.room.Phase = PhaseSelecting
		} else {
			e.room.Phase = PhaseWaiting
		}
		room = e.snapshot()
		return true
	})
	return room, ok
}

// PurgeStaleRooms destroys every room created more than maxAge ago, occupied or
// not, and returns what was removed.
func (s *Store) PurgeStaleRooms(maxAge time.Duration) []Room {
	cutoff := s.now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var purged []Room
	for id, e := range s.rooms {
		e.mu.Lock()
		if e.room.CreatedAt.Before(cutoff) {
			for _, p := range e.room.Players {
				delete(s.byConn, p.ConnectionID)
			}
			e.removed = true
			e.seq++
			delete(s.rooms, id)
			purged = append(purged, e.snapshot())
		}
		e.mu.Unlock()
	}
	return purged
}

func (s *Store) entry(roomID string) *roomEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rooms[roomID]
}

func (s *Store) withRoom(roomID string, fn func(e *roomEntry) bool) bool {
	e := s.entry(roomID)
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return false
	}
	return fn(e)
}

// withMember runs fn against the room owning connectionID. fn's error aborts
// without a snapshot; checks must precede mutation so a rejected call leaves
// the room untouched.
func (s *Store) withMember(connectionID string, fn func(e *roomEntry, idx int) error) (Room, error) {
	s.mu.RLock()
	var e *roomEntry
	if id, ok := s.byConn[connectionID]; ok {
		e = s.rooms[id]
	}
	s.mu.RUnlock()

	if e == nil {
		return Room{}, ErrNotInRoom
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOf(connectionID)
	if e.removed || idx < 0 {
		return Room{}, ErrNotInRoom
	}
	if err := fn(e, idx); err != nil {
		return Room{}, err
	}
	return e.snapshot(), nil
}
