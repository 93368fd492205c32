package domain

import "time"

// Phase represents the room's position in the round protocol.
type Phase string

const (
	// PhaseWaiting means the room holds fewer than two players.
	PhaseWaiting Phase = "WAITING"
	// PhaseSelecting means both players are present and picking options.
	PhaseSelecting Phase = "SELECTING"
	// PhaseCountdown means both selections are locked and the reveal countdown runs.
	PhaseCountdown Phase = "COUNTDOWN"
	// PhaseResult means the round is resolved and the room waits for both players to continue.
	PhaseResult Phase = "RESULT"
)

// PlayersPerRoom is the fixed room capacity.
const PlayersPerRoom = 2

// Player holds the per-room state of one connection.
type Player struct {
	ConnectionID string
	Nickname     string
	Score        int
	WinStreak    int
	Selection    *Option
	Confirmed    bool
	ReadyForNext bool
}

// NewPlayer returns a fresh player for a connection.
func NewPlayer(connectionID, nickname string) Player {
	return Player{ConnectionID: connectionID, Nickname: nickname}
}

// HasSelection reports whether an option is chosen for the current round.
func (p Player) HasSelection() bool {
	return p.Selection != nil
}

// clearRound drops every round-scoped flag. Clearing the selection always clears confirmation.
func (p *Player) clearRound() {
	p.Selection = nil
	p.Confirmed = false
	p.ReadyForNext = false
}

// Room is a point-in-time copy of a match between at most two players.
// Players[0] is the first entrant and is reported as player 1 in round results.
type Room struct {
	ID        string
	Players   []Player
	Phase     Phase
	Round     int
	CreatedAt time.Time
}

// Player returns the member with the given connection, if any.
func (r Room) Player(connectionID string) (Player, bool) {
	for _, p := range r.Players {
		if p.ConnectionID == connectionID {
			return p, true
		}
	}
	return Player{}, false
}

// ConnectionIDs lists member connections in seat order.
func (r Room) ConnectionIDs() []string {
	out := make([]string, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, p.ConnectionID)
	}
	return out
}

// Empty reports whether the room has no members left.
func (r Room) Empty() bool {
	return len(r.Players) == 0
}

// PlayerResult is one side of a resolved round.
type PlayerResult struct {
	ConnectionID string  `json:"socketId"`
	Nickname     string  `json:"nickname"`
	Option       Option  `json:"option"`
	Outcome      Outcome `json:"result"`
	Score        int     `json:"score"`
	ScoreGained  int     `json:"scoreGained"`
	WinStreak    int     `json:"winStreak"`
}

// RoundResult is the immutable outcome of one round.
type RoundResult struct {
	Player1     PlayerResult `json:"player1"`
	Player2     PlayerResult `json:"player2"`
	RoundNumber int          `json:"roundNumber"`
}

// PlayerView is the public projection of a player. The chosen option stays
// hidden until the round result reveals it.
type PlayerView struct {
	ConnectionID string `json:"socketId"`
	Nickname     string `json:"nickname"`
	Score        int    `json:"score"`
	WinStreak    int    `json:"winStreak"`
	HasSelected  bool   `json:"hasSelected"`
	Confirmed    bool   `json:"isConfirmed"`
	ReadyForNext bool   `json:"isReadyForNextRound"`
}

// View projects p for broadcast.
func (p Player) View() PlayerView {
	return PlayerView{
		ConnectionID: p.ConnectionID,
		Nickname:     p.Nickname,
		Score:        p.Score,
		WinStreak:    p.WinStreak,
		HasSelected:  p.HasSelection(),
		Confirmed:    p.Confirmed,
		ReadyForNext: p.ReadyForNext,
	}
}

// PlayerViews projects every member of r in seat order.
func (r Room) PlayerViews() []PlayerView {
	out := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		out = append(out, p.View())
	}
	return out
}
