package domain

// Outcome is the result of a round from one player's perspective.
type Outcome string

const (
	OutcomeWin  Outcome = "WIN"
	OutcomeLose Outcome = "LOSE"
	OutcomeDraw Outcome = "DRAW"
)

// Streak thresholds for the score bonus.
const (
	streakBonusTier1 = 3
	streakBonusTier2 = 5
)

// DetermineOutcome compares chosen against other.
// Each option beats the seven options immediately preceding it on the circle
// and loses to the seven immediately following it.
func DetermineOutcome(chosen, other Option) Outcome {
	if chosen == other {
		return OutcomeDraw
	}

	distance := (other.Index() - chosen.Index() + OptionCount) % OptionCount
	if distance >= 8 && distance <= 14 {
		return OutcomeWin
	}
	return OutcomeLose
}

// ScoreGain returns the points awarded for outcome given the streak before this round.
//
//	WIN, streak < 3      -> 1
//	WIN, 3 <= streak < 5 -> 2
//	WIN, streak >= 5     -> 3
//	LOSE, DRAW           -> 0
func ScoreGain(outcome Outcome, streak int) int {
	if outcome != OutcomeWin {
		return 0
	}
	switch {
	case streak >= streakBonusTier2:
		return 3
	case streak >= streakBonusTier1:
		return 2
	default:
		return 1
	}
}

// NextStreak applies outcome to the streak held before this round.
func NextStreak(outcome Outcome, streak int) int {
	switch outcome {
	case OutcomeWin:
		return streak + 1
	case OutcomeLose:
		return 0
	default:
		return streak
	}
}

// ResolveRound scores a round between p1 and p2 and applies the new score and
// streak to both players. Both players must hold a selection.
func ResolveRound(p1, p2 *Player, round int) RoundResult {
	return RoundResult{
		Player1:     settle(p1, p2),
		Player2:     settle(p2, p1),
		RoundNumber: round,
	}
}

// settle is computed from the selections only, so the order of the two calls in
// ResolveRound does not matter.
func settle(self, other *Player) PlayerResult {
	outcome := DetermineOutcome(*self.Selection, *other.Selection)
	gain := ScoreGain(outcome, self.WinStreak)

	self.Score += gain
	self.WinStreak = NextStreak(outcome, self.WinStreak)

	return PlayerResult{
		ConnectionID: self.ConnectionID,
		Nickname:     self.Nickname,
		Option:       *self.Selection,
		Outcome:      outcome,
		Score:        self.Score,
		ScoreGained:  gain,
		WinStreak:    self.WinStreak,
	}
}
