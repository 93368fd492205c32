package app

import (
	"context"
	"time"
)

// startCountdown launches the reveal countdown for a room. The caller holds
// lane.mu. Canceling the countdown (departure, purge, Close) guarantees that no
// further tick and no round result is emitted for it.
func (c *Coordinator) startCountdown(lane *roomLane, roomID string, seq uint64) {
	ctx, cancel := context.WithCancel(c.ctx)
	lane.countdown = cancel

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer cancel()
		c.runCountdown(ctx, lane, roomID, seq)
	}()
}

func (c *Coordinator) runCountdown(ctx context.Context, lane *roomLane, roomID string, seq uint64) {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for tick := c.settings.CountdownFrom; tick > 0; tick-- {
		emitted := c.underLane(ctx, lane, func() {
			c.dispatch(ctx, roomID, Event{Kind: EventCountdown, Payload: tick})
		})
		if !emitted {
			return
		}

		timer.Reset(c.settings.CountdownInterval)
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	c.underLane(ctx, lane, func() {
		result, room, ok := c.store.CompleteRound(roomID, seq)
		if !ok {
			c.logger.Warn("Countdown: room %s round was invalidated before reveal", roomID)
			return
		}
		lane.countdown = nil

		c.dispatch(ctx, roomID, Event{Kind: EventRoundResult, Payload: result})
		c.dispatch(ctx, roomID, playerUpdate(room))
		c.recordRound(roomID, result)
		c.logger.Info("Countdown: room %s resolved round %d", roomID, result.RoundNumber)
	})
}

// underLane runs fn holding the lane unless ctx is already canceled.
func (c *Coordinator) underLane(ctx context.Context, lane *roomLane, fn func()) bool {
	lane.mu.Lock()
	defer lane.mu.Unlock()

	if ctx.Err() != nil {
		return false
	}
	fn()
	return true
}
