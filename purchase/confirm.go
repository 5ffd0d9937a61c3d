package purchase

import (
	"context"
	"errors"
	"fmt"

	"github.com/algodash/nftbuy/chain"
	"github.com/lightningnetwork/lnd/ticker"
)

var (
	// errPollBound is returned when a transaction did not resolve within
	// MaxPollRounds polls.
	errPollBound = errors.New("status unresolved after polling bound")

	// errShuttingDown is returned when the controller stops while a
	// transaction is being polled.
	errShuttingDown = errors.New("controller shutting down")
)

// waitForConfirmation polls the status of txid every PollInterval until it
// is confirmed or failed, for at most MaxPollRounds polls. Polling is not
// bound to the caller's context: when it ends, the session is detached and
// polling goes on so the submitted transaction is accounted for. A failed
// poll counts as a round.
func (c *Controller) waitForConfirmation(s *session,
	txid string) (*chain.Confirmation, error) {

	pollCtx := context.WithoutCancel(s.ctx)
	callerDone := s.ctx.Done()

	t := ticker.New(c.cfg.PollInterval)
	t.Resume()
	defer t.Stop()

	var lastErr error
	for round := 1; round <= c.cfg.MaxPollRounds; {
		select {
		case <-t.Ticks():

		case <-callerDone:
			c.detach(s)
			callerDone = nil
			continue

		case <-c.quit:
			return nil, errShuttingDown
		}

		reqCtx, cancel := context.WithTimeout(
			pollCtx, c.cfg.RequestTimeout,
		)
		conf, err := c.cfg.Bridge.ConfirmationStatus(reqCtx, txid)
		cancel()

		switch {
		case err != nil:
			log.Warnf("Status poll %d/%d of %s failed: %v", round,
				c.cfg.MaxPollRounds, txid, err)
			c.cfg.Metrics.ObservePollFailure()
			lastErr = err

		case conf.Status == chain.StatusConfirmed,
			conf.Status == chain.StatusFailed:

			log.Debugf("Transaction %s %v after %d poll(s)", txid,
				conf.Status, round)
			return conf, nil

		default:
			log.Tracef("Transaction %s %v (poll %d/%d)", txid,
				conf.Status, round, c.cfg.MaxPollRounds)
		}

		round++
	}

	if lastErr != nil {
		return nil, fmt.Errorf("%w: %d polls of %s, last error: %w",
			errPollBound, c.cfg.MaxPollRounds, txid, lastErr)
	}

	return nil, fmt.Errorf("%w: %d polls of %s", errPollBound,
		c.cfg.MaxPollRounds, txid)
}
