// Package purchase drives an asset purchase through opt-in, group signing,
// submission and confirmation as an explicit state machine.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/algodash/nftbuy/chain"
	"github.com/algodash/nftbuy/inspector"
	"github.com/algodash/nftbuy/monitoring"
	"github.com/algodash/nftbuy/txbuilder"
	"github.com/algodash/nftbuy/wallet"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/lightningnetwork/lnd/clock"
)

// ErrSessionCommitted is returned by Reset when the session already handed a
// transaction to the network. The caller is detached but the account stays
// locked until the transaction resolves.
var ErrSessionCommitted = errors.New("session committed to the network")

// Controller runs purchase sessions, at most one per account.
type Controller struct {
	cfg *Config

	guard *sessionGuard

	started bool
	quit    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
}

// New creates a new Controller.
func New(cfg *Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}

	return &Controller{
		cfg:   cfg,
		guard: newSessionGuard(),
		quit:  make(chan struct{}),
	}, nil
}

// Start allows purchases to be requested.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	c.started = true
	log.Infof("Purchase controller started for app %d, collector %s",
		c.cfg.AppID, c.cfg.collector())

	return nil
}

// Stop cancels every session and waits for them to end. Sessions polling a
// submitted transaction end with ErrCancelled and their unresolved ids.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = false
	close(c.quit)
	c.mu.Unlock()

	for _, s := range c.guard.all() {
		s.cancel()
	}
	c.wg.Wait()

	log.Infof("Purchase controller stopped")

	return nil
}

// PurchaseAsset starts a purchase and returns its update stream. Every
// session starts in StateIdle, which is not sent: the first update is the
// transition to StateCheckingHolding. The stream ends with a StateSuccess or
// StateError update and is then closed.
//
// Invalid requests and a purchase already running for the account fail
// immediately, without any ledger call. Cancelling ctx aborts the purchase
// before a transaction is submitted. Afterwards it only stops the stream:
// the submitted transaction keeps being polled and the account stays locked
// until it resolves.
func (c *Controller) PurchaseAsset(ctx context.Context,
	req Request) (<-chan Update, error) {

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil, ErrNotStarted
	}

	if err := validateRequest(req); err != nil {
		return nil, newError(ErrInvalidParameters, StateIdle, StateIdle,
			err)
	}

	s := newSession(ctx, req, c.cfg.Clock.Now())
	if err := c.guard.acquire(s); err != nil {
		s.cancel()
		return nil, newError(ErrSessionAlreadyActive, StateIdle,
			StateIdle, fmt.Errorf("account %s", req.Account))
	}

	log.Infof("Purchase of asset %d for %s at %d started", req.AssetID,
		req.Account, req.Price)

	c.wg.Add(1)
	go c.run(s)

	return s.updates, nil
}

// Session returns a snapshot of the account's active purchase.
func (c *Controller) Session(account string) (*Session, bool) {
	s, ok := c.guard.get(account)
	if !ok {
		return nil, false
	}

	return s.snapshot(), true
}

// ActiveStates counts active sessions per state name.
func (c *Controller) ActiveStates() map[string]int {
	counts := make(map[string]int)
	for _, s := range c.guard.all() {
		state, _ := s.current()
		counts[state.String()]++
	}

	return counts
}

// Reset cancels the account's session. A session that has not submitted
// anything is aborted and forgotten before Reset returns. A committed one is
// detached from its caller and ErrSessionCommitted is returned.
func (c *Controller) Reset(account string) error {
	s, ok := c.guard.get(account)
	if !ok {
		return nil
	}

	s.mu.Lock()
	committed := s.committed
	s.cancel()
	s.mu.Unlock()

	if committed {
		return ErrSessionCommitted
	}

	select {
	case <-s.done:
	case <-c.quit:
	}

	return nil
}

// run drives one session to a terminal state.
func (c *Controller) run(s *session) {
	defer c.wg.Done()
	defer close(s.done)
	defer c.guard.release(s)
	defer s.cancel()

	c.advance(s, StateCheckingHolding)

	if err := c.execute(s); err != nil {
		c.fail(s, err)
		return
	}

	c.advance(s, StateSuccess)
	c.cfg.Metrics.ObservePurchase(monitoring.OutcomeSuccess, "")

	snap := s.snapshot()
	log.Infof("Purchase of asset %d for %s confirmed (call %s)",
		s.req.AssetID, s.req.Account, snap.GroupTxIDs[1])
}

// execute runs every step after CheckingHolding was entered.
func (c *Controller) execute(s *session) *Error {
	held, perr := c.checkHolding(s)
	if perr != nil {
		return perr
	}

	if held {
		log.Debugf("Account %s already holds asset %d, skipping opt-in",
			s.req.Account, s.req.AssetID)
	} else {
		c.advance(s, StateOptingIn)
		if perr := c.optIn(s); perr != nil {
			return perr
		}
	}

	c.advance(s, StateBuildingPurchase)
	group, perr := c.buildGroup(s)
	if perr != nil {
		return perr
	}

	c.advance(s, StateSigning)
	raw, perr := c.sign(s, group.Txns)
	if perr != nil {
		return perr
	}

	c.advance(s, StateSubmitting)
	if perr := c.submit(s, raw, group.TxIDs); perr != nil {
		return perr
	}
	c.cfg.Metrics.ObserveSubmitted(monitoring.KindPurchase, len(group.TxIDs))

	c.advance(s, StateAwaitingPurchaseConfirmation, group.TxIDs...)

	return c.await(s, group.CallTxID(), monitoring.KindPurchase)
}

// checkHolding asks whether the opt-in can be skipped.
func (c *Controller) checkHolding(s *session) (bool, *Error) {
	ctx, cancel := context.WithTimeout(s.ctx, c.cfg.RequestTimeout)
	defer cancel()

	held, err := c.cfg.Inspector.HasHolding(ctx, s.req.Account,
		s.req.AssetID)
	switch {
	case s.ctx.Err() != nil:
		return false, c.failure(s, ErrCancelled, s.ctx.Err())

	case errors.Is(err, inspector.ErrInvalidParameters):
		return false, c.failure(s, ErrInvalidParameters, err)

	case err != nil:
		return false, c.failure(s, ErrLookupUnavailable, err)
	}

	return held, nil
}

// optIn builds, signs, submits and awaits the registration transaction.
func (c *Controller) optIn(s *session) *Error {
	params, perr := c.networkParams(s)
	if perr != nil {
		return perr
	}

	txn, err := c.cfg.Builder.OptIn(params, s.req.Account, s.req.AssetID)
	if err != nil {
		return c.failure(s, ErrInvalidParameters, err)
	}

	raw, perr := c.sign(s, []types.Transaction{txn})
	if perr != nil {
		return perr
	}

	txid := crypto.GetTxID(txn)
	s.mu.Lock()
	s.optInTxID = txid
	s.mu.Unlock()

	if perr := c.submit(s, raw, []string{txid}); perr != nil {
		return perr
	}
	c.cfg.Metrics.ObserveSubmitted(monitoring.KindOptIn, 1)

	c.advance(s, StateAwaitingOptInConfirmation, txid)

	if perr := c.await(s, txid, monitoring.KindOptIn); perr != nil {
		return perr
	}

	// A detached caller gets no further step.
	if s.snapshot().Detached {
		return c.failure(s, ErrCancelled, context.Canceled)
	}

	return nil
}

// buildGroup fetches fresh parameters and assembles payment and call.
func (c *Controller) buildGroup(s *session) (*txbuilder.Group, *Error) {
	params, perr := c.networkParams(s)
	if perr != nil {
		return nil, perr
	}

	payment, err := c.cfg.Builder.Payment(
		params, s.req.Account, c.cfg.collector(), s.req.Price,
	)
	if err != nil {
		return nil, c.failure(s, ErrInvalidParameters, err)
	}

	call, err := c.cfg.Builder.ContractCall(
		params, s.req.Account, c.cfg.AppID, s.req.AssetID,
	)
	if err != nil {
		return nil, c.failure(s, ErrInvalidParameters, err)
	}

	group, err := txbuilder.AssemblePurchase(payment, call)
	if err != nil {
		return nil, c.failure(s, ErrInvalidParameters, err)
	}

	s.mu.Lock()
	s.groupTxIDs = append([]string(nil), group.TxIDs...)
	s.mu.Unlock()

	return group, nil
}

// networkParams fetches parameters for the next transaction set.
func (c *Controller) networkParams(s *session) (*chain.NetworkParams, *Error) {
	ctx, cancel := context.WithTimeout(s.ctx, c.cfg.RequestTimeout)
	defer cancel()

	params, err := c.cfg.Bridge.NetworkParams(ctx)
	switch {
	case s.ctx.Err() != nil:
		return nil, c.failure(s, ErrCancelled, s.ctx.Err())

	case err != nil:
		return nil, c.failure(s, ErrLookupUnavailable, err)
	}

	return params, nil
}

// sign asks the signer for every transaction and checks the answer. It is
// bounded only by the session context, a human may take long to decide.
func (c *Controller) sign(s *session, txns []types.Transaction) ([]byte,
	*Error) {

	signed, err := c.cfg.Signer.SignTransactions(s.ctx, txns, nil)
	switch {
	case s.ctx.Err() != nil:
		return nil, c.failure(s, ErrCancelled, s.ctx.Err())

	case errors.Is(err, wallet.ErrRejected):
		return nil, c.failure(s, ErrSigningRejected, err)

	case err != nil:
		return nil, c.failure(s, ErrSigningUnavailable, err)
	}

	raw, err := txbuilder.Seal(txns, signed)
	if err != nil {
		return nil, c.failure(s, ErrSigningUnavailable, err)
	}

	return raw, nil
}

// submit broadcasts raw bytes holding txids. Once it starts, the caller can
// no longer abort the session.
func (c *Controller) submit(s *session, raw []byte, txids []string) *Error {
	s.mu.Lock()
	if err := s.ctx.Err(); err != nil {
		s.mu.Unlock()
		return c.failure(s, ErrCancelled, err)
	}
	s.committed = true
	s.unresolved = append([]string(nil), txids...)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(
		context.WithoutCancel(s.ctx), c.cfg.RequestTimeout,
	)
	defer cancel()

	txid, err := c.cfg.Bridge.SubmitTransactionBytes(ctx, raw)
	switch {
	case errors.Is(err, chain.ErrRejected):
		s.resolve()
		return c.failure(s, ErrSubmissionRejected, err)

	// The node may or may not have taken the bytes.
	case err != nil:
		return c.failure(s, ErrSubmissionRejected, err, txids...)
	}

	if txid != txids[0] {
		log.Warnf("Node answered txid %s, expected %s", txid, txids[0])
	}
	log.Infof("Submitted %d transaction(s) for %s: %v", len(txids),
		s.req.Account, txids)

	return nil
}

// await polls txid until it resolves and maps the outcome.
func (c *Controller) await(s *session, txid, kind string) *Error {
	start := c.cfg.Clock.Now()
	conf, err := c.waitForConfirmation(s, txid)
	waited := c.cfg.Clock.Now().Sub(start)

	switch {
	case errors.Is(err, errShuttingDown):
		return c.failure(s, ErrCancelled, err, s.pending()...)

	case err != nil:
		c.cfg.Metrics.ObserveConfirmationWait(kind, "timeout", waited)
		return c.failure(s, ErrConfirmationTimeout, err, s.pending()...)

	case conf.Status == chain.StatusFailed:
		c.cfg.Metrics.ObserveConfirmationWait(kind,
			conf.Status.String(), waited)
		s.resolve()
		return c.failure(s, ErrSubmissionRejected,
			fmt.Errorf("%s evicted from pool: %s", txid,
				conf.PoolError))
	}

	c.cfg.Metrics.ObserveConfirmationWait(kind, conf.Status.String(), waited)
	s.resolve()

	log.Infof("Transaction %s confirmed in round %d", txid,
		conf.ConfirmedRound)

	return nil
}

// advance moves the session to a new state and notifies the caller.
func (c *Controller) advance(s *session, to State, txids ...string) {
	s.mu.Lock()
	from := s.state
	if !canTransition(from, to) {
		log.Errorf("Illegal transition %v -> %v for %s", from, to,
			s.req.Account)
	}
	s.lastCompleted = from
	s.state = to
	s.mu.Unlock()

	log.Debugf("Purchase for %s: %v -> %v", s.req.Account, from, to)
	c.cfg.Metrics.ObserveTransition(to.String())

	s.send(Update{
		State: to,
		At:    c.cfg.Clock.Now(),
		TxIDs: txids,
	})
}

// failure builds an *Error located at the session's current state.
func (c *Controller) failure(s *session, kind, cause error,
	unresolved ...string) *Error {

	state, last := s.current()
	return newError(kind, state, last, cause, unresolved...)
}

// fail moves the session to StateError and reports perr.
func (c *Controller) fail(s *session, perr *Error) {
	s.mu.Lock()
	from := s.state
	s.state = StateError
	detached := s.detached
	s.mu.Unlock()

	c.cfg.Metrics.ObserveTransition(StateError.String())
	c.cfg.Metrics.ObservePurchase(monitoring.OutcomeError, perr.Kind.Error())

	if detached {
		log.Infof("Detached purchase for %s ended in %v: %v",
			s.req.Account, from, perr)
	} else {
		log.Errorf("Purchase for %s failed: %v", s.req.Account, perr)
	}

	s.send(Update{
		State: StateError,
		At:    c.cfg.Clock.Now(),
		Err:   perr,
	})
}

// detach ends the caller's stream while submitted transactions resolve.
func (c *Controller) detach(s *session) {
	s.mu.Lock()
	if s.detached {
		s.mu.Unlock()
		return
	}
	s.detached = true
	state, last := s.state, s.lastCompleted
	unresolved := append([]string(nil), s.unresolved...)
	s.mu.Unlock()

	log.Infof("Caller of purchase for %s left in %v, still polling %v",
		s.req.Account, state, unresolved)

	s.send(Update{
		State: StateError,
		At:    c.cfg.Clock.Now(),
		Err: newError(ErrCancelled, state, last, s.ctx.Err(),
			unresolved...),
	})
}

// resolve clears the unresolved transaction ids.
func (s *session) resolve() {
	s.mu.Lock()
	s.unresolved = nil
	s.mu.Unlock()
}

func validateRequest(req Request) error {
	if req.Account == "" {
		return fmt.Errorf("account is empty")
	}
	if _, err := types.DecodeAddress(req.Account); err != nil {
		return fmt.Errorf("account %q: %w", req.Account, err)
	}
	if req.AssetID == 0 {
		return fmt.Errorf("asset id is zero")
	}
	if req.Price == 0 {
		return fmt.Errorf("price must be positive")
	}

	return nil
}
