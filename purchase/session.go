package purchase

import (
	"context"
	"sync"
	"time"
)

// Request asks for one asset to be bought for an account.
type Request struct {
	// Account is the buyer and signer of every transaction.
	Account string

	// AssetID is the asset being bought.
	AssetID uint64

	// Price is paid in microAlgos to the sale's collector.
	Price uint64
}

// Update is one notification of a purchase stream.
type Update struct {
	// State is the state just entered.
	State State

	// At is when the state was entered.
	At time.Time

	// TxIDs are the transactions submitted for the state, set when entering
	// an awaiting state.
	TxIDs []string

	// Err is set when State is StateError.
	Err *Error
}

// Session is a snapshot of an in-flight purchase.
type Session struct {
	Request

	State         State
	LastCompleted State
	StartedAt     time.Time

	// OptInTxID is the registration transaction, if one was submitted.
	OptInTxID string

	// GroupTxIDs are the payment and contract call ids, once assembled.
	GroupTxIDs []string

	// Unresolved are submitted transactions without a final status.
	Unresolved []string

	// Committed is true once a transaction was handed to the network.
	Committed bool

	// Detached is true once the caller stopped listening while submitted
	// transactions still resolve.
	Detached bool
}

// updateBuffer exceeds the longest possible update sequence, so emitting
// never blocks on a slow reader.
const updateBuffer = 16

// session is the controller's bookkeeping of one purchase.
type session struct {
	req       Request
	startedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	updates chan Update
	done    chan struct{}

	mu            sync.Mutex
	state         State
	lastCompleted State
	optInTxID     string
	groupTxIDs    []string
	unresolved    []string
	committed     bool
	detached      bool
	closed        bool
}

func newSession(ctx context.Context, req Request, now time.Time) *session {
	ctx, cancel := context.WithCancel(ctx)

	return &session{
		req:       req,
		startedAt: now,
		ctx:       ctx,
		cancel:    cancel,
		updates:   make(chan Update, updateBuffer),
		done:      make(chan struct{}),
		state:     StateIdle,
	}
}

// snapshot copies the session for callers.
func (s *session) snapshot() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &Session{
		Request:       s.req,
		State:         s.state,
		LastCompleted: s.lastCompleted,
		StartedAt:     s.startedAt,
		OptInTxID:     s.optInTxID,
		GroupTxIDs:    append([]string(nil), s.groupTxIDs...),
		Unresolved:    append([]string(nil), s.unresolved...),
		Committed:     s.committed,
		Detached:      s.detached,
	}
}

// current returns the state and the last completed state.
func (s *session) current() (State, State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state, s.lastCompleted
}

// pending returns a copy of the unresolved transaction ids.
func (s *session) pending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.unresolved...)
}

// send delivers an update unless the stream was closed. Terminal updates
// close the stream.
func (s *session) send(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.updates <- u

	if u.State.Terminal() {
		close(s.updates)
		s.closed = true
	}
}
