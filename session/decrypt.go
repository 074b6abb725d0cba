package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/tocipoco/DAO-Vote/chain"
	"github.com/tocipoco/DAO-Vote/coprocessor"
	"github.com/tocipoco/DAO-Vote/log"
	"github.com/tocipoco/DAO-Vote/types"
)

// DefaultTimeout bounds a whole decryption or vote request.
const DefaultTimeout = 2 * time.Minute

// Decryption request states.
const (
	StateIdle              = "idle"
	StateAuthorizing       = "authorizing"
	StateAwaitingSignature = "awaiting_signature"
	StateDecrypting        = "decrypting"
	StateResolved          = "resolved"
	StateStale             = "stale"
	StateFailed            = "failed"
)

const (
	eventRequest    = "request"
	eventAuthorized = "authorized"
	eventSigned     = "signed"
	eventResolve    = "resolve"
	eventDiscard    = "discard"
	eventFail       = "fail"
	eventReset      = "reset"
)

var pendingStates = []string{StateAuthorizing, StateAwaitingSignature, StateDecrypting}

func newDecryptFSM(id string) *fsm.FSM {
	return fsm.NewFSM(
		StateIdle,
		fsm.Events{
			{Name: eventRequest, Src: []string{StateIdle}, Dst: StateAuthorizing},
			{Name: eventAuthorized, Src: []string{StateAuthorizing}, Dst: StateAwaitingSignature},
			{Name: eventSigned, Src: []string{StateAwaitingSignature}, Dst: StateDecrypting},
			{Name: eventResolve, Src: []string{StateDecrypting}, Dst: StateResolved},
			{Name: eventDiscard, Src: pendingStates, Dst: StateStale},
			{Name: eventFail, Src: pendingStates, Dst: StateFailed},
			{Name: eventReset, Src: []string{StateResolved, StateStale, StateFailed}, Dst: StateIdle},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugw("decryption request state", "request", id, "from", e.Src, "to", e.Dst)
			},
		},
	)
}

// Target is what a request runs against: the chain connection of the active
// account and the co-processor client of that chain.
type Target struct {
	Conn   chain.Connection
	Client *coprocessor.Client
}

// Config holds the options shared by the session protocols.
type Config struct {
	// Timeout bounds every request. Defaults to DefaultTimeout.
	Timeout time.Duration
	// SignatureDurationDays is the validity of fresh decryption signatures.
	SignatureDurationDays uint64
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func (c *Config) setDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.SignatureDurationDays == 0 {
		c.SignatureDurationDays = types.DefaultSignatureDurationDays
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// DecryptSession resolves the tallies of proposals for the session user. At
// most one request runs at a time.
type DecryptSession struct {
	cfg     Config
	tracker *Tracker
	sigs    *SignatureCache
	results *ResultBook

	inFlight atomic.Bool
	mu       sync.Mutex
	machine  *fsm.FSM
}

// NewDecryptSession returns a decryption session recording its results in
// results.
func NewDecryptSession(cfg Config, tracker *Tracker, sigs *SignatureCache, results *ResultBook) *DecryptSession {
	cfg.setDefaults()
	return &DecryptSession{
		cfg:     cfg,
		tracker: tracker,
		sigs:    sigs,
		results: results,
		machine: newDecryptFSM(""),
	}
}

// State returns the state of the current or last request.
func (s *DecryptSession) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Current()
}

// InFlight reports whether a request is pending.
func (s *DecryptSession) InFlight() bool {
	return s.inFlight.Load()
}

// transition moves the request machine. It does not take the request
// context, bookkeeping must happen even after a timeout.
func (s *DecryptSession) transition(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.machine.Event(context.Background(), event); err != nil {
		log.Warnw("invalid decryption state transition", "event", event, "state", s.machine.Current(), "error", err.Error())
	}
}

// Decrypt authorizes the session user on the proposal counters, signs or
// reuses a decryption permit and resolves the counters through the
// co-processor. The tally is recorded in the result book only if neither the
// session context nor the proposal counters changed meanwhile, otherwise
// ErrStale is returned. A target outside the session context is stale too.
func (s *DecryptSession) Decrypt(ctx context.Context, target Target, id uint64) (*types.Tally, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRequestInFlight
	}
	defer s.inFlight.Store(false)

	reqID := uuid.New().String()
	token := s.tracker.Begin()
	s.mu.Lock()
	s.machine = newDecryptFSM(reqID)
	s.mu.Unlock()
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	s.transition(eventRequest)

	tally, err := s.run(ctx, token, target, id)
	switch {
	case errors.Is(err, ErrStale):
		s.transition(eventDiscard)
		log.Debugw("decryption discarded", "request", reqID, "proposal", id)
	case err != nil:
		if ctx.Err() != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		s.transition(eventFail)
		log.Warnw("decryption failed", "request", reqID, "proposal", id, "error", err.Error())
	default:
		s.transition(eventResolve)
		log.Infow("tally decrypted", "request", reqID, "proposal", id, "yes", tally.Yes, "no", tally.No)
	}
	return tally, err
}

// Reset returns a finished request to idle.
func (s *DecryptSession) Reset() {
	if s.InFlight() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.machine.Can(eventReset) {
		_ = s.machine.Event(context.Background(), eventReset)
	}
}

func (s *DecryptSession) run(ctx context.Context, token Token, target Target, id uint64) (*types.Tally, error) {
	conn := target.Conn
	if !token.Matches(conn) {
		return nil, ErrStale
	}
	version := s.results.Version(id)
	// a failed grant is not fatal, access may remain from an earlier grant
	if _, err := chain.Transact(ctx, conn, func(ctx context.Context) (common.Hash, error) {
		return conn.GrantDecryptionAccess(ctx, id)
	}); err != nil {
		log.Warnw("decryption access grant failed, continuing", "proposal", id, "error", err.Error())
	}
	if token.Stale() {
		return nil, ErrStale
	}
	s.transition(eventAuthorized)

	sig, err := s.signature(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	if token.Stale() {
		return nil, ErrStale
	}
	s.transition(eventSigned)

	yes, no, err := conn.EncryptedVotes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	pairs := []coprocessor.HandleContractPair{
		{Handle: yes, ContractAddress: conn.ContractAddress()},
		{Handle: no, ContractAddress: conn.ContractAddress()},
	}
	values, err := target.Client.UserDecrypt(ctx, pairs, &sig.Keypair, sig.Signature, sig.Contracts,
		sig.User, sig.StartTimestamp, sig.DurationDays)
	if err != nil {
		if errors.Is(err, coprocessor.ErrInvalidSignature) || errors.Is(err, coprocessor.ErrPermitExpired) {
			s.evict(sig)
		}
		return nil, fmt.Errorf("%w: %w", ErrDecryption, err)
	}
	if token.Stale() {
		return nil, ErrStale
	}
	tally := &types.Tally{
		ProposalID:  id,
		Yes:         values[yes],
		No:          values[no],
		YesHandle:   yes,
		NoHandle:    no,
		DecryptedAt: s.cfg.Now(),
	}
	var recorded bool
	if !token.Commit(func() { recorded = s.results.SetIfVersion(version, tally) }) || !recorded {
		return nil, ErrStale
	}
	return tally, nil
}

// signature returns the cached signature of the connected user for the
// contract, producing a fresh one when none is valid.
func (s *DecryptSession) signature(ctx context.Context, target Target) (*CachedSignature, error) {
	user := target.Conn.Account()
	contracts := []common.Address{target.Conn.ContractAddress()}
	sig, ok, err := s.sigs.Get(user, contracts)
	if err != nil {
		log.Warnw("cannot read signature cache", "error", err.Error())
	}
	if ok {
		return sig, nil
	}
	signer := target.Conn.SignKeys()
	if signer == nil {
		return nil, ErrNoWallet
	}
	kp, err := target.Client.GenerateKeypair()
	if err != nil {
		return nil, err
	}
	start := uint64(s.cfg.Now().Unix())
	permit, err := target.Client.CreateEIP712(ctx, kp.PublicKey, contracts, start, s.cfg.SignatureDurationDays)
	if err != nil {
		return nil, err
	}
	signature, err := signer.SignTypedData(permit)
	if err != nil {
		s.evict(&CachedSignature{User: user, Contracts: contracts})
		return nil, fmt.Errorf("cannot sign decryption permit: %w", err)
	}
	sig = &CachedSignature{
		User:           user,
		Contracts:      contracts,
		Keypair:        *kp,
		Signature:      signature,
		StartTimestamp: start,
		DurationDays:   s.cfg.SignatureDurationDays,
	}
	if err := s.sigs.Put(sig); err != nil {
		log.Warnw("cannot cache decryption signature", "error", err.Error())
	}
	return sig, nil
}

func (s *DecryptSession) evict(sig *CachedSignature) {
	if err := s.sigs.Delete(sig.User, sig.Contracts); err != nil {
		log.Warnw("cannot evict decryption signature", "error", err.Error())
	}
}
