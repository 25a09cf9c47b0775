package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
)

var (
	// ErrBridgeShutdown is returned for calls that were outstanding when
	// the bridge was stopped and for calls made afterwards.
	ErrBridgeShutdown = errors.New("engine bridge shut down")

	// ErrCallTimeout is returned for calls whose reply did not arrive
	// within the configured call timeout.
	ErrCallTimeout = errors.New("engine call timed out")

	// ErrTransportClosed is returned for calls that were outstanding when
	// the transport failed.
	ErrTransportClosed = errors.New("engine transport closed")
)

// EngineError is returned when the engine rejects a call.  Message holds the
// engine's failure description verbatim.
type EngineError struct {
	Op      string
	Message string
}

// Error satisfies the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("engine %s: %s", e.Op, e.Message)
}

// Request is the envelope sent to the engine.  ID is the correlation token
// the engine echoes back in its reply.
type Request struct {
	ID   string        `json:"uuid"`
	Name string        `json:"name"`
	Args []interface{} `json:"args"`
}

// Reply is the envelope received from the engine.  A call failed when
// Rejection holds a value other than null, false, 0 or "".
type Reply struct {
	ID        string          `json:"uuid"`
	Result    json.RawMessage `json:"res,omitempty"`
	Rejection json.RawMessage `json:"rej,omitempty"`
}

// rejected reports whether the reply carries a rejection.  Engines that
// always serialize the field send null, false, 0 or "" on success.
func (r *Reply) rejected() bool {
	switch string(bytes.TrimSpace(r.Rejection)) {
	case "", "null", "false", "0", `""`:
		return false
	}
	return true
}

// rejectionMessage returns the engine failure description.  Engines usually
// reject with a string, anything else is reported as raw JSON.
func (r *Reply) rejectionMessage() string {
	var msg string
	if err := json.Unmarshal(r.Rejection, &msg); err == nil {
		return msg
	}
	return string(r.Rejection)
}

// Transport moves envelopes to and from the engine.  Send is never called
// concurrently.  Receive blocks until a reply arrives and returns an error
// once the transport is closed or broken.
type Transport interface {
	Send(req *Request) error
	Receive() (*Reply, error)
	Close() error
}

// Config houses the bridge options.
type Config struct {
	// Transport carries the envelopes.
	Transport Transport

	// CallTimeout bounds how long a call may stay unanswered.  Zero
	// disables timeouts and calls wait for as long as their context
	// allows.
	CallTimeout time.Duration

	// Clock is used to track call deadlines.  Defaults to the wall
	// clock.
	Clock clock.Clock
}

type callResult struct {
	res json.RawMessage
	err error
}

type pendingCall struct {
	name     string
	deadline time.Time
	done     chan callResult
}

// Bridge multiplexes concurrent calls into the engine over a single
// transport, matching each reply to its caller by correlation token.
type Bridge struct {
	cfg Config

	sendMtx sync.Mutex

	mtx     sync.Mutex
	pending map[string]*pendingCall
	err     error

	started  bool
	stopOnce sync.Once
	quit     chan struct{}
	wg       sync.WaitGroup
}

// New returns a bridge over the configured transport.  Start must be called
// before replies are delivered.
func New(cfg *Config) *Bridge {
	initPrometheusMetrics()

	c := *cfg
	if c.Clock == nil {
		c.Clock = clock.NewDefaultClock()
	}
	return &Bridge{
		cfg:     c,
		pending: make(map[string]*pendingCall),
		quit:    make(chan struct{}),
	}
}

// Start launches the goroutines that deliver replies and evict expired
// calls.
func (b *Bridge) Start() {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.started {
		return
	}
	b.started = true

	b.wg.Add(1)
	go b.receiveHandler()

	if b.cfg.CallTimeout > 0 {
		b.wg.Add(1)
		go b.timeoutHandler()
	}
}

// Stop fails every outstanding call with ErrBridgeShutdown, closes the
// transport and waits for the bridge goroutines to exit.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.failAll(ErrBridgeShutdown)
		close(b.quit)
		if err := b.cfg.Transport.Close(); err != nil {
			log.Debugf("Unable to close engine transport: %v", err)
		}
		b.wg.Wait()
	})
}

// Outstanding returns the number of calls awaiting a reply.
func (b *Bridge) Outstanding() int {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	return len(b.pending)
}

// Call invokes the named engine operation with args and decodes its result
// into result, which may be nil when the caller does not need it.  Any
// number of calls may be in flight at once.  A rejected call returns an
// *EngineError.  Cancelling ctx abandons the call: its registration is
// dropped and a late reply is discarded.
func (b *Bridge) Call(ctx context.Context, name string, result interface{},
	args ...interface{}) error {

	if args == nil {
		args = []interface{}{}
	}
	req := &Request{
		ID:   uuid.New().String(),
		Name: name,
		Args: args,
	}

	call, err := b.register(req)
	if err != nil {
		return err
	}
	prometheusCalls.WithLabelValues(name).Inc()

	b.sendMtx.Lock()
	err = b.cfg.Transport.Send(req)
	b.sendMtx.Unlock()
	if err != nil {
		b.unregister(req.ID)
		return fmt.Errorf("unable to send %s: %w", name, err)
	}
	log.Tracef("Sent engine call %s (%s)", name, req.ID)

	var res callResult
	select {
	case res = <-call.done:
	case <-ctx.Done():
		b.unregister(req.ID)
		log.Debugf("Engine call %s (%s) abandoned: %v", name, req.ID,
			ctx.Err())
		return ctx.Err()
	}

	if res.err != nil {
		return res.err
	}
	if result == nil || len(res.res) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.res, result); err != nil {
		return fmt.Errorf("unable to decode %s result: %w", name, err)
	}
	return nil
}

func (b *Bridge) register(req *Request) (*pendingCall, error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.err != nil {
		return nil, b.err
	}
	call := &pendingCall{
		name: req.Name,
		done: make(chan callResult, 1),
	}
	if b.cfg.CallTimeout > 0 {
		call.deadline = b.cfg.Clock.Now().Add(b.cfg.CallTimeout)
	}
	b.pending[req.ID] = call
	prometheusOutstanding.Inc()
	return call, nil
}

// take removes the registration for token and returns it, or nil if the
// token is unknown.
//
// This function MUST be called with the bridge lock held.
func (b *Bridge) take(token string) *pendingCall {
	call, ok := b.pending[token]
	if !ok {
		return nil
	}
	delete(b.pending, token)
	prometheusOutstanding.Dec()
	return call
}

func (b *Bridge) unregister(token string) {
	b.mtx.Lock()
	b.take(token)
	b.mtx.Unlock()
}

// deliver resolves the call a reply belongs to.
func (b *Bridge) deliver(reply *Reply) {
	b.mtx.Lock()
	call := b.take(reply.ID)
	b.mtx.Unlock()

	if call == nil {
		log.Debugf("Dropping engine reply with unknown token %q", reply.ID)
		return
	}

	if reply.rejected() {
		prometheusFailures.WithLabelValues(call.name).Inc()
		call.done <- callResult{err: &EngineError{
			Op:      call.name,
			Message: reply.rejectionMessage(),
		}}
		return
	}
	call.done <- callResult{res: reply.Result}
}

// failAll fails every outstanding call with err and refuses new ones.
func (b *Bridge) failAll(err error) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if b.err == nil {
		b.err = err
	}
	for token := range b.pending {
		call := b.take(token)
		call.done <- callResult{err: err}
	}
}

// evictExpired fails every call whose deadline has passed.
func (b *Bridge) evictExpired() {
	now := b.cfg.Clock.Now()

	b.mtx.Lock()
	defer b.mtx.Unlock()

	for token, call := range b.pending {
		if call.deadline.IsZero() || now.Before(call.deadline) {
			continue
		}
		b.take(token)
		prometheusTimeouts.Inc()
		log.Warnf("Engine call %s (%s) timed out", call.name, token)
		call.done <- callResult{
			err: fmt.Errorf("%s: %w", call.name, ErrCallTimeout),
		}
	}
}

// receiveHandler reads replies until the transport fails or the bridge is
// stopped.
//
// NOTE: This MUST be run as a goroutine.
func (b *Bridge) receiveHandler() {
	defer b.wg.Done()

	for {
		reply, err := b.cfg.Transport.Receive()
		if err != nil {
			select {
			case <-b.quit:
			default:
				log.Errorf("Engine transport failed: %v", err)
			}
			b.failAll(fmt.Errorf("%w: %v", ErrTransportClosed, err))
			return
		}
		b.deliver(reply)
	}
}

// timeoutHandler periodically evicts expired calls.
//
// NOTE: This MUST be run as a goroutine.
func (b *Bridge) timeoutHandler() {
	defer b.wg.Done()

	interval := b.cfg.CallTimeout / 2
	for {
		select {
		case <-b.cfg.Clock.TickAfter(interval):
			b.evictExpired()
		case <-b.quit:
			return
		}
	}
}
