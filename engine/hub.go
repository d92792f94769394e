package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ledgerflow/account"
	"ledgerflow/ledger"
)

// queueCap bounds each client's pending actions before Submit blocks.
const queueCap = 16

// ErrClosed signals a Submit after Summarize started draining the hub.
var ErrClosed = errors.New("engine: hub closed")

// OutcomeHandler observes every action's outcome from the hub's single
// collection point. Collection order across clients is unspecified;
// per-client order matches submission order.
type OutcomeHandler func(Outcome)

// Hub routes each action to the ordered queue of its client and runs the
// queues concurrently. One worker goroutine owns each account; nothing else
// ever mutates it.
type Hub struct {
	proc *Processor
	log  zerolog.Logger

	handler OutcomeHandler

	mu      sync.Mutex
	workers map[account.ClientID]*worker
	closed  bool

	wg            sync.WaitGroup
	outcomes      chan Outcome
	collectorDone chan struct{}
}

type worker struct {
	client account.ClientID
	acct   *account.Account
	queue  chan Action
}

// NewHub starts a hub over the given store. handler may be nil; outcomes
// still reach the log either way.
func NewHub(store ledger.Store, log zerolog.Logger, handler OutcomeHandler) *Hub {
	h := &Hub{
		proc:          NewProcessor(store),
		log:           log.With().Str("run_id", uuid.NewString()).Logger(),
		handler:       handler,
		workers:       make(map[account.ClientID]*worker),
		outcomes:      make(chan Outcome, 4*queueCap),
		collectorDone: make(chan struct{}),
	}
	go h.collect()
	return h
}

// Submit routes one action to its client's queue, creating the worker on
// first reference. Per-client submission order is the processing order.
func (h *Hub) Submit(ctx context.Context, act Action) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	w, ok := h.workers[act.Client]
	if !ok {
		w = &worker{
			client: act.Client,
			acct:   account.New(),
			queue:  make(chan Action, queueCap),
		}
		h.workers[act.Client] = w
		h.wg.Add(1)
		go h.run(w)
	}
	h.mu.Unlock()

	select {
	case w.queue <- act:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("engine: submit: %w", ctx.Err())
	}
}

// run is one client's worker loop. Processing runs to queue exhaustion;
// there is no per-action timeout or cancellation.
func (h *Hub) run(w *worker) {
	defer h.wg.Done()
	for act := range w.queue {
		err := h.proc.Apply(context.Background(), w.acct, act)
		h.outcomes <- Outcome{Action: act, Err: err}
	}
}

// collect drains the single outcome channel, feeding the handler and the
// log. Rejections are expected traffic, logged at warn and never fatal.
func (h *Hub) collect() {
	defer close(h.collectorDone)
	for out := range h.outcomes {
		if h.handler != nil {
			h.handler(out)
		}
		evt := h.log.Debug()
		msg := "action applied"
		if out.Err != nil {
			evt = h.log.Warn().Err(out.Err)
			msg = "action rejected"
		}
		evt.Str("kind", string(out.Action.Kind)).
			Uint16("client", uint16(out.Action.Client)).
			Uint32("tx", uint32(out.Action.Tx)).
			Msg(msg)
	}
}

// Summarize closes every queue, waits for the workers to drain, and returns
// the final account snapshots sorted by client id. Callers must stop
// submitting before calling Summarize; the hub accepts no further
// submissions afterwards.
func (h *Hub) Summarize(ctx context.Context) ([]Snapshot, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrClosed
	}
	h.closed = true
	workers := make([]*worker, 0, len(h.workers))
	for _, w := range h.workers {
		close(w.queue)
		workers = append(workers, w)
	}
	h.mu.Unlock()

	// The outcome channel closes as soon as the workers drain, whether or
	// not this call is still waiting. A cancelled Summarize therefore
	// leaves no collector goroutine behind.
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	go func() {
		<-done
		close(h.outcomes)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, fmt.Errorf("engine: summarize: %w", ctx.Err())
	}

	<-h.collectorDone

	sort.Slice(workers, func(i, j int) bool { return workers[i].client < workers[j].client })
	snaps := make([]Snapshot, 0, len(workers))
	for _, w := range workers {
		snaps = append(snaps, Snapshot{
			Client:    w.client,
			Available: w.acct.Available(),
			Held:      w.acct.Held(),
			Total:     w.acct.Total(),
			Locked:    w.acct.Locked(),
		})
	}
	return snaps, nil
}
