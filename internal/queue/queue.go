package queue

import (
	"context"
	"sync"
	"time"

	klog "github.com/Klingon-tech/klingnet-walletd/internal/log"
	"github.com/Klingon-tech/klingnet-walletd/pkg/types"
	"github.com/rs/zerolog"
)

// Bounds of the backoff used when the store rejects an in-progress write.
const (
	persistRetryMin = 250 * time.Millisecond
	persistRetryMax = 30 * time.Second
)

// entry is the mutable queue record behind an Action. Guarded by Queue.mu.
type entry struct {
	meta    Meta
	payload Payload
}

func (e *entry) action() Action {
	return Action{Meta: e.meta, Payload: e.payload}
}

// Queue is a deduplicated FIFO of actions with a single background worker.
// Every mutation of the entry table goes through mu, so the duplicate check
// and the insertion of a push are one atomic step.
type Queue struct {
	mu        sync.Mutex
	entries   map[types.Hash]*entry // hash -> tracked entry
	order     []*entry              // FIFO by Seq
	nextSeq   uint64
	inFlight  *entry
	listeners []func(Outcome)
	// Outcomes of actions restored as failed, delivered when the worker starts.
	interrupted []Outcome

	exec    Executor
	store   *Store // nil = memory only.
	metrics *Metrics
	now     func() time.Time
	logger  zerolog.Logger

	wake     chan struct{}
	retryMin time.Duration
	retryMax time.Duration
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	running  bool
}

// New creates a queue that hands actions to exec. When store is non-nil,
// previously persisted actions are restored: queued actions keep their
// order, and actions that were in progress when the process stopped are
// restored as failed since they may already have been submitted.
func New(exec Executor, store *Store) (*Queue, error) {
	if exec == nil {
		return nil, ErrNoExecutor
	}
	q := &Queue{
		entries: make(map[types.Hash]*entry),
		nextSeq: 1,
		exec:    exec,
		store:   store,
		now:     time.Now,
		logger:  klog.WithComponent("queue"),
		wake:    make(chan struct{}, 1),

		retryMin: persistRetryMin,
		retryMax: persistRetryMax,
	}
	if store != nil {
		if err := q.restore(); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// SetMetrics enables Prometheus instrumentation.
func (q *Queue) SetMetrics(m *Metrics) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.metrics = m
	m.setLength(len(q.order))
}

func (q *Queue) restore() error {
	actions, err := q.store.Load()
	if err != nil {
		return err
	}
	for _, a := range actions {
		if a.Meta.Seq >= q.nextSeq {
			q.nextSeq = a.Meta.Seq + 1
		}
		switch a.Meta.State {
		case StateDone:
			if err := q.store.Delete(a.Meta.Seq); err != nil {
				return err
			}
			continue
		case StateInProgress:
			a.Meta.State = StateFailed
			a.Meta.UpdatedAt = q.now()
			if err := q.store.Put(a); err != nil {
				return err
			}
			q.logger.Warn().
				Str("action", a.Meta.Hash.String()).
				Msg("Action was in progress at shutdown, marked failed")
			q.interrupted = append(q.interrupted, Outcome{Meta: a.Meta, Err: ErrInterrupted})
		}
		if old, dup := q.entries[a.Meta.Hash]; dup {
			if err := q.store.Delete(old.meta.Seq); err != nil {
				return err
			}
			q.unlinkLocked(old)
		}
		e := &entry{meta: a.Meta, payload: a.Payload}
		q.entries[a.Meta.Hash] = e
		q.order = append(q.order, e)
	}
	if len(q.order) > 0 {
		q.logger.Info().Int("actions", len(q.order)).Msg("Restored action queue")
	}
	return nil
}

// Push enqueues a payload and returns its queue metadata. If an action with
// the same content hash is already queued or in progress, its current
// metadata is returned and nothing is inserted. A failed action with the
// same hash is replaced by a fresh entry at the tail.
func (q *Queue) Push(ctx context.Context, p Payload) (Meta, error) {
	if err := ctx.Err(); err != nil {
		return Meta{}, err
	}
	if err := checkPayload(p); err != nil {
		return Meta{}, err
	}
	hash, err := ContentHash(p)
	if err != nil {
		return Meta{}, err
	}

	q.mu.Lock()
	old, exists := q.entries[hash]
	if exists && old.meta.State.Active() {
		meta := old.meta
		q.mu.Unlock()
		q.metrics.count(meta, outcomeDuplicate)
		q.logger.Debug().Str("action", hash.String()).Str("state", string(meta.State)).Msg("Duplicate push")
		return meta, nil
	}

	now := q.now()
	e := &entry{
		meta: Meta{
			Hash:      hash,
			Type:      p.ActionType(),
			Seq:       q.nextSeq,
			State:     StateQueued,
			CreatedAt: now,
			UpdatedAt: now,
		},
		payload: p,
	}
	if q.store != nil {
		var err error
		if exists {
			err = q.store.Replace(old.meta.Seq, e.action())
		} else {
			err = q.store.Put(e.action())
		}
		if err != nil {
			q.mu.Unlock()
			return Meta{}, err
		}
	}
	if exists {
		q.unlinkLocked(old)
	}
	q.nextSeq++
	q.entries[hash] = e
	q.order = append(q.order, e)
	meta := e.meta
	q.metrics.setLength(len(q.order))
	q.mu.Unlock()

	q.metrics.count(meta, outcomeQueued)
	q.logger.Info().
		Str("action", hash.String()).
		Str("type", string(meta.Type)).
		Uint64("seq", meta.Seq).
		Bool("replaced_failed", exists).
		Msg("Action queued")
	q.signal()
	return meta, nil
}

// Remove stops tracking the action with the given hash, whatever its state.
// Removing an unknown hash is a no-op. If the action is in flight, the
// execution is not cancelled but its result is discarded when it returns.
func (q *Queue) Remove(ctx context.Context, hash types.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	e, ok := q.entries[hash]
	if !ok {
		q.mu.Unlock()
		return nil
	}
	if q.store != nil {
		if err := q.store.Delete(e.meta.Seq); err != nil {
			q.mu.Unlock()
			return err
		}
	}
	q.unlinkLocked(e)
	meta := e.meta
	inFlight := e == q.inFlight
	q.metrics.setLength(len(q.order))
	q.mu.Unlock()

	q.metrics.count(meta, outcomeRemoved)
	q.logger.Info().
		Str("action", hash.String()).
		Str("state", string(meta.State)).
		Bool("in_flight", inFlight).
		Msg("Action removed")
	return nil
}

// unlinkLocked drops e from the table and the FIFO order. Caller holds mu.
func (q *Queue) unlinkLocked(e *entry) {
	if q.entries[e.meta.Hash] == e {
		delete(q.entries, e.meta.Hash)
	}
	for i, o := range q.order {
		if o == e {
			q.order = append(q.order[:i], q.order[i+1:]...)
			break
		}
	}
}

// Get returns the metadata of a tracked action.
func (q *Queue) Get(hash types.Hash) (Meta, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.entries[hash]
	if !ok {
		return Meta{}, false
	}
	return e.meta, true
}

// Len returns the number of tracked actions in any state.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// List returns a FIFO snapshot of all tracked actions.
func (q *Queue) List() []Meta {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Meta, len(q.order))
	for i, e := range q.order {
		out[i] = e.meta
	}
	return out
}

// InFlight returns the action currently being executed, if any.
func (q *Queue) InFlight() (Meta, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight == nil {
		return Meta{}, false
	}
	return q.inFlight.meta, true
}

// Subscribe registers fn to receive the outcome of every finished action.
// Listeners run on the worker goroutine and must not block.
func (q *Queue) Subscribe(fn func(Outcome)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listeners = append(q.listeners, fn)
}

// Start launches the worker. The worker exits when ctx is cancelled or Stop
// is called.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return ErrAlreadyStarted
	}
	q.running = true
	ctx, q.cancel = context.WithCancel(ctx)
	q.mu.Unlock()

	q.wg.Add(1)
	go q.run(ctx)
	q.signal()
	return nil
}

// Stop cancels the worker and waits for it to exit. An execution in flight
// sees its context cancelled.
func (q *Queue) Stop() {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel = nil
	q.running = false
	q.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	q.wg.Wait()
}

// signal wakes the worker without blocking.
func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	q.reportInterrupted()

	var retry <-chan time.Time
	backoff := q.retryMin
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-retry:
		}
		retry = nil
		for ctx.Err() == nil {
			e, a, err := q.claimNext()
			if err != nil {
				q.logger.Warn().Err(err).Dur("retry_in", backoff).Msg("Cannot claim next action, retrying")
				retry = time.After(backoff)
				backoff = min(backoff*2, q.retryMax)
				break
			}
			if e == nil {
				break
			}
			backoff = q.retryMin
			q.process(ctx, e, a)
		}
	}
}

// reportInterrupted delivers the failure outcomes of actions restored from
// the in-progress state, so listeners learn about them once.
func (q *Queue) reportInterrupted() {
	q.mu.Lock()
	pending := q.interrupted
	q.interrupted = nil
	listeners := append([]func(Outcome){}, q.listeners...)
	m := q.metrics
	var outcomes []Outcome
	for _, o := range pending {
		// Skip actions removed or re-pushed before the worker started.
		if e, ok := q.entries[o.Meta.Hash]; ok && e.meta.Seq == o.Meta.Seq && e.meta.State == StateFailed {
			outcomes = append(outcomes, o)
		}
	}
	q.mu.Unlock()

	for _, o := range outcomes {
		m.count(o.Meta, outcomeFailed)
		for _, fn := range listeners {
			fn(o)
		}
	}
}

// claimNext marks the first queued action in progress and returns it. It
// returns a nil entry when nothing is runnable, and an error when the
// in-progress state could not be persisted; the action then stays queued.
func (q *Queue) claimNext() (*entry, Action, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.inFlight != nil {
		return nil, Action{}, nil
	}
	for _, e := range q.order {
		if e.meta.State != StateQueued {
			continue
		}
		prev := e.meta
		e.meta.State = StateInProgress
		e.meta.UpdatedAt = q.now()
		if q.store != nil {
			// An action is never executed unless its in-progress state is durable.
			if err := q.store.Put(e.action()); err != nil {
				e.meta = prev
				return nil, Action{}, err
			}
		}
		q.inFlight = e
		return e, e.action(), nil
	}
	return nil, Action{}, nil
}

func (q *Queue) process(ctx context.Context, e *entry, a Action) {
	logger := q.logger.With().Str("action", a.Meta.Hash.String()).Str("type", string(a.Meta.Type)).Logger()
	logger.Debug().Uint64("seq", a.Meta.Seq).Msg("Executing action")

	start := time.Now()
	ref, err := q.exec.Execute(ctx, a)
	q.metrics.observe(time.Since(start).Seconds())

	outcome, listeners, ok := q.finish(e, ref, err)
	if !ok {
		logger.Info().Msg("Action removed while in flight, result discarded")
		return
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Action failed")
	} else {
		logger.Info().Str("ref", ref).Msg("Action done")
	}
	for _, fn := range listeners {
		fn(outcome)
	}
}

// finish records the execution result. It reports false when the entry was
// removed (or replaced) while in flight, in which case the result is dropped.
func (q *Queue) finish(e *entry, ref string, execErr error) (Outcome, []func(Outcome), bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight = nil

	if q.entries[e.meta.Hash] != e {
		q.metrics.count(e.meta, outcomeDiscarded)
		return Outcome{}, nil, false
	}

	e.meta.UpdatedAt = q.now()
	listeners := append([]func(Outcome){}, q.listeners...)

	if execErr != nil {
		e.meta.State = StateFailed
		if q.store != nil {
			if err := q.store.Put(e.action()); err != nil {
				q.logger.Error().Err(err).Str("action", e.meta.Hash.String()).Msg("Failed to persist action state")
			}
		}
		q.metrics.count(e.meta, outcomeFailed)
		return Outcome{Meta: e.meta, Ref: ref, Err: execErr}, listeners, true
	}

	e.meta.State = StateDone
	if q.store != nil {
		if err := q.store.Delete(e.meta.Seq); err != nil {
			q.logger.Error().Err(err).Str("action", e.meta.Hash.String()).Msg("Failed to delete finished action")
		}
	}
	q.unlinkLocked(e)
	q.metrics.count(e.meta, outcomeDone)
	q.metrics.setLength(len(q.order))
	return Outcome{Meta: e.meta, Ref: ref}, listeners, true
}
