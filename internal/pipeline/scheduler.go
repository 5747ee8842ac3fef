package pipeline

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/tbourn/tweet-anchoring/internal/cursor"
	"github.com/tbourn/tweet-anchoring/internal/domain"
	"github.com/tbourn/tweet-anchoring/internal/observability"
)

// CycleRunner runs one account-cycle and always returns a terminal result.
type CycleRunner interface {
	Run(ctx context.Context, account string) domain.CycleResult
}

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	// Interval is the pause between the end of a tick and the start of the
	// next one. Default: 10s.
	Interval time.Duration
	// CycleTimeout bounds one account-cycle. Zero means no bound.
	CycleTimeout time.Duration
	// MaxParallel bounds the cycles running at once within a tick. Zero
	// runs every account at once.
	MaxParallel int
}

// AccountStatus is a snapshot of one tracked account.
type AccountStatus struct {
	Account  string              `json:"account"`
	Cursor   string              `json:"cursor,omitempty"`
	InFlight bool                `json:"in_flight"`
	Last     *domain.CycleResult `json:"-"`
}

// Scheduler drives one cycle per tracked account per tick. At most one
// cycle per account runs at any time; an account whose previous cycle is
// still in flight is skipped.
type Scheduler struct {
	runner   CycleRunner
	accounts []string
	cursors  cursor.Store
	journal  Journal
	config   SchedulerConfig

	mu       sync.Mutex
	inFlight map[string]bool
	last     map[string]domain.CycleResult
}

// NewScheduler creates a Scheduler. cursors and journal may be nil.
func NewScheduler(runner CycleRunner, accounts []string, cursors cursor.Store, journal Journal, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	return &Scheduler{
		runner:   runner,
		accounts: slices.Clone(accounts),
		cursors:  cursors,
		journal:  journal,
		config:   cfg,
		inFlight: make(map[string]bool, len(accounts)),
		last:     make(map[string]domain.CycleResult, len(accounts)),
	}
}

// Accounts returns the tracked accounts.
func (s *Scheduler) Accounts() []string { return slices.Clone(s.accounts) }

// Run ticks immediately, then again Interval after each tick completes.
// It blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.Tick(ctx)
			timer.Reset(s.config.Interval)
		}
	}
}

// Tick runs one cycle for every tracked account and waits until all of them
// reach a terminal state. Results are in account order.
func (s *Scheduler) Tick(ctx context.Context) []domain.CycleResult {
	start := time.Now()
	results := make([]domain.CycleResult, len(s.accounts))

	var g errgroup.Group
	if s.config.MaxParallel > 0 {
		g.SetLimit(s.config.MaxParallel)
	}
	for i, account := range s.accounts {
		if !s.acquire(account) {
			results[i] = s.skipped(account)
			continue
		}
		g.Go(func() error {
			defer s.release(account)
			results[i] = s.runCycle(ctx, account)
			return nil
		})
	}
	_ = g.Wait()

	counts := make(map[domain.CycleState]int, 3)
	for _, r := range results {
		counts[r.State]++
	}
	log.Info().
		Int("accounts", len(results)).
		Int("done", counts[domain.StateDone]).
		Int("failed", counts[domain.StateFailed]).
		Int("skipped", counts[domain.StateSkipped]).
		Dur("duration", time.Since(start)).
		Msg("tick complete")
	return results
}

// Trigger runs one cycle for account right away and returns its result. The
// cycle is detached from ctx cancellation and bounded by the cycle timeout, so
// a caller that goes away does not abort it half-way.
func (s *Scheduler) Trigger(ctx context.Context, account string) (domain.CycleResult, error) {
	if !slices.Contains(s.accounts, account) {
		return domain.CycleResult{}, fmt.Errorf("%w: %s", ErrUnknownAccount, account)
	}
	if !s.acquire(account) {
		return domain.CycleResult{}, fmt.Errorf("%w: %s", ErrCycleInFlight, account)
	}
	defer s.release(account)
	return s.runCycle(context.WithoutCancel(ctx), account), nil
}

// Status returns a snapshot of every tracked account, in account order.
func (s *Scheduler) Status(ctx context.Context) []AccountStatus {
	out := make([]AccountStatus, len(s.accounts))
	for i, a := range s.accounts {
		out[i].Account = a
		if s.cursors != nil {
			if c, ok, err := s.cursors.Get(ctx, a); err != nil {
				log.Warn().Err(err).Str("account", a).Msg("read cursor for status")
			} else if ok {
				out[i].Cursor = c
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.accounts {
		out[i].InFlight = s.inFlight[a]
		if r, ok := s.last[a]; ok {
			out[i].Last = &r
		}
	}
	return out
}

func (s *Scheduler) acquire(account string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[account] {
		return false
	}
	s.inFlight[account] = true
	return true
}

func (s *Scheduler) release(account string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, account)
}

func (s *Scheduler) skipped(account string) domain.CycleResult {
	now := time.Now()
	r := domain.CycleResult{
		RunID:      uuid.NewString(),
		Account:    account,
		State:      domain.StateSkipped,
		Reached:    domain.StatePending,
		StartedAt:  now,
		FinishedAt: now,
	}
	observability.ObserveCycle(r)
	log.Warn().Str("account", account).Msg("previous cycle still in flight, skipping")
	return r
}

// runCycle runs the cycle under the cycle timeout, records its result and
// turns a panic of the runner into a failed result.
func (s *Scheduler) runCycle(ctx context.Context, account string) (res domain.CycleResult) {
	if s.config.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.CycleTimeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			now := time.Now()
			res = domain.CycleResult{
				RunID:      uuid.NewString(),
				Account:    account,
				State:      domain.StateFailed,
				Reached:    domain.StatePending,
				Err:        fmt.Errorf("panic: %v", p),
				StartedAt:  now,
				FinishedAt: now,
			}
			log.Error().Err(res.Err).Str("account", account).Msg("cycle panicked")
		}
		s.record(ctx, res)
	}()

	return s.runner.Run(ctx, account)
}

func (s *Scheduler) record(ctx context.Context, res domain.CycleResult) {
	s.mu.Lock()
	s.last[res.Account] = res
	s.mu.Unlock()

	if s.journal == nil {
		return
	}
	jctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.journal.RecordCycle(jctx, res); err != nil {
		log.Warn().Err(err).Str("account", res.Account).Str("run_id", res.RunID).Msg("journal cycle")
	}
}
