package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"clockroles/clock"
	"clockroles/database"
	"clockroles/gateway"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registry is the storage the scheduler reads from.
type Registry interface {
	ListAll(ctx context.Context) ([]database.TrackedRole, error)
	RemoveRole(ctx context.Context, roleID int64) error
}

// Renamer updates role names on Discord.
type Renamer interface {
	RenameRole(ctx context.Context, guildID, roleID int64, name string) error
}

// State reports whether a sync pass is in progress.
type State int32

const (
	Idle State = iota
	Syncing
)

func (s State) String() string {
	if s == Syncing {
		return "syncing"
	}
	return "idle"
}

// Options tune the sync loop. Zero values fall back to a 10s interval,
// a 5s call timeout and one worker.
type Options struct {
	Interval    time.Duration
	CallTimeout time.Duration
	Concurrency int
}

func (o Options) withDefaults() Options {
	if o.Interval <= 0 {
		o.Interval = 10 * time.Second
	}
	if o.CallTimeout <= 0 {
		o.CallTimeout = 5 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// PassResult summarises one sync pass.
type PassResult struct {
	ID      string
	Total   int
	Renamed int
	Failed  int
	Pruned  int
	Err     error // set when the snapshot itself could not be read
}

// Scheduler renames every tracked role on a fixed interval.
type Scheduler struct {
	registry Registry
	renamer  Renamer
	clock    clockwork.Clock
	opts     Options
	logger   *zap.Logger

	state  atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a stopped scheduler. A nil clock means the real clock.
func New(registry Registry, renamer Renamer, clk clockwork.Clock, opts Options, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		registry: registry,
		renamer:  renamer,
		clock:    clk,
		opts:     opts.withDefaults(),
		logger:   logger,
	}
}

// State is safe to call from any goroutine.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Start runs sync passes in the background until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	ticker := s.clock.NewTicker(s.opts.Interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()

		for {
			select {
			case <-ticker.Chan():
				s.SyncOnce(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("scheduler started", zap.Duration("interval", s.opts.Interval))
}

// Stop ends the loop and waits for a running pass to finish.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// SyncOnce performs one pass: it reads the snapshot, then renders and
// renames every role. A failing role never stops the others.
func (s *Scheduler) SyncOnce(ctx context.Context) PassResult {
	s.state.Store(int32(Syncing))
	defer s.state.Store(int32(Idle))

	res := PassResult{ID: uuid.NewString()}
	log := s.logger.With(zap.String("pass_id", res.ID))

	// The registry call returns before any Discord request is made, so
	// command handlers are never blocked behind API latency.
	roles, err := s.registry.ListAll(ctx)
	if err != nil {
		log.Error("sync pass: reading roles failed", zap.Error(err))
		res.Err = err
		return res
	}
	res.Total = len(roles)

	now := s.clock.Now()
	var renamed, failed, pruned atomic.Int32

	g := new(errgroup.Group)
	g.SetLimit(s.opts.Concurrency)
	for _, role := range roles {
		role := role
		g.Go(func() error {
			switch s.syncRole(ctx, log, role, now) {
			case outcomeRenamed:
				renamed.Add(1)
			case outcomePruned:
				pruned.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Renamed = int(renamed.Load())
	res.Failed = int(failed.Load())
	res.Pruned = int(pruned.Load())

	if res.Failed > 0 || res.Pruned > 0 {
		log.Warn("sync pass finished with problems",
			zap.Int("total", res.Total),
			zap.Int("renamed", res.Renamed),
			zap.Int("failed", res.Failed),
			zap.Int("pruned", res.Pruned))
	} else {
		log.Debug("sync pass finished", zap.Int("renamed", res.Renamed))
	}
	return res
}

type outcome int

const (
	outcomeRenamed outcome = iota
	outcomeFailed
	outcomePruned
)

func (s *Scheduler) syncRole(ctx context.Context, log *zap.Logger, role database.TrackedRole, now time.Time) outcome {
	log = log.With(
		zap.Int64("guild_id", role.GuildID),
		zap.Int64("role_id", role.RoleID),
		zap.String("timezone", role.Timezone))

	label, err := clock.RenderName(role.Timezone, now)
	if err != nil {
		log.Error("cannot render role label", zap.Error(err))
		return outcomeFailed
	}

	callCtx, cancel := context.WithTimeout(ctx, s.opts.CallTimeout)
	defer cancel()

	err = s.renamer.RenameRole(callCtx, role.GuildID, role.RoleID, label)
	switch {
	case err == nil:
		return outcomeRenamed
	case errors.Is(err, gateway.ErrNotFound):
		// The role was deleted outside the bot; stop tracking it.
		if rmErr := s.registry.RemoveRole(ctx, role.RoleID); rmErr != nil {
			log.Error("pruning vanished role failed", zap.Error(rmErr))
			return outcomeFailed
		}
		log.Warn("role vanished from discord, pruned", zap.Error(err))
		return outcomePruned
	default:
		log.Warn("rename failed, retrying next tick", zap.Error(err))
		return outcomeFailed
	}
}
