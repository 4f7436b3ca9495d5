package stats

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Counter reports how many clock roles are tracked.
type Counter interface {
	Count(ctx context.Context) (int, error)
}

// StatusSetter is the part of *discordgo.Session used to set the bot's status.
type StatusSetter interface {
	UpdateGameStatus(idle int, name string) error
}

// Presence keeps the bot's game status showing the number of tracked clocks.
type Presence struct {
	session StatusSetter
	counter Counter
	logger  *zap.Logger

	// pending holds at most one queued refresh
	pending chan struct{}

	mutex      sync.Mutex
	lastStatus string
}

// NewPresence creates the presence manager. counter may be nil and set later
// with SetCounter, since the database needs NotifyUpdate at construction.
func NewPresence(s StatusSetter, counter Counter, logger *zap.Logger) *Presence {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Presence{
		session: s,
		counter: counter,
		logger:  logger,
		pending: make(chan struct{}, 1),
	}
}

func (p *Presence) SetCounter(c Counter) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.counter = c
}

// NotifyUpdate is called whenever roles are added or removed. The status is
// refreshed in the background so callers never wait on Discord. A burst of
// notifications results in at most one refresh after the one in progress.
func (p *Presence) NotifyUpdate() {
	select {
	case p.pending <- struct{}{}:
		go p.refresh()
	default:
		// a queued refresh has not counted yet and will see this change
	}
}

func (p *Presence) refresh() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	<-p.pending
	p.update(context.Background())
}

// Update recounts the tracked roles and sets the status if it changed.
func (p *Presence) Update(ctx context.Context) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.update(ctx)
}

func (p *Presence) update(ctx context.Context) {
	if p.counter == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := p.counter.Count(ctx)
	if err != nil {
		p.logger.Warn("counting roles for status failed", zap.Error(err))
		return
	}

	status := formatStatus(n)
	if status == p.lastStatus {
		return
	}

	if err := p.session.UpdateGameStatus(0, status); err != nil {
		p.logger.Warn("updating status failed", zap.Error(err))
		return
	}
	p.lastStatus = status
}

func formatStatus(n int) string {
	if n == 1 {
		return "Showing 1 clock"
	}
	return fmt.Sprintf("Showing %d clocks", n)
}
