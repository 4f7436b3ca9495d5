package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	n   int
	err error
}

func (f *fakeCounter) Count(ctx context.Context) (int, error) {
	return f.n, f.err
}

type fakeSession struct {
	mu       sync.Mutex
	statuses []string
	err      error
}

func (f *fakeSession) UpdateGameStatus(idle int, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.statuses = append(f.statuses, name)
	return nil
}

func (f *fakeSession) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

func TestUpdateSetsStatus(t *testing.T) {
	s := &fakeSession{}
	counter := &fakeCounter{n: 3}
	p := NewPresence(s, counter, nil)

	p.Update(context.Background())
	assert.Equal(t, []string{"Showing 3 clocks"}, s.seen())

	// unchanged count is not sent again
	p.Update(context.Background())
	assert.Len(t, s.seen(), 1)

	counter.n = 1
	p.Update(context.Background())
	assert.Equal(t, []string{"Showing 3 clocks", "Showing 1 clock"}, s.seen())
}

func TestUpdateWithoutCounterIsNoop(t *testing.T) {
	s := &fakeSession{}
	p := NewPresence(s, nil, nil)

	p.Update(context.Background())
	assert.Empty(t, s.seen())

	p.SetCounter(&fakeCounter{n: 0})
	p.Update(context.Background())
	assert.Equal(t, []string{"Showing 0 clocks"}, s.seen())
}

func TestUpdateFailuresAreContained(t *testing.T) {
	s := &fakeSession{}
	p := NewPresence(s, &fakeCounter{err: errors.New("db down")}, nil)
	p.Update(context.Background())
	assert.Empty(t, s.seen())

	s.err = errors.New("gateway closed")
	p.SetCounter(&fakeCounter{n: 2})
	p.Update(context.Background())

	// a failed status update is retried on the next notification
	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	p.Update(context.Background())
	assert.Equal(t, []string{"Showing 2 clocks"}, s.seen())
}

func TestNotifyUpdateRunsInBackground(t *testing.T) {
	s := &fakeSession{}
	p := NewPresence(s, &fakeCounter{n: 5}, nil)

	p.NotifyUpdate()
	require.Eventually(t, func() bool { return len(s.seen()) == 1 }, time.Second, 5*time.Millisecond)
}

// gatedCounter blocks its first Count until release is closed.
type gatedCounter struct {
	n       int
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedCounter) Count(ctx context.Context) (int, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return g.n, nil
}

func TestNotifyUpdateCoalescesBursts(t *testing.T) {
	s := &fakeSession{}
	counter := &gatedCounter{n: 5, entered: make(chan struct{}), release: make(chan struct{})}
	p := NewPresence(s, counter, nil)

	p.NotifyUpdate()
	<-counter.entered

	// all of these arrive while the first refresh is counting
	for i := 0; i < 50; i++ {
		p.NotifyUpdate()
	}
	close(counter.release)

	require.Eventually(t, func() bool { return counter.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return counter.calls.Load() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, []string{"Showing 5 clocks"}, s.seen())
}
