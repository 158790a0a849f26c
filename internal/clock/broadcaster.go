package clock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quicmoq/moqt"
)

// target is one session's clock queue plus the Post hook of its event loop.
type target struct {
	post    func(func())
	queue   *moqt.OutgoingQueue
	started bool
}

// Broadcaster emits the clock track to every attached session. Sessions run
// independent event loops, so each one owns a separate queue and every tick
// is posted onto each loop rather than shared across them.
type Broadcaster struct {
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	targets map[string]*target
}

func NewBroadcaster(interval time.Duration, logger *slog.Logger) *Broadcaster {
	if interval <= 0 {
		interval = time.Second
	}
	return &Broadcaster{
		interval: interval,
		logger:   logger,
		targets:  make(map[string]*target),
	}
}

// Attach registers a session's queue. post must schedule a task onto that
// session's event loop.
func (b *Broadcaster) Attach(id string, post func(func()), queue *moqt.OutgoingQueue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets[id] = &target{post: post, queue: queue}
}

func (b *Broadcaster) Detach(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.targets, id)
}

// Run emits one object per tick until ctx is canceled. A new group starts at
// the top of each minute; a freshly attached queue starts its first group on
// the next tick regardless.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			b.tick(now)
		}
	}
}

func (b *Broadcaster) tick(now time.Time) {
	payload := []byte(now.UTC().Format(time.RFC3339))
	key := now.Second() == 0

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.targets {
		first := !t.started
		t.started = true
		t.post(func() {
			if err := t.queue.AddObject(payload, key || first); err != nil {
				b.logger.Warn("failed to publish clock object",
					"session_id", id,
					"error", err)
			}
		})
	}
}
