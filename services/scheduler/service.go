// Package scheduler runs the periodic keep-warm tasks: cache-first reads are
// refreshed ahead of their TTL so interactive callers rarely pay for a fetch.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

const defaultCheckInterval = 5 * time.Minute

// Task is one recurring unit of work. Run is expected to be cheap when the
// underlying cache is still fresh.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Service executes tasks on their intervals. A task still running when its
// next slot arrives is skipped, never stacked.
type Service struct {
	checkInterval time.Duration
	tasks         []Task

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	taskMu      sync.Mutex
	taskRunning map[string]bool
	lastRun     map[string]time.Time
}

// NewService creates a scheduler over the given tasks.
func NewService(tasks []Task) *Service {
	return &Service{
		checkInterval: defaultCheckInterval,
		tasks:         tasks,
		taskRunning:   make(map[string]bool),
		lastRun:       make(map[string]time.Time),
	}
}

// Start begins the background loop. Tasks are checked immediately and then on
// every tick.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	s.wg.Add(1)
	go s.loop(ctx)
	log.Printf("[scheduler] started with %d tasks", len(s.tasks))
}

// Stop cancels the loop and waits for in-flight tasks, giving up when the
// context expires.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("[scheduler] stopped")
	case <-ctx.Done():
		log.Println("[scheduler] stopped with tasks still running")
	}
}

func (s *Service) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	s.runDue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// runDue starts every due task in its own goroutine so a slow refresh never
// delays the others.
func (s *Service) runDue(ctx context.Context) {
	for _, task := range s.tasks {
		if !s.claim(task) {
			continue
		}
		s.wg.Add(1)
		go func(t Task) {
			defer s.wg.Done()
			defer s.release(t.Name)
			if err := t.Run(ctx); err != nil {
				log.Printf("[scheduler] task %s failed: %v", t.Name, err)
			}
		}(task)
	}
}

// claim marks a task as running when it is due and not already in flight.
func (s *Service) claim(task Task) bool {
	s.taskMu.Lock()
	defer s.taskMu.Unlock()
	if s.taskRunning[task.Name] {
		return false
	}
	if last, ok := s.lastRun[task.Name]; ok && time.Since(last) < task.Every {
		return false
	}
	s.taskRunning[task.Name] = true
	s.lastRun[task.Name] = time.Now()
	return true
}

func (s *Service) release(name string) {
	s.taskMu.Lock()
	delete(s.taskRunning, name)
	s.taskMu.Unlock()
}
