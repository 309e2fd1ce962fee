package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"EarningsSentinel/internal/cache"
	"EarningsSentinel/internal/collector"
	"EarningsSentinel/internal/model"
	"EarningsSentinel/internal/notifier"

	"github.com/robfig/cron/v3"
)

const sendRetries = 3

// ErrStopped is returned for work requested after Stop.
var ErrStopped = errors.New("scheduler stopped")

// Scheduler manages the prefetch and digest cron tasks and answers chat commands.
type Scheduler struct {
	Cron         *cron.Cron
	Collector    *collector.Collector
	Notifier     notifier.Sender
	PrefetchDays int
	Ctx          context.Context

	// Now returns the current time; today's date is taken from it.
	Now func() time.Time

	// collectMu keeps cron jobs and commands from fetching the same dates
	// twice, and lets Stop wait for an in-flight collect.
	collectMu sync.Mutex
	stopped   bool
}

// NewScheduler creates a new Scheduler. The collector's cache is wrapped so
// cron goroutines and command polling can share it.
func NewScheduler(ctx context.Context, col *collector.Collector, sender notifier.Sender, prefetchDays int) *Scheduler {
	shared := &collector.Collector{Fetcher: col.Fetcher}
	if col.Cache != nil {
		shared.Cache = cache.Synchronized(col.Cache)
	}
	return &Scheduler{
		Cron:         cron.New(cron.WithSeconds()),
		Collector:    shared,
		Notifier:     sender,
		PrefetchDays: prefetchDays,
		Ctx:          ctx,
		Now:          time.Now,
	}
}

// RegisterAll registers the prefetch and digest tasks.
func (s *Scheduler) RegisterAll(prefetchCron, digestCron string) error {
	if _, err := s.Cron.AddFunc(prefetchCron, s.prefetchTask); err != nil {
		return fmt.Errorf("register prefetch task: %w", err)
	}
	if _, err := s.Cron.AddFunc(digestCron, s.digestTask); err != nil {
		return fmt.Errorf("register digest task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler and waits for running jobs, including
// prefetches and commands started outside the cron. Later collects fail
// with ErrStopped, so the cache can be closed once Stop returns.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.collectMu.Lock()
	s.stopped = true
	s.collectMu.Unlock()
	log.Println("[INFO] scheduler stopped")
}

// RunPrefetchNow executes the prefetch task immediately.
func (s *Scheduler) RunPrefetchNow() {
	s.prefetchTask()
}

func (s *Scheduler) today() time.Time {
	return model.DateOf(s.Now())
}

func (s *Scheduler) collect(start, end time.Time) ([]model.Announcement, error) {
	s.collectMu.Lock()
	defer s.collectMu.Unlock()
	if s.stopped {
		return nil, ErrStopped
	}
	return s.Collector.Collect(s.Ctx, start, end)
}

func (s *Scheduler) prefetchTask() {
	start := s.today()
	end := start.AddDate(0, 0, s.PrefetchDays)
	log.Printf("[INFO] running prefetch %s → %s", model.DateKey(start), model.DateKey(end))

	anns, err := s.collect(start, end)
	if err != nil {
		log.Printf("[ERROR] prefetch: %v", err)
		return
	}
	log.Printf("[INFO] prefetch complete: %d announcements", len(anns))
}

func (s *Scheduler) digestTask() {
	day := s.today()
	log.Printf("[INFO] running digest for %s", model.DateKey(day))

	anns, err := s.collect(day, day)
	if err != nil {
		log.Printf("[ERROR] digest collect: %v", err)
		s.trySend(notifier.FormatError("Earnings digest", err))
		return
	}
	s.trySend(notifier.FormatDigest(day, anns))
}

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(_ context.Context, command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return notifier.FormatHelp()
	}
	// Group chats address commands as /cmd@botname.
	name, _, _ := strings.Cut(fields[0], "@")

	today := s.today()
	var start, end time.Time
	switch name {
	case "/today":
		start, end = today, today
	case "/tomorrow":
		start = today.AddDate(0, 0, 1)
		end = start
	case "/week":
		start, end = today, today.AddDate(0, 0, 6)
	case "/date":
		if len(fields) < 2 {
			return "Usage: /date YYYY-MM-DD"
		}
		d, err := model.ParseDate(fields[1])
		if err != nil {
			return notifier.FormatError("Lookup", err)
		}
		start, end = d, d
	default:
		return notifier.FormatHelp()
	}

	anns, err := s.collect(start, end)
	if err != nil {
		log.Printf("[ERROR] command %s: %v", name, err)
		return notifier.FormatError("Lookup", err)
	}
	return notifier.FormatCalendar(start, end, anns)
}

func (s *Scheduler) trySend(text string) {
	if err := s.Notifier.SendWithRetry(s.Ctx, text, sendRetries); err != nil {
		log.Printf("[ERROR] send notification: %v", err)
	}
}
