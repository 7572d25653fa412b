package bot

import (
	"context"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edgard/chatlogger/internal/bot/tasks"
	"github.com/edgard/chatlogger/internal/config"
	"github.com/edgard/chatlogger/internal/logger"
)

type blockingListener struct {
	started atomic.Bool
}

func (l *blockingListener) Start(ctx context.Context) {
	l.started.Store(true)
	<-ctx.Done()
}

type returningListener struct{}

func (returningListener) Start(context.Context) {}

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) *Scheduler {
	t.Helper()
	s, err := NewScheduler(logger.Discard(), cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s
}

func TestSchedulerSchedulesEnabledTasks(t *testing.T) {
	noop := func(context.Context) error { return nil }
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"enabled":   {Enabled: true, Schedule: "0 0 3 * * *"},
		"disabled":  {Enabled: false, Schedule: "0 0 3 * * *"},
		"unknown":   {Enabled: true, Schedule: "0 0 3 * * *"},
		"malformed": {Enabled: true, Schedule: "not a cron"},
	}}
	s := newTestScheduler(t, cfg, map[string]tasks.ScheduledTaskFunc{
		"enabled":   noop,
		"disabled":  noop,
		"malformed": noop,
	})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Error("second Start succeeded")
	}

	jobs := s.Jobs()
	sort.Strings(jobs)
	if len(jobs) != 1 || jobs[0] != "enabled" {
		t.Errorf("jobs = %v, want [enabled]", jobs)
	}

	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("second Stop: %v", err)
	}
}

func TestSchedulerRunsTask(t *testing.T) {
	ran := make(chan struct{}, 1)
	s := newTestScheduler(t,
		&config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
			tasks.SQLMaintenance: {Enabled: true, Schedule: "* * * * * *"},
		}},
		map[string]tasks.ScheduledTaskFunc{
			tasks.SQLMaintenance: func(ctx context.Context) error {
				select {
				case ran <- struct{}{}:
				default:
				}
				return nil
			},
		})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	listener := &blockingListener{}
	b := NewBot(logger.Discard(), listener, newTestScheduler(t, nil, nil), nil, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !listener.started.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsWhenListenerStops(t *testing.T) {
	b := NewBot(logger.Discard(), returningListener{}, newTestScheduler(t, nil, nil), nil, "")

	if err := b.Run(context.Background()); err == nil {
		t.Error("Run = nil, want error for unexpected listener exit")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	p := PolicyFromConfig(config.FilterConfig{
		GroupWhitelist:     []string{"1", "2"},
		GroupBlacklist:     []string{"2"},
		IncludeBotMessages: true,
		SkipEmptyMessages:  true,
	})

	if !p.Allows("1") || !p.Allows("2") || p.Allows("3") {
		t.Errorf("unexpected filter decisions for %v / %v", p.Whitelist(), p.Blacklist())
	}
	if !p.IncludeBotMessages() || !p.SkipEmptyMessages() {
		t.Error("flags not carried over")
	}
}
