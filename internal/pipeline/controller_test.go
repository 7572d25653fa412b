package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/edgard/chatlogger/internal/database"
	apperrors "github.com/edgard/chatlogger/internal/errors"
	"github.com/edgard/chatlogger/internal/event"
	"github.com/edgard/chatlogger/internal/filter"
	"github.com/edgard/chatlogger/internal/metrics"
)

type fakeGateway struct {
	mu        sync.Mutex
	initErr   error
	failOn    map[int]bool
	calls     int
	records   []database.ChatRecord
	started   bool
	stopped   bool
	panicOnce bool
}

func (f *fakeGateway) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return f.initErr
	}
	f.started = true
	return nil
}

func (f *fakeGateway) Write(_ context.Context, rec *database.ChatRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.panicOnce {
		f.panicOnce = false
		panic("storage exploded")
	}
	if f.failOn[f.calls] {
		return apperrors.NewWriteError(rec.GroupID, rec.UserID, "failed to save chat record", errors.New("disk full"))
	}
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeGateway) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeGateway) saved() []database.ChatRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.ChatRecord(nil), f.records...)
}

func groupMessage(group, user, text string) event.Event {
	return event.Event{
		GroupID:    group,
		SenderID:   user,
		SenderName: "user-" + user,
		Content:    event.FlatText(text),
		OccurredAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestControllerFailureIsolation(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{failOn: map[int]bool{2: true}}
	c := New(Deps{Gateway: gw})
	ctx := context.Background()

	c.OnGroupMessage(ctx, groupMessage("g", "1", "first"))
	c.OnGroupMessage(ctx, groupMessage("g", "2", "fails"))
	c.OnGroupMessage(ctx, groupMessage("g", "3", "third"))

	got := gw.saved()
	if len(got) != 2 {
		t.Fatalf("saved %d records, want 2", len(got))
	}
	if got[0].Message != "first" || got[1].Message != "third" {
		t.Errorf("saved messages = %q, %q", got[0].Message, got[1].Message)
	}
}

func TestControllerRecoversPanics(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{panicOnce: true}
	c := New(Deps{Gateway: gw})

	c.OnGroupMessage(context.Background(), groupMessage("g", "1", "boom"))
	c.OnGroupMessage(context.Background(), groupMessage("g", "1", "after"))

	if got := gw.saved(); len(got) != 1 || got[0].Message != "after" {
		t.Errorf("saved = %+v, want only the message after the panic", got)
	}
}

func TestControllerRecordShape(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	c := New(Deps{Gateway: gw})

	c.OnGroupMessage(context.Background(), event.Event{
		GroupID:  "100",
		SenderID: "7",
		Content:  event.Segments{{Type: event.SegmentPlain, Text: "hi "}, {Type: event.SegmentPlain, Text: "all"}},
	})

	got := gw.saved()
	if len(got) != 1 {
		t.Fatalf("saved %d records, want 1", len(got))
	}
	rec := got[0]
	if rec.GroupID != "100" || rec.UserID != "7" || rec.Message != "hi all" || rec.IsBotMessage {
		t.Errorf("record = %+v", rec)
	}
	if rec.Nickname.Valid {
		t.Errorf("Nickname = %+v, want NULL", rec.Nickname)
	}
	if rec.Timestamp.IsZero() {
		t.Error("Timestamp not set")
	}
}

func TestControllerDropsEventsWithoutGroup(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	m := metrics.New()
	c := New(Deps{Gateway: gw, Metrics: m})

	c.OnGroupMessage(context.Background(), groupMessage("", "1", "private"))
	c.OnBotResponse(context.Background(), event.Event{}, "Re: ", "hi")

	if gw.calls != 0 {
		t.Errorf("gateway called %d times, want 0", gw.calls)
	}
}

func TestControllerFilterScenario(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		whitelist []string
		blacklist []string
		want      []string
	}{
		{name: "no lists", want: []string{"a", "b", "c"}},
		{name: "whitelist wins", whitelist: []string{"a"}, blacklist: []string{"a", "b"}, want: []string{"a"}},
		{name: "blacklist only", blacklist: []string{"b"}, want: []string{"a", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			gw := &fakeGateway{}
			c := New(Deps{Gateway: gw, Policy: filter.NewPolicy(tt.whitelist, tt.blacklist)})
			for _, g := range []string{"a", "b", "c"} {
				c.OnGroupMessage(context.Background(), groupMessage(g, "1", "msg"))
			}

			got := gw.saved()
			if len(got) != len(tt.want) {
				t.Fatalf("saved %d records, want %d", len(got), len(tt.want))
			}
			for i, g := range tt.want {
				if got[i].GroupID != g {
					t.Errorf("record %d group = %q, want %q", i, got[i].GroupID, g)
				}
			}
		})
	}
}

func TestControllerBotResponses(t *testing.T) {
	t.Parallel()

	ev := event.Event{GroupID: "g", BotAccountID: "99", SenderName: "LangBot"}

	t.Run("enabled", func(t *testing.T) {
		t.Parallel()

		gw := &fakeGateway{}
		c := New(Deps{Gateway: gw})
		c.OnBotResponse(context.Background(), ev, "Re: ", "done")

		got := gw.saved()
		if len(got) != 1 {
			t.Fatalf("saved %d records, want 1", len(got))
		}
		rec := got[0]
		if rec.Message != "Re: done" || !rec.IsBotMessage || rec.UserID != "99" || rec.Nickname.String != "LangBot" {
			t.Errorf("record = %+v", rec)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		t.Parallel()

		gw := &fakeGateway{}
		c := New(Deps{Gateway: gw, Policy: filter.NewPolicy(nil, nil, filter.WithBotMessages(false))})
		c.OnBotResponse(context.Background(), ev, "Re: ", "done")
		c.OnGroupMessage(context.Background(), groupMessage("g", "1", "user text"))

		got := gw.saved()
		if len(got) != 1 || got[0].IsBotMessage {
			t.Errorf("saved = %+v, want only the user message", got)
		}
	})
}

func TestControllerSkipEmpty(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	c := New(Deps{Gateway: gw})
	c.OnGroupMessage(context.Background(), groupMessage("g", "1", "   "))
	if len(gw.saved()) != 1 {
		t.Fatal("blank message not kept by default")
	}

	c.SetPolicy(filter.NewPolicy(nil, nil, filter.WithSkipEmpty(true)))
	c.OnGroupMessage(context.Background(), groupMessage("g", "1", "   "))
	if len(gw.saved()) != 1 {
		t.Error("blank message kept with skip_empty_messages")
	}
}

func TestControllerPolicySwap(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	c := New(Deps{Gateway: gw})

	c.OnGroupMessage(context.Background(), groupMessage("g", "1", "before"))
	c.SetPolicy(filter.NewPolicy(nil, []string{"g"}))
	c.OnGroupMessage(context.Background(), groupMessage("g", "1", "after"))
	c.SetPolicy(nil)

	got := gw.saved()
	if len(got) != 1 || got[0].Message != "before" {
		t.Errorf("saved = %+v, want only the message before the swap", got)
	}
	if c.Policy().Allows("g") {
		t.Error("nil SetPolicy replaced the active policy")
	}
}

func TestControllerStartStop(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	c := New(Deps{Gateway: gw, DatabaseName: "langbot_chat"})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.Stop(context.Background())
	if !gw.started || !gw.stopped {
		t.Errorf("started=%v stopped=%v", gw.started, gw.stopped)
	}

	fatal := apperrors.NewFatalError("database connection failed", errors.New("refused"))
	c = New(Deps{Gateway: &fakeGateway{initErr: fatal}})
	if err := c.Start(context.Background()); !apperrors.IsFatal(err) {
		t.Errorf("Start = %v, want fatal error", err)
	}
}

type recordingGateway struct {
	*database.Gateway
	mu  sync.Mutex
	ids []int64
}

func (r *recordingGateway) Write(ctx context.Context, rec *database.ChatRecord) error {
	err := r.Gateway.Write(ctx, rec)
	if err == nil {
		r.mu.Lock()
		r.ids = append(r.ids, rec.ID)
		r.mu.Unlock()
	}
	return err
}

func TestControllerSQLiteEndToEnd(t *testing.T) {
	t.Parallel()

	url := "sqlite:///" + filepath.Join(t.TempDir(), "chat.db")
	gw := &recordingGateway{Gateway: database.NewGateway(database.Config{URL: url, Name: "e2e"})}
	c := New(Deps{
		Gateway: gw,
		Policy:  filter.NewPolicy(nil, []string{"blocked"}),
	})

	ctx := context.Background()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.OnGroupMessage(ctx, groupMessage("open", "1", "hello"))
	c.OnGroupMessage(ctx, groupMessage("blocked", "2", "hidden"))
	c.OnGroupMessage(ctx, groupMessage("", "3", "private"))
	c.OnBotResponse(ctx, event.Event{GroupID: "open", SenderName: "LangBot"}, "Re: ", "done")

	if len(gw.ids) != 2 {
		t.Fatalf("persisted %d records, want 2", len(gw.ids))
	}

	user, err := gw.Record(ctx, gw.ids[0])
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if user.Message != "hello" || user.Nickname.String != "user-1" || user.IsBotMessage {
		t.Errorf("user record = %+v", user)
	}

	bot, err := gw.Record(ctx, gw.ids[1])
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if bot.Message != "Re: done" || !bot.IsBotMessage || bot.UserID != "bot" {
		t.Errorf("bot record = %+v", bot)
	}

	c.Stop(ctx)
	c.OnGroupMessage(ctx, groupMessage("open", "1", "after stop"))
	if len(gw.ids) != 2 {
		t.Errorf("write accepted after Stop")
	}
}
