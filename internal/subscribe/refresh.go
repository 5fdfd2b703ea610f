// Package subscribe keeps imported ICS subscriptions in the planner store
// up to date on a cron schedule.
package subscribe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"baekon/internal/config"
	"baekon/internal/ics"
	appLog "baekon/internal/log"
	"baekon/internal/model"
)

// Fetcher fetches feeds. *ics.Fetcher implements it.
type Fetcher interface {
	FetchAll(ctx context.Context, sources []ics.Source) ([]ics.FetchResult, []error)
}

// Sink receives the events of one source, replacing what it had before.
// *planner.Store implements it.
type Sink interface {
	ReplaceSource(source string, events []model.Event) int
}

// Status describes the last refresh.
type Status struct {
	LastRun  time.Time      `json:"last_run"`
	Imported map[string]int `json:"imported"`
	Errors   []string       `json:"errors,omitempty"`
}

// Refresher imports subscriptions into a Sink.
type Refresher struct {
	fetcher Fetcher
	sink    Sink
	sources []ics.Source
	now     func() time.Time

	mu     sync.Mutex
	status Status
}

// New returns a Refresher for subs.
func New(fetcher Fetcher, sink Sink, subs []config.SubscriptionConfig) *Refresher {
	sources := make([]ics.Source, 0, len(subs))
	for _, s := range subs {
		sources = append(sources, ics.Source{ID: s.ID, Name: s.Name, URL: s.URL})
	}
	return &Refresher{fetcher: fetcher, sink: sink, sources: sources, now: time.Now}
}

// Status returns a copy of the last refresh status.
func (r *Refresher) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.status
	st.Imported = make(map[string]int, len(r.status.Imported))
	for k, v := range r.status.Imported {
		st.Imported[k] = v
	}
	st.Errors = append([]string(nil), r.status.Errors...)
	return st
}

// RunOnce fetches every source and replaces its events. A source that
// fails to fetch or parse keeps its previous events. The returned error
// joins the per-source failures.
func (r *Refresher) RunOnce(ctx context.Context) (Status, error) {
	st := Status{LastRun: r.now(), Imported: make(map[string]int)}
	if len(r.sources) == 0 {
		r.setStatus(st)
		return st, nil
	}

	results, errs := r.fetcher.FetchAll(ctx, r.sources)
	for _, res := range results {
		parsed, err := ics.Parse(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("subscribe: parse %s: %w", res.Source.ID, err))
			continue
		}
		events := ics.ToEvents(res.Source.ID, parsed, st.LastRun)
		removed := r.sink.ReplaceSource(res.Source.ID, events)
		st.Imported[res.Source.ID] = len(events)
		appLog.Info("subscription refreshed", "id", res.Source.ID, "events", len(events), "removed", removed, "from_cache", res.FromCache)
	}
	for _, err := range errs {
		st.Errors = append(st.Errors, err.Error())
	}

	r.setStatus(st)
	return st, errors.Join(errs...)
}

func (r *Refresher) setStatus(st Status) {
	r.mu.Lock()
	r.status = st
	r.mu.Unlock()
}

// Run refreshes immediately, then on spec (standard 5-field cron syntax)
// in loc until ctx is done. Overlapping runs are skipped.
func (r *Refresher) Run(ctx context.Context, spec string, loc *time.Location) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("subscribe: bad refresh schedule %q: %w", spec, err)
	}
	if loc == nil {
		loc = time.Local
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	job := func() {
		if _, err := r.RunOnce(ctx); err != nil {
			appLog.Warn("subscription refresh incomplete", "reason", err.Error())
		}
	}
	if _, err := c.AddFunc(spec, job); err != nil {
		return fmt.Errorf("subscribe: schedule: %w", err)
	}

	job()
	c.Start()
	appLog.Info("subscription refresher started", "schedule", spec, "sources", len(r.sources))

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("subscription refresher stopped")
	return nil
}

// cronLogger routes cron's own logging through appLog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...interface{}) {
	appLog.Debug("cron: "+msg, kv...)
}

func (cronLogger) Error(err error, msg string, kv ...interface{}) {
	appLog.Error("cron: "+msg, err, kv...)
}
