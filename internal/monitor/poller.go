package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/aocrank/internal/alert"
	"github.com/zulandar/aocrank/internal/compute"
	"github.com/zulandar/aocrank/internal/config"
	"github.com/zulandar/aocrank/internal/crank"
	"github.com/zulandar/aocrank/internal/cursor"
	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/metrics"
	"github.com/zulandar/aocrank/internal/models"
	"golang.org/x/sync/errgroup"
)

// resultNamespace seeds the ids given to evaluation results, which the
// compute unit identifies only by cursor.
var resultNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("ao:result"))

// ResultTxID returns the id used as fromTxId for the result of processID
// at cursor.
func ResultTxID(processID, cur string) string {
	return uuid.NewSHA1(resultNamespace, []byte(processID+":"+cur)).String()
}

// ResultSource pages through evaluation results.
type ResultSource interface {
	Results(ctx context.Context, processID, from string, limit int) (compute.Page, error)
}

// Cranker cranks the outbox of one result.
type Cranker interface {
	CrankResult(ctx context.Context, r crank.Result) (crank.Outcome, error)
}

// PollerConfig wires a Poller.
type PollerConfig struct {
	Registry    *Registry
	Source      ResultSource
	Cranker     Cranker
	Notifier    alert.Notifier
	PageLimit   int
	Concurrency int
	Logger      *slog.Logger
}

// Poller cranks new results of every authorized monitored process.
type Poller struct {
	registry    *Registry
	source      ResultSource
	cranker     Cranker
	notifier    alert.Notifier
	pageLimit   int
	concurrency int
	logger      *slog.Logger
	now         func() time.Time
}

// NewPoller creates a Poller.
func NewPoller(cfg PollerConfig) *Poller {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	logger := logging.For(cfg.Logger, "poller")
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = alert.NewLog(cfg.Logger)
	}
	return &Poller{
		registry:    cfg.Registry,
		source:      cfg.Source,
		cranker:     cfg.Cranker,
		notifier:    notifier,
		pageLimit:   cfg.PageLimit,
		concurrency: cfg.Concurrency,
		logger:      logger,
		now:         time.Now,
	}
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Polled  int
	Cranked int
	Failed  int
}

// PollOnce runs one cycle over all authorized monitors. Failures of single
// monitors are logged and alerted; only a failure to list monitors is
// returned.
func (p *Poller) PollOnce(ctx context.Context) (CycleReport, error) {
	start := p.now()
	defer func() { metrics.PollCycleDuration.Observe(time.Since(start).Seconds()) }()

	var report CycleReport
	procs, err := p.registry.FindAll(ctx)
	if err != nil {
		return report, err
	}

	cranked := make([]int, len(procs))
	failed := make([]bool, len(procs))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, proc := range procs {
		if !proc.Authorized {
			continue
		}
		report.Polled++
		i, proc := i, proc
		g.Go(func() error {
			n, err := p.pollProcess(ctx, proc)
			cranked[i] = n
			if err != nil {
				failed[i] = true
				p.logger.Error("Polling monitored process failed", "processId", proc.ID, "error", err)
				p.notifier.Notify(ctx, "Crank failed for monitored process "+proc.ID, err.Error())
			}
			return nil
		})
	}
	_ = g.Wait()

	for i := range procs {
		report.Cranked += cranked[i]
		if failed[i] {
			report.Failed++
		}
	}
	p.logger.Info("Poll cycle complete", "polled", report.Polled, "cranked", report.Cranked, "failed", report.Failed)
	return report, nil
}

// pollProcess cranks one page of new results for proc in order. The cursor
// advances past each result that cranks and past results rejected as
// malformed; the first other failure stops the page.
func (p *Poller) pollProcess(ctx context.Context, proc models.MonitoredProcess) (int, error) {
	from := ""
	if proc.LastFromCursor != nil {
		from = *proc.LastFromCursor
	}
	criteria, err := cursor.Parse(from)
	if err != nil {
		return 0, err
	}
	if criteria != nil {
		p.logger.Debug("Polling monitored process", "processId", proc.ID, "after", time.UnixMilli(criteria.Timestamp).UTC())
	} else {
		p.logger.Debug("Polling monitored process from the start", "processId", proc.ID)
	}

	page, err := p.source.Results(ctx, proc.ID, from, p.pageLimit)
	if err != nil {
		return 0, err
	}

	next := from
	cranked := 0
	var crankErr error
	for _, edge := range page.Edges {
		if edge.Cursor == "" {
			crankErr = fmt.Errorf("monitor: result of %s after %q has no cursor", proc.ID, next)
			break
		}
		if len(edge.Node.Error) > 0 {
			p.logger.Warn("Result carries an evaluation error", "processId", proc.ID, "cursor", edge.Cursor, "evalError", string(edge.Node.Error))
		}
		_, err := p.cranker.CrankResult(ctx, crank.Result{
			FromTxID:  ResultTxID(proc.ID, edge.Cursor),
			ProcessID: proc.ID,
			Messages:  edge.Node.Messages,
			Spawns:    edge.Node.Spawns,
		})
		if crank.IsFatal(err) {
			// Cranking the same result again fails the same way; move past it.
			p.logger.Error("Skipping malformed result", "processId", proc.ID, "cursor", edge.Cursor, "error", err)
			p.notifier.Notify(ctx, "Skipped malformed result of monitored process "+proc.ID, err.Error())
			next = edge.Cursor
			continue
		}
		if err != nil {
			crankErr = fmt.Errorf("monitor: crank %s at %s: %w", proc.ID, edge.Cursor, err)
			break
		}
		next = edge.Cursor
		cranked++
	}

	update := Update{ID: proc.ID, LastFromCursor: proc.LastFromCursor}
	if next != "" {
		update.LastFromCursor = &next
	}
	runAt := models.Millis(p.now().UnixMilli())
	update.LastRunTime = &runAt
	if _, err := p.registry.Update(ctx, update); err != nil {
		return cranked, errors.Join(crankErr, err)
	}
	return cranked, crankErr
}

// Run polls on schedule until ctx is cancelled. A cycle still running when
// the next one is due causes that next cycle to be skipped.
func (p *Poller) Run(ctx context.Context, schedule string) error {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(p.logger.Handler(), slog.LevelDebug))
	c := cron.New(
		cron.WithParser(config.ScheduleParser),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	if _, err := c.AddFunc(schedule, func() {
		if _, err := p.PollOnce(ctx); err != nil {
			p.logger.Error("Poll cycle failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("monitor: schedule %q: %w", schedule, err)
	}

	p.logger.Info("Poller started", "schedule", schedule)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	p.logger.Info("Poller stopped")
	return nil
}
