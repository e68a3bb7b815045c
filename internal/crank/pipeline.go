// Package crank turns outbound process messages into signed transactions
// addressed to their target's scheduler.
package crank

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/zulandar/aocrank/internal/locator"
	"github.com/zulandar/aocrank/internal/logging"
	"github.com/zulandar/aocrank/internal/metrics"
	"github.com/zulandar/aocrank/internal/models"
	"github.com/zulandar/aocrank/internal/signer"
	"github.com/zulandar/aocrank/internal/tags"
)

// Stage names, in execution order.
const (
	StageWalletCheck       = "wallet-check"
	StageSourceLocation    = "source-location"
	StageSchedulerMetadata = "scheduler-metadata"
	StageTargetLocation    = "target-location"
	StageTagComposition    = "tag-composition"
	StageBuildAndSign      = "build-and-sign"
	StageValidate          = "validate"
)

// stageFunc runs one stage. It reports ran=false when its guard found the
// output already present.
type stageFunc func(ctx context.Context, c Context) (next Context, ran bool, err error)

type stage struct {
	name string
	run  stageFunc
}

// Pipeline runs the crank stages for one message at a time. It holds no
// per-message state and is safe for concurrent use.
type Pipeline struct {
	locator locator.Locator
	signer  signer.Signer
	logger  *slog.Logger
	stages  []stage
}

// NewPipeline creates a Pipeline.
func NewPipeline(loc locator.Locator, sig signer.Signer, logger *slog.Logger) *Pipeline {
	p := &Pipeline{locator: loc, signer: sig, logger: logging.For(logger, "crank")}
	p.stages = []stage{
		{StageWalletCheck, p.walletCheck},
		{StageSourceLocation, p.sourceLocation},
		{StageSchedulerMetadata, p.schedulerMetadata},
		{StageTargetLocation, p.targetLocation},
		{StageTagComposition, p.composeTags},
		{StageBuildAndSign, p.buildAndSign},
		{StageValidate, p.validate},
	}
	return p
}

// Crank runs every stage whose output is missing from c. On failure it
// returns a *StageError carrying the context accumulated so far.
func (p *Pipeline) Crank(ctx context.Context, c Context) (Context, error) {
	for _, s := range p.stages {
		next, ran, err := s.run(ctx, c)
		if err != nil {
			metrics.CrankStageTotal.WithLabelValues(s.name, metrics.OutcomeFailed).Inc()
			metrics.CrankTotal.WithLabelValues("error").Inc()
			p.logger.Error("Crank stage failed",
				"stage", s.name,
				"messageId", c.Message.ID,
				"fromProcessId", c.Message.FromProcessID,
				"target", c.Message.Msg.Target,
				"error", err,
			)
			return c, &StageError{Stage: s.name, Context: c, Err: err}
		}

		outcome := metrics.OutcomeSkipped
		if ran {
			outcome = metrics.OutcomeRan
		}
		metrics.CrankStageTotal.WithLabelValues(s.name, outcome).Inc()
		next.Log = append(next.Log, StageRecord{Stage: s.name, Outcome: outcome})
		c = next
	}

	metrics.CrankTotal.WithLabelValues("ok").Inc()
	p.logger.Info("Cranked message",
		"messageId", c.Message.ID,
		"txId", c.Tx.ID,
		"target", c.Message.Msg.Target,
		"wallet", c.Wallet(),
	)
	return c, nil
}

func (p *Pipeline) walletCheck(ctx context.Context, c Context) (Context, bool, error) {
	if c.IsWallet != nil {
		return c, false, nil
	}
	wallet, err := p.locator.IsWallet(ctx, c.Message.Msg.Target)
	if err != nil {
		return c, false, err
	}
	c.IsWallet = &wallet
	return c, true, nil
}

func (p *Pipeline) sourceLocation(ctx context.Context, c Context) (Context, bool, error) {
	if c.FromLocation != nil {
		return c, false, nil
	}
	loc, err := p.locator.Locate(ctx, c.Message.FromProcessID)
	if err != nil {
		return c, false, err
	}
	c.FromLocation = &loc
	return c, true, nil
}

func (p *Pipeline) schedulerMetadata(ctx context.Context, c Context) (Context, bool, error) {
	if c.FromSchedProcess != nil {
		return c, false, nil
	}
	if c.FromLocation == nil {
		return c, false, fmt.Errorf("source location is not resolved")
	}
	proc, err := p.locator.FetchSchedulerProcess(ctx, c.Message.FromProcessID, c.FromLocation.URL)
	if err != nil {
		return c, false, err
	}
	c.FromSchedProcess = &proc
	return c, true, nil
}

// targetLocation never runs for wallet targets; they are delivered without
// a scheduler.
func (p *Pipeline) targetLocation(ctx context.Context, c Context) (Context, bool, error) {
	if c.SchedLocation != nil || c.Wallet() {
		return c, false, nil
	}
	loc, err := p.locator.Locate(ctx, c.Message.Msg.Target)
	if err != nil {
		return c, false, err
	}
	c.SchedLocation = &loc
	return c, true, nil
}

func (p *Pipeline) composeTags(_ context.Context, c Context) (Context, bool, error) {
	if c.Tags != nil {
		return c, false, nil
	}
	opts := tags.ComposeOpts{FromProcess: c.Message.FromProcessID}
	if c.FromSchedProcess != nil {
		opts.FromModule = c.FromSchedProcess.Module()
	}
	if root := c.Message.InitialTxID; root != "" && root != c.Message.ID {
		opts.PushedFor = root
	}
	c.Tags = tags.Compose(c.Message.Msg.Tags, opts)
	c.PendingAssignments = tags.ParseAssignments(c.Message.Msg.Tags)
	return c, true, nil
}

func (p *Pipeline) buildAndSign(ctx context.Context, c Context) (Context, bool, error) {
	if c.Tx != nil {
		return c, false, nil
	}
	tx, err := p.signer.BuildAndSign(ctx, signer.BuildRequest{
		ProcessID: c.Message.Msg.Target,
		Tags:      c.Tags,
		Anchor:    c.Message.Msg.Anchor,
		Data:      c.Message.Msg.Data,
	})
	if err != nil {
		return c, false, err
	}
	c.Tx = &tx
	c.TagAssignments = []TagAssignment{}
	if len(c.PendingAssignments) > 0 {
		c.TagAssignments = append(c.TagAssignments, TagAssignment{
			Processes: c.PendingAssignments,
			Message:   tx.ID,
		})
	}
	return c, true, nil
}

func (p *Pipeline) validate(_ context.Context, c Context) (Context, bool, error) {
	if c.Validated {
		return c, false, nil
	}
	const entity = "crankContext"
	switch {
	case c.Message.ID == "":
		return c, false, models.NewValidationError(entity, "message.id", "must be a non-empty string")
	case c.IsWallet == nil:
		return c, false, models.NewValidationError(entity, "isWallet", "must be resolved")
	case c.FromLocation == nil || c.FromLocation.URL == "":
		return c, false, models.NewValidationError(entity, "fromLocation.url", "must be resolved")
	case !c.Wallet() && (c.SchedLocation == nil || c.SchedLocation.URL == ""):
		return c, false, models.NewValidationError(entity, "schedLocation.url", "must be resolved for process targets")
	case len(c.Tags) == 0:
		return c, false, models.NewValidationError(entity, "tags", "must not be empty")
	case c.Tx == nil || c.Tx.ID == "":
		return c, false, models.NewValidationError(entity, "tx.id", "must be a non-empty string")
	case c.Tx.ProcessID == "":
		return c, false, models.NewValidationError(entity, "tx.processId", "must be a non-empty string")
	case c.TagAssignments == nil:
		return c, false, models.NewValidationError(entity, "tagAssignments", "must be finalized")
	}
	c.Validated = true
	return c, true, nil
}
