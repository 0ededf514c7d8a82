// Package indexer builds per-conversation memory indexes from dataset
// conversations using a bounded worker pool.
//
// Each worker drains conversations from a shared channel to completion:
// extract turn units, insert them sequentially in turn order, consolidate
// every N units, and mark the index complete. Failures stay scoped to
// their conversation; the worker records the outcome in the run manifest
// and moves on.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/dataset"
	"github.com/papercomputeco/membench/pkg/eventstream"
	"github.com/papercomputeco/membench/pkg/eventstream/nop"
	"github.com/papercomputeco/membench/pkg/manifest"
	"github.com/papercomputeco/membench/pkg/memory"
)

var (
	defaultNumWorkers       uint = 2
	defaultConsolidateEvery      = 100
)

// Config is the configuration options for the indexer.
type Config struct {
	// Adapter is the memory backend receiving inserts.
	Adapter memory.Adapter

	// NumWorkers is the number of conversations indexed concurrently
	// (defaults to 2).
	NumWorkers uint

	// ConsolidateEvery triggers a consolidation pass after that many
	// inserted units (defaults to 100).
	ConsolidateEvery int

	// Rebuild discards and rebuilds indexes that already carry a
	// completion marker instead of skipping them.
	Rebuild bool

	// Retry bounds how transient insert failures are retried. A zero
	// value takes the default policy.
	Retry memory.RetryPolicy

	// Manifest receives one record per conversation.
	Manifest *manifest.Manifest

	// Events is the optional lifecycle event publisher.
	Events eventstream.Publisher

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Summary is the outcome of one indexing pass.
type Summary struct {
	Completed int
	Failed    int
	Skipped   int

	// Units is the total number of units inserted across completed
	// conversations.
	Units int
}

// Indexer runs the index stage of a benchmark pipeline.
type Indexer struct {
	config    *Config
	completer memory.Completer
	resetter  memory.Resetter
	logger    *zap.Logger
}

// tally accumulates worker outcomes during one Run.
type tally struct {
	completed atomic.Int64
	failed    atomic.Int64
	skipped   atomic.Int64
	units     atomic.Int64
}

// New creates an indexer over the given adapter and manifest.
func New(c *Config) (*Indexer, error) {
	if c.Adapter == nil {
		return nil, fmt.Errorf("indexer requires a memory adapter")
	}

	if c.Manifest == nil {
		return nil, fmt.Errorf("indexer requires a run manifest")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.ConsolidateEvery <= 0 {
		c.ConsolidateEvery = defaultConsolidateEvery
	}

	if c.Retry.Attempts == 0 {
		c.Retry = memory.DefaultRetryPolicy()
	}

	if c.Events == nil {
		c.Events = nop.NewPublisher()
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	completer, _ := c.Adapter.(memory.Completer)
	resetter, _ := c.Adapter.(memory.Resetter)

	return &Indexer{
		config:    c,
		completer: completer,
		resetter:  resetter,
		logger:    c.Logger,
	}, nil
}

// Run indexes every conversation and blocks until all workers drain.
// Per-conversation failures are recorded in the manifest, never returned;
// a cancelled context marks unfinished conversations failed and returns
// once in-flight work has stopped.
func (ix *Indexer) Run(ctx context.Context, conversations []dataset.Conversation) Summary {
	queue := make(chan dataset.Conversation)
	t := &tally{}

	var wg sync.WaitGroup
	wg.Add(int(ix.config.NumWorkers))
	for i := range ix.config.NumWorkers {
		go ix.worker(ctx, i, queue, t, &wg)
	}

	var unfed []dataset.Conversation
feed:
	for i, conv := range conversations {
		select {
		case queue <- conv:
		case <-ctx.Done():
			unfed = conversations[i:]
			break feed
		}
	}
	close(queue)
	wg.Wait()

	for _, conv := range unfed {
		ix.fail(ctx, t, conv.ID, manifest.StageIndex, cancelReason(ctx.Err()), time.Now())
	}

	return Summary{
		Completed: int(t.completed.Load()),
		Failed:    int(t.failed.Load()),
		Skipped:   int(t.skipped.Load()),
		Units:     int(t.units.Load()),
	}
}

// worker is the inner worker goroutine that continuously pulls
// conversations off the queue.
func (ix *Indexer) worker(ctx context.Context, id uint, queue <-chan dataset.Conversation, t *tally, wg *sync.WaitGroup) {
	defer wg.Done()
	ix.logger.Debug("index worker started", zap.Uint("worker_id", id))

	for conv := range queue {
		ix.processConversation(ctx, conv, t)
	}

	ix.logger.Debug("index worker stopped", zap.Uint("worker_id", id))
}

// processConversation builds one conversation's index end to end.
func (ix *Indexer) processConversation(ctx context.Context, conv dataset.Conversation, t *tally) {
	started := time.Now()

	if ix.completer != nil && ix.completer.Completed(conv.ID) {
		if !ix.config.Rebuild {
			ix.skip(t, conv.ID, "already built")
			return
		}
	}

	if err := ctx.Err(); err != nil {
		ix.fail(ctx, t, conv.ID, manifest.StageIndex, cancelReason(err), started)
		return
	}

	// Clear any stale state (explicit rebuild, or a partial index left by
	// an interrupted run) so inserts land in a fresh index.
	if ix.resetter != nil {
		if err := ix.resetter.Reset(ctx, conv.ID); err != nil {
			ix.fail(ctx, t, conv.ID, manifest.StageIndex, fmt.Sprintf("resetting index: %v", err), started)
			return
		}
	}

	units, err := dataset.ExtractTurns(conv)
	if err != nil {
		ix.fail(ctx, t, conv.ID, manifest.StageExtract, err.Error(), started)
		return
	}

	for i, unit := range units {
		if err := ctx.Err(); err != nil {
			ix.fail(ctx, t, conv.ID, manifest.StageIndex, cancelReason(err), started)
			return
		}

		err := ix.config.Retry.Do(ctx, func() error {
			_, err := ix.config.Adapter.Insert(ctx, conv.ID, unit)
			return err
		})
		if err != nil {
			reason := fmt.Sprintf("inserting unit %d: %v", unit.TurnIndex, err)
			if ctx.Err() != nil {
				reason = cancelReason(ctx.Err())
			}
			ix.fail(ctx, t, conv.ID, manifest.StageIndex, reason, started)
			return
		}

		if (i+1)%ix.config.ConsolidateEvery == 0 {
			if err := ix.config.Adapter.Consolidate(ctx, conv.ID); err != nil {
				ix.logger.Warn("consolidation failed",
					zap.String("conversation", conv.ID),
					zap.Int("after_units", i+1),
					zap.Error(err),
				)
			}
		}
	}

	if ix.completer != nil {
		if err := ix.completer.MarkComplete(ctx, conv.ID); err != nil {
			ix.fail(ctx, t, conv.ID, manifest.StageIndex, fmt.Sprintf("marking complete: %v", err), started)
			return
		}
	}

	t.completed.Add(1)
	t.units.Add(int64(len(units)))
	durationMs := time.Since(started).Milliseconds()

	ix.config.Manifest.Record(manifest.ConversationStatus{
		ConversationID: conv.ID,
		Stage:          manifest.StageIndex,
		Status:         manifest.StatusCompleted,
		Units:          len(units),
		DurationMs:     durationMs,
	})

	event := eventstream.NewRunEvent(eventstream.EventTypeConversationIndexed, ix.config.Manifest.RunID)
	event.Stage = manifest.StageIndex
	event.ConversationID = conv.ID
	event.Units = len(units)
	event.DurationMs = durationMs
	ix.publish(ctx, event)

	ix.logger.Info("conversation indexed",
		zap.String("conversation", conv.ID),
		zap.Int("units", len(units)),
		zap.Int64("duration_ms", durationMs),
	)
}

// skip records an already-built conversation.
func (ix *Indexer) skip(t *tally, conversationID, reason string) {
	t.skipped.Add(1)

	ix.config.Manifest.Record(manifest.ConversationStatus{
		ConversationID: conversationID,
		Stage:          manifest.StageIndex,
		Status:         manifest.StatusSkipped,
		Reason:         reason,
	})

	ix.logger.Info("conversation skipped",
		zap.String("conversation", conversationID),
		zap.String("reason", reason),
	)
}

// fail records a failed conversation and publishes the failure event.
func (ix *Indexer) fail(ctx context.Context, t *tally, conversationID, stage, reason string, started time.Time) {
	t.failed.Add(1)
	durationMs := time.Since(started).Milliseconds()

	ix.config.Manifest.Record(manifest.ConversationStatus{
		ConversationID: conversationID,
		Stage:          stage,
		Status:         manifest.StatusFailed,
		Reason:         reason,
		DurationMs:     durationMs,
	})

	event := eventstream.NewRunEvent(eventstream.EventTypeConversationFailed, ix.config.Manifest.RunID)
	event.Stage = stage
	event.ConversationID = conversationID
	event.Reason = reason
	event.DurationMs = durationMs
	ix.publish(ctx, event)

	ix.logger.Error("conversation failed",
		zap.String("conversation", conversationID),
		zap.String("stage", stage),
		zap.String("reason", reason),
	)
}

// publish sends a lifecycle event; publish failures are logged, never
// fatal.
func (ix *Indexer) publish(ctx context.Context, event *eventstream.RunEvent) {
	if err := ix.config.Events.Publish(ctx, event); err != nil {
		ix.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}
}

// cancelReason names why the run context ended.
func cancelReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "run timeout"
	}
	return "run cancelled"
}
