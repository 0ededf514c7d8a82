// Package retrieval runs gold questions against completed conversation
// indexes and records ranked results for evaluation.
//
// Conversations run in parallel under the same bounded worker model as
// indexing; queries within one conversation run sequentially. Results
// come back in dataset order regardless of worker scheduling.
package retrieval

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

// DefaultTopN is how many chunks a query retrieves when unconfigured.
const DefaultTopN = 100

var defaultNumWorkers uint = 2

// Chunk is one retrieved unit in ranked order.
type Chunk struct {
	Rank    int     `json:"rank"`
	UnitID  string  `json:"id"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`

	Keywords  []string `json:"keywords,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Context   string   `json:"context,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// Result is the retrieval outcome for one gold QA pair. Answer carries
// the gold reference answer for downstream generation scoring. A result
// with Error set records a failed query; its chunks are empty and it is
// excluded from metric aggregation.
type Result struct {
	QuestionID     string   `json:"question_id"`
	ConversationID string   `json:"conv_id"`
	Question       string   `json:"question"`
	Answer         string   `json:"answer,omitempty"`
	Category       string   `json:"category,omitempty"`
	Evidences      []string `json:"evidences,omitempty"`
	Chunks         []Chunk  `json:"chunks"`
	Error          string   `json:"error,omitempty"`
}

// Config is the configuration options for the retrieval runner.
type Config struct {
	// Adapter is the memory backend queried for each gold question.
	Adapter memory.Adapter

	// TopN is how many chunks each query retrieves (defaults to 100).
	TopN int

	// NumWorkers is the number of conversations queried concurrently
	// (defaults to 2).
	NumWorkers uint

	// Retry bounds how transient query failures are retried. A zero
	// value takes the default policy.
	Retry memory.RetryPolicy

	// Manifest receives one record per conversation.
	Manifest *manifest.Manifest

	// Events is the optional lifecycle event publisher.
	Events eventstream.Publisher

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Summary is the outcome of one retrieval pass.
type Summary struct {
	Completed int
	Failed    int
	Skipped   int

	// Queries counts successful queries; QueryFailures counts queries
	// recorded with an error.
	Queries       int
	QueryFailures int
}

// Runner runs the retrieval stage of a benchmark pipeline.
type Runner struct {
	config    *Config
	completer memory.Completer
	logger    *zap.Logger
}

type retrievalTally struct {
	completed     atomic.Int64
	failed        atomic.Int64
	skipped       atomic.Int64
	queries       atomic.Int64
	queryFailures atomic.Int64
}

// New creates a retrieval runner over the given adapter and manifest.
func New(c *Config) (*Runner, error) {
	if c.Adapter == nil {
		return nil, fmt.Errorf("retrieval runner requires a memory adapter")
	}

	if c.Manifest == nil {
		return nil, fmt.Errorf("retrieval runner requires a run manifest")
	}

	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
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

	return &Runner{
		config:    c,
		completer: completer,
		logger:    c.Logger,
	}, nil
}

// Run queries every conversation's gold questions and returns the
// results in dataset order. Per-conversation problems are recorded in
// the manifest, never returned.
func (r *Runner) Run(ctx context.Context, conversations []dataset.Conversation) ([]Result, Summary) {
	type job struct {
		slot int
		conv dataset.Conversation
	}

	queue := make(chan job)
	slots := make([][]Result, len(conversations))
	t := &retrievalTally{}

	var wg sync.WaitGroup
	wg.Add(int(r.config.NumWorkers))
	for i := range r.config.NumWorkers {
		go func(id uint) {
			defer wg.Done()
			r.logger.Debug("retrieval worker started", zap.Uint("worker_id", id))

			for j := range queue {
				slots[j.slot] = r.processConversation(ctx, j.conv, t)
			}

			r.logger.Debug("retrieval worker stopped", zap.Uint("worker_id", id))
		}(i)
	}

	var unfed []dataset.Conversation
feed:
	for i, conv := range conversations {
		select {
		case queue <- job{slot: i, conv: conv}:
		case <-ctx.Done():
			unfed = conversations[i:]
			break feed
		}
	}
	close(queue)
	wg.Wait()

	for _, conv := range unfed {
		r.fail(ctx, t, conv.ID, cancelReason(ctx.Err()), time.Now())
	}

	var results []Result
	for _, slot := range slots {
		results = append(results, slot...)
	}

	return results, Summary{
		Completed:     int(t.completed.Load()),
		Failed:        int(t.failed.Load()),
		Skipped:       int(t.skipped.Load()),
		Queries:       int(t.queries.Load()),
		QueryFailures: int(t.queryFailures.Load()),
	}
}

// processConversation runs one conversation's gold queries sequentially.
// It returns the conversation's results, or nil when the conversation is
// skipped or failed.
func (r *Runner) processConversation(ctx context.Context, conv dataset.Conversation, t *retrievalTally) []Result {
	started := time.Now()

	if len(conv.QAs) == 0 {
		r.skip(t, conv.ID, "no gold queries")
		return nil
	}

	if r.completer != nil && !r.completer.Completed(conv.ID) {
		r.skip(t, conv.ID, "index not ready")
		return nil
	}

	results := make([]Result, 0, len(conv.QAs))
	succeeded := 0
	failures := 0

	for qi, qa := range conv.QAs {
		if err := ctx.Err(); err != nil {
			r.fail(ctx, t, conv.ID, cancelReason(err), started)
			return nil
		}

		result := Result{
			QuestionID:     qa.QuestionID,
			ConversationID: conv.ID,
			Question:       qa.Question,
			Answer:         qa.Answer,
			Category:       string(qa.Category),
			Evidences:      qa.Evidences,
		}
		if result.QuestionID == "" {
			result.QuestionID = fmt.Sprintf("%s_q%d", conv.ID, qi)
		}

		var matches []memory.Match
		err := r.config.Retry.Do(ctx, func() error {
			var qerr error
			matches, qerr = r.config.Adapter.Query(ctx, conv.ID, qa.Question, r.config.TopN)
			return qerr
		})

		switch {
		case err == nil:
			result.Chunks = toChunks(matches)
			succeeded++

		case errors.Is(err, memory.ErrIndexNotReady):
			r.skip(t, conv.ID, "index not ready")
			return nil

		case ctx.Err() != nil:
			r.fail(ctx, t, conv.ID, cancelReason(ctx.Err()), started)
			return nil

		default:
			result.Error = err.Error()
			result.Chunks = []Chunk{}
			failures++
			r.logger.Warn("query failed",
				zap.String("conversation", conv.ID),
				zap.String("question_id", result.QuestionID),
				zap.Error(err),
			)
		}

		results = append(results, result)
	}

	t.completed.Add(1)
	t.queries.Add(int64(succeeded))
	t.queryFailures.Add(int64(failures))
	durationMs := time.Since(started).Milliseconds()

	r.config.Manifest.Record(manifest.ConversationStatus{
		ConversationID: conv.ID,
		Stage:          manifest.StageRetrieve,
		Status:         manifest.StatusCompleted,
		Queries:        succeeded,
		DurationMs:     durationMs,
	})

	r.logger.Info("conversation retrieved",
		zap.String("conversation", conv.ID),
		zap.Int("queries", len(results)),
		zap.Int("failures", failures),
		zap.Int64("duration_ms", durationMs),
	)

	return results
}

func (r *Runner) skip(t *retrievalTally, conversationID, reason string) {
	t.skipped.Add(1)

	r.config.Manifest.Record(manifest.ConversationStatus{
		ConversationID: conversationID,
		Stage:          manifest.StageRetrieve,
		Status:         manifest.StatusSkipped,
		Reason:         reason,
	})

	r.logger.Info("conversation skipped",
		zap.String("conversation", conversationID),
		zap.String("reason", reason),
	)
}

func (r *Runner) fail(ctx context.Context, t *retrievalTally, conversationID, reason string, started time.Time) {
	t.failed.Add(1)
	durationMs := time.Since(started).Milliseconds()

	r.config.Manifest.Record(manifest.ConversationStatus{
		ConversationID: conversationID,
		Stage:          manifest.StageRetrieve,
		Status:         manifest.StatusFailed,
		Reason:         reason,
		DurationMs:     durationMs,
	})

	event := eventstream.NewRunEvent(eventstream.EventTypeConversationFailed, r.config.Manifest.RunID)
	event.Stage = manifest.StageRetrieve
	event.ConversationID = conversationID
	event.Reason = reason
	event.DurationMs = durationMs
	if err := r.config.Events.Publish(ctx, event); err != nil {
		r.logger.Warn("event publish failed",
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
	}

	r.logger.Error("conversation failed",
		zap.String("conversation", conversationID),
		zap.String("stage", manifest.StageRetrieve),
		zap.String("reason", reason),
	)
}

func toChunks(matches []memory.Match) []Chunk {
	chunks := make([]Chunk, 0, len(matches))
	for i, m := range matches {
		chunks = append(chunks, Chunk{
			Rank:      i + 1,
			UnitID:    m.UnitID,
			Score:     m.Score,
			Content:   m.Content,
			Keywords:  m.Keywords,
			Tags:      m.Tags,
			Context:   m.Context,
			Timestamp: m.Timestamp,
		})
	}
	return chunks
}

func cancelReason(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "run timeout"
	}
	return "run cancelled"
}
