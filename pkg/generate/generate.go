// Package generate produces answers from retrieved memory context and
// scores them against the gold references.
//
// For each retrieval result, the top context chunks are formatted into a
// context block and an LLM answers the gold question from it. Answers
// are scored with the text metrics; embedding cosine similarity is added
// when an embedder is configured.
package generate

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/embeddings"
	"github.com/papercomputeco/membench/pkg/llm"
	"github.com/papercomputeco/membench/pkg/manifest"
	"github.com/papercomputeco/membench/pkg/metrics"
	"github.com/papercomputeco/membench/pkg/retrieval"
)

const (
	// DefaultContextK is how many retrieved chunks feed the context
	// block when unconfigured.
	DefaultContextK = 5

	// DefaultMaxTokens bounds the generated answer length.
	DefaultMaxTokens = 256
)

const answerPrompt = `You are a question answering assistant. Answer the question using only the provided conversation memories. Reply with the answer phrase alone, no explanation. If the memories do not contain the answer, reply with your best guess.`

// Answer is one generated answer with its text-quality scores.
type Answer struct {
	QuestionID     string `json:"question_id"`
	ConversationID string `json:"conv_id"`
	Category       string `json:"category,omitempty"`
	Question       string `json:"question"`

	// Reference is the gold answer; Generated is the model's.
	Reference string `json:"reference"`
	Generated string `json:"generated"`

	// ContextUnits are the chunk ids the context block was built from.
	ContextUnits []string `json:"context_units,omitempty"`

	Score metrics.TextScore `json:"score"`

	// Error records a failed generation; the answer carries no score.
	Error string `json:"error,omitempty"`
}

// Config is the configuration options for the answer generator.
type Config struct {
	// Provider is the LLM that answers questions.
	Provider llm.Provider

	// Embedder optionally scores embedding cosine similarity between
	// generated and reference answers.
	Embedder embeddings.Embedder

	// ContextK is how many top chunks feed the context block (defaults
	// to 5).
	ContextK int

	// MaxTokens bounds each generated answer (defaults to 256).
	MaxTokens int

	// Manifest optionally receives one record per conversation.
	Manifest *manifest.Manifest

	// Logger is the provided zap logger.
	Logger *zap.Logger
}

// Summary is the outcome of one generation pass.
type Summary struct {
	Answered int
	Failed   int
	Skipped  int
}

// Generator runs the optional answer generation stage.
type Generator struct {
	config *Config
	logger *zap.Logger
}

// New creates an answer generator.
func New(c *Config) (*Generator, error) {
	if c.Provider == nil {
		return nil, fmt.Errorf("generator requires an llm provider")
	}

	if c.ContextK <= 0 {
		c.ContextK = DefaultContextK
	}

	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}

	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}

	return &Generator{config: c, logger: c.Logger}, nil
}

// Run generates and scores an answer for each scoreable retrieval
// result. Results with a recorded retrieval error or without a gold
// reference answer are skipped.
func (g *Generator) Run(ctx context.Context, results []retrieval.Result) ([]Answer, Summary) {
	answers := make([]Answer, 0, len(results))
	summary := Summary{}
	perConversation := make(map[string]*manifest.ConversationStatus)

	for _, result := range results {
		if err := ctx.Err(); err != nil {
			break
		}

		if result.Error != "" || result.Answer == "" {
			summary.Skipped++
			g.logger.Debug("skipping unscoreable question",
				zap.String("question_id", result.QuestionID),
				zap.Bool("retrieval_failed", result.Error != ""),
			)
			continue
		}

		answer := g.answer(ctx, result)
		answers = append(answers, answer)

		status := perConversation[result.ConversationID]
		if status == nil {
			status = &manifest.ConversationStatus{
				ConversationID: result.ConversationID,
				Stage:          manifest.StageGenerate,
				Status:         manifest.StatusCompleted,
			}
			perConversation[result.ConversationID] = status
		}

		if answer.Error != "" {
			summary.Failed++
			continue
		}

		summary.Answered++
		status.Queries++
	}

	if g.config.Manifest != nil {
		for _, status := range perConversation {
			g.config.Manifest.Record(*status)
		}
	}

	g.logger.Info("generation finished",
		zap.Int("answered", summary.Answered),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)

	return answers, summary
}

// answer generates and scores one answer.
func (g *Generator) answer(ctx context.Context, result retrieval.Result) Answer {
	answer := Answer{
		QuestionID:     result.QuestionID,
		ConversationID: result.ConversationID,
		Category:       result.Category,
		Question:       result.Question,
		Reference:      result.Answer,
	}

	chunks := result.Chunks
	if len(chunks) > g.config.ContextK {
		chunks = chunks[:g.config.ContextK]
	}
	for _, c := range chunks {
		answer.ContextUnits = append(answer.ContextUnits, c.UnitID)
	}

	temperature := 0.0
	maxTokens := g.config.MaxTokens
	resp, err := g.config.Provider.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: answerPrompt},
			{Role: llm.RoleUser, Content: contextBlock(chunks, result.Question)},
		},
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		answer.Error = err.Error()
		g.logger.Warn("answer generation failed",
			zap.String("question_id", result.QuestionID),
			zap.Error(err),
		)
		return answer
	}

	answer.Generated = llm.StripThinking(resp.Message.Content)
	answer.Score = metrics.ScoreText(answer.Generated, answer.Reference)

	if g.config.Embedder != nil {
		if cosine, err := g.cosine(ctx, answer.Generated, answer.Reference); err != nil {
			g.logger.Warn("cosine scoring failed",
				zap.String("question_id", result.QuestionID),
				zap.Error(err),
			)
		} else {
			answer.Score.Cosine = cosine
		}
	}

	return answer
}

// cosine embeds both texts and returns their similarity.
func (g *Generator) cosine(ctx context.Context, generated, reference string) (float64, error) {
	gv, err := g.config.Embedder.Embed(ctx, generated)
	if err != nil {
		return 0, fmt.Errorf("embedding generated answer: %w", err)
	}

	rv, err := g.config.Embedder.Embed(ctx, reference)
	if err != nil {
		return 0, fmt.Errorf("embedding reference answer: %w", err)
	}

	return metrics.Cosine(gv, rv), nil
}

// contextBlock formats the retrieved chunks and the question into the
// user message.
func contextBlock(chunks []retrieval.Chunk, question string) string {
	var b strings.Builder

	b.WriteString("Conversation memories:\n")
	if len(chunks) == 0 {
		b.WriteString("(none)\n")
	}
	for i, c := range chunks {
		b.WriteString(fmt.Sprintf("%d. ", i+1))
		if c.Timestamp != "" {
			b.WriteString("[" + c.Timestamp + "] ")
		}
		b.WriteString(strings.TrimSpace(c.Content))
		b.WriteString("\n")
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:")

	return b.String()
}
