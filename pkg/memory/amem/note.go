package amem

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/llm"
	"github.com/papercomputeco/membench/pkg/metrics"
)

// note is the enrichment attached to a stored unit.
type note struct {
	Keywords []string `json:"keywords"`
	Context  string   `json:"context"`
	Tags     []string `json:"tags"`
}

const notePrompt = `Generate a structured analysis of the following conversation turn by:
1. Identifying the most salient keywords (focus on nouns, verbs, and named entities)
2. Extracting the core context the turn should be remembered by
3. Creating relevant categorical tags

Format the response as a JSON object:
{
  "keywords": ["keyword1", "keyword2"],
  "context": "one sentence summarizing the turn",
  "tags": ["tag1", "tag2"]
}

Respond with the JSON object only.`

const heuristicKeywordCap = 8

// enrich builds a note for the unit content, via one LLM call when a note
// provider is configured. Any enrichment failure degrades to the
// heuristic; it never fails the insert.
func (a *Adapter) enrich(ctx context.Context, content string) note {
	if a.notes == nil {
		return heuristicNote(content)
	}

	temp := 0.2
	resp, err := a.notes.Chat(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: notePrompt},
			{Role: llm.RoleUser, Content: content},
		},
		Temperature: &temp,
	})
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("note generation failed, using heuristic keywords", zap.Error(err))
		}
		return heuristicNote(content)
	}

	parsed, err := parseNote(resp.Message.Content)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("unparsable note response, using heuristic keywords", zap.Error(err))
		}
		return heuristicNote(content)
	}

	return parsed
}

// parseNote extracts the JSON object from a model reply, tolerating prose
// and reasoning traces around it.
func parseNote(reply string) (note, error) {
	cleaned := llm.StripThinking(reply)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		cleaned = cleaned[start : end+1]
	}

	var n note
	if err := json.Unmarshal([]byte(cleaned), &n); err != nil {
		return note{}, err
	}
	return n, nil
}

// heuristicNote extracts the most frequent normalized tokens as keywords.
// Context and tags stay empty; retrieval still works off the content.
func heuristicNote(content string) note {
	tokens := metrics.NormalizeTokens(content)
	if len(tokens) == 0 {
		return note{}
	}

	counts := make(map[string]int, len(tokens))
	firstSeen := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		if _, ok := counts[tok]; !ok {
			firstSeen[tok] = i
		}
		counts[tok]++
	}

	unique := make([]string, 0, len(counts))
	for tok := range counts {
		unique = append(unique, tok)
	}
	sort.Slice(unique, func(i, j int) bool {
		if counts[unique[i]] != counts[unique[j]] {
			return counts[unique[i]] > counts[unique[j]]
		}
		return firstSeen[unique[i]] < firstSeen[unique[j]]
	})

	if len(unique) > heuristicKeywordCap {
		unique = unique[:heuristicKeywordCap]
	}
	return note{Keywords: unique}
}

// noteText composes the text that gets embedded: the unit content plus its
// enrichment, so keyword and context matches pull the note in too.
func noteText(content string, n note) string {
	var b strings.Builder
	b.WriteString(content)
	if len(n.Keywords) > 0 {
		b.WriteString("\nkeywords: ")
		b.WriteString(strings.Join(n.Keywords, ", "))
	}
	if n.Context != "" {
		b.WriteString("\ncontext: ")
		b.WriteString(n.Context)
	}
	if len(n.Tags) > 0 {
		b.WriteString("\ntags: ")
		b.WriteString(strings.Join(n.Tags, ", "))
	}
	return b.String()
}

func marshalStrings(values []string) string {
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalStrings(encoded string) []string {
	if encoded == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(encoded), &values); err != nil {
		return nil
	}
	return values
}
