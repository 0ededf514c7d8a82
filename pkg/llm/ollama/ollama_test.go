package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/llm"
	"github.com/papercomputeco/membench/pkg/llm/ollama"
)

func TestOllama(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Ollama Provider Suite")
}

var _ = Describe("Provider", func() {
	It("applies defaults for empty config", func() {
		provider, err := ollama.NewProvider(ollama.ProviderConfig{})
		Expect(err).NotTo(HaveOccurred())
		Expect(provider).NotTo(BeNil())
	})

	It("completes a chat against the native API", func() {
		var captured struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
			Stream bool `json:"stream"`
		}

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/api/chat"))
			Expect(json.NewDecoder(r.Body).Decode(&captured)).To(Succeed())

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"model":             "qwen3",
				"created_at":        time.Now().Format(time.RFC3339Nano),
				"message":           map[string]string{"role": "assistant", "content": "Lisbon."},
				"done":              true,
				"done_reason":       "stop",
				"prompt_eval_count": 12,
				"eval_count":        3,
				"total_duration":    int64(98765),
			})
		}))
		defer server.Close()

		provider, err := ollama.NewProvider(ollama.ProviderConfig{BaseURL: server.URL, Model: "qwen3"})
		Expect(err).NotTo(HaveOccurred())

		resp, err := provider.Chat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{
				{Role: llm.RoleSystem, Content: "Answer concisely."},
				{Role: llm.RoleUser, Content: "Capital of Portugal?"},
			},
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(captured.Model).To(Equal("qwen3"))
		Expect(captured.Stream).To(BeFalse())
		Expect(captured.Messages).To(HaveLen(2))
		Expect(captured.Messages[0].Role).To(Equal("system"))
		Expect(captured.Messages[1].Content).To(Equal("Capital of Portugal?"))

		Expect(resp.Message.Role).To(Equal(llm.RoleAssistant))
		Expect(resp.Message.Content).To(Equal("Lisbon."))
		Expect(resp.StopReason).To(Equal("stop"))
		Expect(resp.Usage).NotTo(BeNil())
		Expect(resp.Usage.PromptTokens).To(Equal(12))
		Expect(resp.Usage.CompletionTokens).To(Equal(3))
		Expect(resp.Usage.TotalTokens).To(Equal(15))
	})

	It("wraps API errors in ErrChat", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not found", http.StatusNotFound)
		}))
		defer server.Close()

		provider, err := ollama.NewProvider(ollama.ProviderConfig{BaseURL: server.URL})
		Expect(err).NotTo(HaveOccurred())

		_, err = provider.Chat(context.Background(), &llm.ChatRequest{
			Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}},
		})
		Expect(err).To(MatchError(llm.ErrChat))
		Expect(err.Error()).To(ContainSubstring("404"))
	})

	It("implements the Provider interface", func() {
		var _ llm.Provider = (*ollama.Provider)(nil)
	})
})
