package chroma_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/vector"
	"github.com/papercomputeco/membench/pkg/vector/chroma"
)

var _ = Describe("Driver", func() {
	var logger *zap.Logger

	BeforeEach(func() {
		logger = zap.NewNop()
	})

	Describe("NewDriver", func() {
		It("should return an error when URL is empty", func() {
			_, err := chroma.NewDriver(chroma.Config{URL: ""}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("chroma URL is required"))
		})

		It("should succeed after retrying when Chroma becomes available", func() {
			var attempts atomic.Int32

			// The GET request for the collection and the POST to create it
			// are separate requests. Each retry attempt may hit both endpoints.
			// We track total requests and fail the first few to simulate Chroma
			// still starting up.
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempt := attempts.Add(1)

				// Fail the first 4 requests (2 retry cycles: GET+POST each),
				// succeed on the 5th (the GET of the 3rd retry cycle).
				if attempt <= 4 {
					http.Error(w, "service unavailable", http.StatusServiceUnavailable)
					return
				}

				w.Header().Set("Content-Type", "application/json")
				json.NewEncoder(w).Encode(map[string]string{
					"id":   "test-collection-id",
					"name": "membench",
				})
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    5,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).NotTo(HaveOccurred())
			Expect(driver).NotTo(BeNil())
			Expect(attempts.Load()).To(BeNumerically(">=", int32(5)))
		})

		It("should return an error after exhausting all retries", func() {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			}))
			defer server.Close()

			_, err := chroma.NewDriver(chroma.Config{
				URL:           server.URL,
				MaxRetries:    3,
				RetryDelay:    10 * time.Millisecond,
				MaxRetryDelay: 50 * time.Millisecond,
			}, logger)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("after 3 attempts"))
			Expect(err).To(MatchError(vector.ErrConnection))
		})
	})

	Describe("Add and Query", func() {
		It("round-trips documents through the REST API", func() {
			var added chromaCapture
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				switch {
				case r.Method == http.MethodGet:
					json.NewEncoder(w).Encode(map[string]string{"id": "coll-1", "name": "membench"})
				case r.URL.Path == "/api/v2/tenants/default_tenant/databases/default_database/collections/coll-1/add":
					Expect(json.NewDecoder(r.Body).Decode(&added)).To(Succeed())
					w.WriteHeader(http.StatusCreated)
				case r.URL.Path == "/api/v2/tenants/default_tenant/databases/default_database/collections/coll-1/query":
					json.NewEncoder(w).Encode(map[string]any{
						"ids":       [][]string{{"n1", "n2"}},
						"distances": [][]float32{{0.0, 1.0}},
						"documents": [][]string{{"first note", "second note"}},
						"metadatas": [][]map[string]any{{{"session": "s1"}, {"session": "s2"}}},
					})
				default:
					http.Error(w, "unexpected request", http.StatusBadRequest)
				}
			}))
			defer server.Close()

			driver, err := chroma.NewDriver(chroma.Config{URL: server.URL, MaxRetries: 1}, logger)
			Expect(err).NotTo(HaveOccurred())

			docs := []vector.Document{
				{ID: "n1", Content: "first note", Metadata: map[string]string{"session": "s1"}, Embedding: []float32{1, 0}},
				{ID: "n2", Content: "second note", Metadata: map[string]string{"session": "s2"}, Embedding: []float32{0, 1}},
			}
			Expect(driver.Add(context.Background(), docs)).To(Succeed())
			Expect(added.IDs).To(Equal([]string{"n1", "n2"}))
			Expect(added.Documents).To(Equal([]string{"first note", "second note"}))

			results, err := driver.Query(context.Background(), []float32{1, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("n1"))
			Expect(results[0].Content).To(Equal("first note"))
			Expect(results[0].Metadata).To(HaveKeyWithValue("session", "s1"))
			Expect(results[0].Score).To(BeNumerically(">", results[1].Score))
		})
	})

	Describe("Interface compliance", func() {
		It("should implement vector.Driver interface", func() {
			var _ vector.Driver = (*chroma.Driver)(nil)
		})
	})
})

// chromaCapture mirrors the add request body for assertions.
type chromaCapture struct {
	IDs       []string         `json:"ids"`
	Documents []string         `json:"documents"`
	Metadatas []map[string]any `json:"metadatas"`
}
