package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/archive/inmemory"
)

func TestMCP(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "MCP Suite")
}

func mcpTestRecord(runID string, createdAt time.Time) *archive.Record {
	return &archive.Record{
		RunID:      runID,
		CreatedAt:  createdAt,
		Succeeded:  8,
		Failed:     1,
		Skipped:    1,
		DurationMs: 4200,
		Metrics:    json.RawMessage(`{"f1":0.42}`),
	}
}

var _ = Describe("NewServer", func() {
	It("returns an error when the archive store is nil", func() {
		_, err := NewServer(Config{Logger: zap.NewNop()})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("archive store is required"))
	})

	It("returns an error when the logger is nil", func() {
		_, err := NewServer(Config{Store: inmemory.NewDriver()})
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("logger is required"))
	})

	It("creates a noop server without dependencies", func() {
		server, err := NewServer(Config{Noop: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(server).NotTo(BeNil())
	})

	It("exposes an HTTP handler when tools are configured", func() {
		server, err := NewServer(Config{
			Store:  inmemory.NewDriver(),
			Logger: zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(server.Handler()).NotTo(BeNil())
	})
})

var _ = Describe("Run tools", func() {
	var (
		server *Server
		store  *inmemory.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()

		var err error
		server, err = NewServer(Config{
			Store:  store,
			Logger: zap.NewNop(),
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("list_runs", func() {
		It("returns archived runs newest first", func() {
			base := time.Date(2025, 6, 15, 13, 45, 1, 0, time.UTC)
			for i, id := range []string{"20250615_134501", "20250615_134502"} {
				_, err := store.Put(ctx, mcpTestRecord(id, base.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
			}

			result, output, err := server.handleListRuns(ctx, &sdkmcp.CallToolRequest{}, ListRunsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(Equal(2))
			Expect(output.Runs[0].RunID).To(Equal("20250615_134502"))
		})

		It("caps results at the requested limit", func() {
			base := time.Date(2025, 6, 15, 13, 45, 1, 0, time.UTC)
			for i, id := range []string{"20250615_134501", "20250615_134502", "20250615_134503"} {
				_, err := store.Put(ctx, mcpTestRecord(id, base.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
			}

			_, output, err := server.handleListRuns(ctx, &sdkmcp.CallToolRequest{}, ListRunsInput{Limit: 2})
			Expect(err).NotTo(HaveOccurred())
			Expect(output.Count).To(Equal(2))
			Expect(output.Runs[0].RunID).To(Equal("20250615_134503"))
		})

		It("returns an empty list for an empty archive", func() {
			result, output, err := server.handleListRuns(ctx, &sdkmcp.CallToolRequest{}, ListRunsInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Count).To(BeZero())
			Expect(output.Runs).NotTo(BeNil())
		})
	})

	Describe("get_run", func() {
		It("returns the record with its metrics snapshot", func() {
			_, err := store.Put(ctx, mcpTestRecord("20250615_134501", time.Now().UTC()))
			Expect(err).NotTo(HaveOccurred())

			result, output, err := server.handleGetRun(ctx, &sdkmcp.CallToolRequest{}, GetRunInput{RunID: "20250615_134501"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(output.Run.RunID).To(Equal("20250615_134501"))
			Expect(output.Run.Metrics).To(MatchJSON(`{"f1":0.42}`))
		})

		It("flags a missing run_id argument as a tool error", func() {
			result, _, err := server.handleGetRun(ctx, &sdkmcp.CallToolRequest{}, GetRunInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("flags an unknown run id as a tool error", func() {
			result, _, err := server.handleGetRun(ctx, &sdkmcp.CallToolRequest{}, GetRunInput{RunID: "20990101_000000"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})
})
