package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/membench/pkg/archive"
)

// ErrorResponse is the JSON error envelope for API failures.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RunSummary is the list-item view of an archived run.
type RunSummary struct {
	RunID       string    `json:"run_id"`
	DatasetPath string    `json:"dataset_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	DurationMs  int64     `json:"duration_ms"`
}

func summarize(record *archive.Record) RunSummary {
	return RunSummary{
		RunID:       record.RunID,
		DatasetPath: record.DatasetPath,
		CreatedAt:   record.CreatedAt,
		Succeeded:   record.Succeeded,
		Failed:      record.Failed,
		Skipped:     record.Skipped,
		DurationMs:  record.DurationMs,
	}
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListRuns returns summaries of all archived runs, newest first.
func (s *Server) handleListRuns(c *fiber.Ctx) error {
	records, err := s.store.List(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to list runs"})
	}

	runs := make([]RunSummary, 0, len(records))
	for _, record := range records {
		runs = append(runs, summarize(record))
	}

	return c.JSON(map[string]any{
		"count": len(runs),
		"runs":  runs,
	})
}

// handleGetRun returns a single archived run by its run id, including
// the config snapshot and headline metrics.
func (s *Server) handleGetRun(c *fiber.Ctx) error {
	runID := c.Params("id")
	if runID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "run id parameter required"})
	}

	record, err := s.store.Get(c.Context(), runID)
	if err != nil {
		var notFound archive.NotFoundError
		if errors.As(err, &notFound) {
			return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "run not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to load run"})
	}

	return c.JSON(record)
}
