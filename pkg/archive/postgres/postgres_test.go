package postgres_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/membench/pkg/archive"
	"github.com/papercomputeco/membench/pkg/archive/postgres"
)

func TestPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Archive Postgres Suite")
}

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("MEMBENCH_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("MEMBENCH_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

func postgresTestRecord(runID string, createdAt time.Time) *archive.Record {
	return &archive.Record{
		RunID:       runID,
		DatasetPath: "datasets/locomo10.json",
		CreatedAt:   createdAt,
		Succeeded:   8,
		Failed:      1,
		Skipped:     1,
		DurationMs:  4200,
		Config:      json.RawMessage(`{"benchmark":{"workers":2}}`),
		Metrics:     json.RawMessage(`{"f1":0.42}`),
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *postgres.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		dsn := connStr()

		var err error
		driver, err = postgres.NewDriver(ctx, dsn)
		Expect(err).NotTo(HaveOccurred())

		// Clean all runs before each test for isolation.
		_, err = driver.DB.ExecContext(ctx, "DELETE FROM runs")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("Put and Get", func() {
		It("round-trips a record", func() {
			createdAt := time.Date(2025, 6, 15, 13, 45, 1, 0, time.UTC)

			isNew, err := driver.Put(ctx, postgresTestRecord("20250615_134501", createdAt))
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			retrieved, err := driver.Get(ctx, "20250615_134501")
			Expect(err).NotTo(HaveOccurred())
			Expect(retrieved.CreatedAt).To(BeTemporally("==", createdAt))
			Expect(retrieved.Succeeded).To(Equal(8))
			Expect(retrieved.Config).To(MatchJSON(`{"benchmark":{"workers":2}}`))
		})

		It("is idempotent for duplicate puts", func() {
			record := postgresTestRecord("20250615_134501", time.Now().UTC())

			isNew, err := driver.Put(ctx, record)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeTrue())

			isNew, err = driver.Put(ctx, record)
			Expect(err).NotTo(HaveOccurred())
			Expect(isNew).To(BeFalse())
		})

		It("returns NotFoundError for an unknown run id", func() {
			_, err := driver.Get(ctx, "20990101_000000")
			Expect(err).To(HaveOccurred())

			var notFoundErr archive.NotFoundError
			Expect(err).To(BeAssignableToTypeOf(notFoundErr))
		})
	})

	Describe("List", func() {
		It("returns records newest first", func() {
			base := time.Date(2025, 6, 15, 13, 45, 1, 0, time.UTC)
			for i, id := range []string{"20250615_134501", "20250615_134502"} {
				_, err := driver.Put(ctx, postgresTestRecord(id, base.Add(time.Duration(i)*time.Second)))
				Expect(err).NotTo(HaveOccurred())
			}

			records, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
			Expect(records[0].RunID).To(Equal("20250615_134502"))
		})
	})
})
