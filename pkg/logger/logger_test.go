package logger_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/membench/pkg/logger"
)

var _ = Describe("Logger", func() {
	Describe("NewLoggerWithWriters", func() {
		It("writes structured fields to the writer", func() {
			var buf bytes.Buffer
			log := logger.NewLoggerWithWriters(false, &buf)
			log.Info("hello", zap.String("key", "value"))
			_ = log.Sync()

			output := buf.String()
			Expect(output).To(ContainSubstring("hello"))
			Expect(output).To(ContainSubstring("key"))
			Expect(output).To(ContainSubstring("value"))
		})

		It("emits debug records when debug is enabled", func() {
			var buf bytes.Buffer
			log := logger.NewLoggerWithWriters(true, &buf)
			log.Debug("debug msg")
			_ = log.Sync()

			Expect(buf.String()).To(ContainSubstring("debug msg"))
		})

		It("filters debug records when debug is disabled", func() {
			var buf bytes.Buffer
			log := logger.NewLoggerWithWriters(false, &buf)
			log.Debug("hidden")
			_ = log.Sync()

			Expect(buf.String()).To(BeEmpty())
		})

		It("tees records to every writer", func() {
			var buf1, buf2 bytes.Buffer
			log := logger.NewLoggerWithWriters(false, &buf1, &buf2)
			log.Info("multi")
			_ = log.Sync()

			Expect(buf1.String()).To(ContainSubstring("multi"))
			Expect(buf2.String()).To(ContainSubstring("multi"))
		})
	})

	Describe("NewRunLogger", func() {
		var logDir string

		BeforeEach(func() {
			logDir = GinkgoT().TempDir()
		})

		It("creates a per-run log file and writes to it", func() {
			log, closeFn, err := logger.NewRunLogger(false, logDir, "20260101_120000")
			Expect(err).NotTo(HaveOccurred())

			log.Info("run started")
			Expect(closeFn()).To(Succeed())

			data, err := os.ReadFile(filepath.Join(logDir, "membench_20260101_120000.log"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(data)).To(ContainSubstring("run started"))
		})

		It("creates the log directory when missing", func() {
			nested := filepath.Join(logDir, "a", "b")
			_, closeFn, err := logger.NewRunLogger(false, nested, "20260101_120000")
			Expect(err).NotTo(HaveOccurred())
			defer func() { _ = closeFn() }()

			Expect(nested).To(BeADirectory())
		})

		It("returns a stdout-only logger when logDir is empty", func() {
			log, closeFn, err := logger.NewRunLogger(false, "", "20260101_120000")
			Expect(err).NotTo(HaveOccurred())
			Expect(log).NotTo(BeNil())
			Expect(closeFn()).To(Succeed())
		})
	})
})
