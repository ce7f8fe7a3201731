package logger_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/logger"
)

var _ = Describe("NewServiceLogger", func() {
	It("returns a console logger without a log file", func() {
		log, closeFn, err := logger.NewServiceLogger(false, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(log).NotTo(BeNil())
		Expect(closeFn()).To(Succeed())
	})

	It("appends JSON entries to the log file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "ispoc.log")

		log, closeFn, err := logger.NewServiceLogger(false, path)
		Expect(err).NotTo(HaveOccurred())
		log.Info("turn logged", zap.String("session_id", "s-1"))
		log.Debug("hidden")
		Expect(closeFn()).To(Succeed())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		Expect(lines).To(HaveLen(1))

		var entry map[string]any
		Expect(json.Unmarshal([]byte(lines[0]), &entry)).To(Succeed())
		Expect(entry["msg"]).To(Equal("turn logged"))
		Expect(entry["session_id"]).To(Equal("s-1"))
	})

	It("fails for an unwritable path", func() {
		_, _, err := logger.NewServiceLogger(false, filepath.Join(GinkgoT().TempDir(), "missing", "ispoc.log"))
		Expect(err).To(MatchError(ContainSubstring("opening log file")))
	})
})
