package admincmder_test

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ispoc/api"
	admincmder "github.com/papercomputeco/ispoc/cmd/ispoc/admin"
	"github.com/papercomputeco/ispoc/pkg/config"
	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/pkg/storage/inmemory"
)

var _ = Describe("NewAdminCmd", func() {
	It("has logs, feedback and clear-logs subcommands", func() {
		cmd := admincmder.NewAdminCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ConsistOf("logs", "feedback", "clear-logs"))
	})

	It("shares the api target flag with its subcommands", func() {
		cmd := admincmder.NewAdminCmd()
		flag := cmd.PersistentFlags().Lookup("api-target")
		Expect(flag).NotTo(BeNil())
		Expect(flag.DefValue).To(Equal(config.NewDefaultConfig().Client.APITarget))
	})
})

var _ = Describe("Admin commands", func() {
	var (
		driver    *inmemory.Driver
		target    string
		configDir string
	)

	BeforeEach(func() {
		configDir = GinkgoT().TempDir()
		GinkgoT().Setenv(config.EnvAdminToken, "s3cret")

		driver = inmemory.NewDriver()
		ctx := context.Background()
		Expect(driver.AddQueryLog(ctx, &storage.QueryLog{
			ID: "log-1", Query: "leave?", Response: "25 days", UserID: "anonymous", SessionID: "unknown",
		})).To(Succeed())

		server, err := api.NewServer(api.Config{AdminToken: "s3cret"}, driver, nil)
		Expect(err).NotTo(HaveOccurred())

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		go func() { _ = server.RunWithListener(listener) }()
		DeferCleanup(func() { _ = server.Shutdown() })

		target = "http://" + listener.Addr().String()
	})

	run := func(args ...string) (string, error) {
		cmd := admincmder.NewAdminCmd()
		cmd.PersistentFlags().BoolP("debug", "d", false, "")
		cmd.PersistentFlags().String("config-dir", "", "")
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true

		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs(append(args, "--config-dir", configDir, "--api-target", target))
		err := cmd.Execute()
		return out.String(), err
	}

	It("prints the query log export", func() {
		out, err := run("logs")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(HavePrefix(storage.QueryLogCSVHeaders + "\n"))
		Expect(out).To(ContainSubstring("leave?"))
	})

	It("writes the export to a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "logs.csv")

		_, err := run("logs", "-o", path)
		Expect(err).NotTo(HaveOccurred())

		data, err := os.ReadFile(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(ContainSubstring("25 days"))
	})

	It("requires --yes before clearing", func() {
		_, err := run("clear-logs")
		Expect(err).To(MatchError(ContainSubstring("--yes")))
		Expect(driver.QueryLogs()).To(HaveLen(1))
	})

	It("clears query logs", func() {
		_, err := run("clear-logs", "--yes")
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.QueryLogs()).To(BeEmpty())
	})

	It("explains a rejected token", func() {
		GinkgoT().Setenv(config.EnvAdminToken, "wrong")

		_, err := run("feedback")
		Expect(err).To(MatchError(ContainSubstring("ISPOC_ADMIN_TOKEN")))
	})
})

var _ = Describe("WriteCSV", func() {
	It("writes the header and one line per row", func() {
		var buf bytes.Buffer
		Expect(admincmder.WriteCSV(&buf, &storage.CSVExport{Headers: "a,b", Rows: []string{"1,2", "3,4"}})).To(Succeed())
		Expect(buf.String()).To(Equal("a,b\n1,2\n3,4\n"))
	})
})
