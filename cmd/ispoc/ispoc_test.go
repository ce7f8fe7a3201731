package ispoccmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	ispoccmder "github.com/papercomputeco/ispoc/cmd/ispoc"
)

var _ = Describe("NewIspocCmd", func() {
	It("registers every subcommand", func() {
		cmd := ispoccmder.NewIspocCmd()

		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "chat", "admin", "config", "init", "version"))
	})

	It("has the global flags", func() {
		cmd := ispoccmder.NewIspocCmd()

		debug := cmd.PersistentFlags().Lookup("debug")
		Expect(debug).NotTo(BeNil())
		Expect(debug.Shorthand).To(Equal("d"))
		Expect(cmd.PersistentFlags().Lookup("config-dir")).NotTo(BeNil())
	})

	Describe(".env loading", func() {
		var (
			tmpDir  string
			origDir string
		)

		BeforeEach(func() {
			var err error
			tmpDir, err = os.MkdirTemp("", "ispoc-root-test-*")
			Expect(err).NotTo(HaveOccurred())

			origDir, err = os.Getwd()
			Expect(err).NotTo(HaveOccurred())
			Expect(os.Chdir(tmpDir)).To(Succeed())

			Expect(os.Unsetenv("ISPOC_TEST_DOTENV")).To(Succeed())
		})

		AfterEach(func() {
			Expect(os.Chdir(origDir)).To(Succeed())
			os.RemoveAll(tmpDir)
			os.Unsetenv("ISPOC_TEST_DOTENV")
		})

		It("loads .env from the working directory before running a command", func() {
			Expect(os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("ISPOC_TEST_DOTENV=loaded\n"), 0o600)).To(Succeed())

			cmd := ispoccmder.NewIspocCmd()
			cmd.SetOut(&bytes.Buffer{})
			cmd.SetArgs([]string{"version"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(os.Getenv("ISPOC_TEST_DOTENV")).To(Equal("loaded"))
		})

		It("runs without a .env file", func() {
			cmd := ispoccmder.NewIspocCmd()
			out := &bytes.Buffer{}
			cmd.SetOut(out)
			cmd.SetArgs([]string{"version"})

			Expect(cmd.Execute()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Version:"))
		})
	})
})
