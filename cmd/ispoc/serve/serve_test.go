package servecmder_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	servecmder "github.com/papercomputeco/ispoc/cmd/ispoc/serve"
	"github.com/papercomputeco/ispoc/pkg/config"
)

var _ = Describe("NewServeCmd", func() {
	It("has api and proxy subcommands", func() {
		cmd := servecmder.NewServeCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ConsistOf("api", "proxy"))
	})

	It("exposes both listen addresses with their shorthands", func() {
		cmd := servecmder.NewServeCmd()
		defaults := config.NewDefaultConfig()

		proxyListen := cmd.Flags().Lookup("proxy-listen")
		Expect(proxyListen).NotTo(BeNil())
		Expect(proxyListen.Shorthand).To(Equal("p"))
		Expect(proxyListen.DefValue).To(Equal(defaults.Proxy.Listen))

		apiListen := cmd.Flags().Lookup("api-listen")
		Expect(apiListen).NotTo(BeNil())
		Expect(apiListen.Shorthand).To(Equal("a"))
		Expect(apiListen.DefValue).To(Equal(defaults.API.Listen))
	})

	It("shares the log file flag with its subcommands", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.PersistentFlags().Lookup("log-file")).NotTo(BeNil())

		for _, sub := range cmd.Commands() {
			Expect(sub.InheritedFlags().Lookup("log-file")).NotTo(BeNil())
		}
	})

	It("registers the worker sizing flags", func() {
		cmd := servecmder.NewServeCmd()
		Expect(cmd.Flags().Lookup("workers").DefValue).To(Equal("3"))
		Expect(cmd.Flags().Lookup("queue-size").DefValue).To(Equal("256"))
	})
})
