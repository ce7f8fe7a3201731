package csvrow_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/pkg/storage/csvrow"
)

var at = time.Date(2025, 3, 4, 5, 6, 7, 890_000_000, time.UTC)

var _ = Describe("csvrow", func() {
	Describe("Feedback", func() {
		It("renders plain answers unquoted", func() {
			row := csvrow.Feedback(&storage.Feedback{
				Rating: "5", Liked: "fast", Frustrated: "nothing",
				FeatureRequest: "dark mode", Recommendation: "yes",
				Timestamp: at,
			})
			Expect(row).To(Equal("2025-03-04T05:06:07.890Z,5,fast,nothing,dark mode,yes,"))
		})

		It("flattens newlines and quotes commas and quotes", func() {
			row := csvrow.Feedback(&storage.Feedback{
				Rating: "4", Liked: "clear,\nshort", Frustrated: `the "sources"`,
				FeatureRequest: "x", Recommendation: "y", AdditionalComments: "line1\r\nline2",
				Timestamp: at,
			})
			Expect(row).To(Equal(`2025-03-04T05:06:07.890Z,4,"clear, short","the ""sources""",x,y,line1 line2`))
		})
	})

	Describe("QueryLog", func() {
		It("renders a query log line", func() {
			row := csvrow.QueryLog(&storage.QueryLog{
				Query: "How many days of leave?", Response: "You get 25 days.",
				UserID: "anonymous", SessionID: "s1", Timestamp: at,
			})
			Expect(row).To(Equal("2025-03-04T05:06:07.890Z,anonymous,s1,How many days of leave?,You get 25 days."))
		})

		It("cuts long responses to 500 characters", func() {
			row := csvrow.QueryLog(&storage.QueryLog{
				Query: "q", Response: strings.Repeat("é", 600),
				UserID: "u", SessionID: "s", Timestamp: at,
			})
			Expect(row).To(HaveSuffix("," + strings.Repeat("é", 500)))
		})

		It("removes a greeting preamble from the first line", func() {
			row := csvrow.QueryLog(&storage.QueryLog{
				Query:    "q",
				Response: "Hello! I'm your policy assistant. How can I help you today? Ask away.\nLeave is 25 days.",
				UserID:   "u", SessionID: "s", Timestamp: at,
			})
			Expect(row).To(HaveSuffix(",Leave is 25 days."))
		})

		It("leaves an empty field when the response was only a greeting", func() {
			row := csvrow.QueryLog(&storage.QueryLog{
				Query: "q", Response: "Hi there, how can I assist you?",
				UserID: "u", SessionID: "s", Timestamp: at,
			})
			Expect(row).To(HaveSuffix(",q,"))
		})
	})

	Describe("Timestamp", func() {
		It("always renders in UTC", func() {
			local := at.In(time.FixedZone("X", 3600))
			Expect(csvrow.Timestamp(local)).To(Equal("2025-03-04T05:06:07.890Z"))
		})
	})
})
