// Package storagetest holds the behaviour every storage.Driver must share,
// written as ginkgo specs that driver packages register in their suites.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ispoc/pkg/storage"
)

// Now is the fixed clock used for records created by the shared specs.
var Now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// NewFeedback returns a complete, normalized feedback record.
func NewFeedback(rating string) *storage.Feedback {
	f := &storage.Feedback{
		Rating:         rating,
		Liked:          "quick answers",
		Frustrated:     "none",
		FeatureRequest: "export",
		Recommendation: "yes",
	}
	f.Normalize(Now)
	return f
}

// NewQueryLog returns a complete, normalized query log.
func NewQueryLog(query, response string) *storage.QueryLog {
	l := &storage.QueryLog{Query: query, Response: response, SessionID: "session-1"}
	l.Normalize(Now)
	return l
}

// DescribeDriver registers the shared driver specs. newDriver is called before
// each test and the driver is closed afterwards.
func DescribeDriver(name string, newDriver func() storage.Driver) bool {
	return Describe(name+" driver", func() {
		var (
			d   storage.Driver
			ctx context.Context
		)

		BeforeEach(func() {
			ctx = context.Background()
			d = newDriver()
		})

		AfterEach(func() {
			Expect(d.Close()).To(Succeed())
		})

		It("exports empty record sets with headers", func() {
			fb, err := d.FeedbackCSV(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fb.Headers).To(Equal(storage.FeedbackCSVHeaders))
			Expect(fb.Rows).To(BeEmpty())

			ql, err := d.QueryLogCSV(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ql.Headers).To(Equal(storage.QueryLogCSVHeaders))
			Expect(ql.Rows).To(BeEmpty())
		})

		It("exports feedback oldest first", func() {
			Expect(d.AddFeedback(ctx, NewFeedback("1"))).To(Succeed())
			Expect(d.AddFeedback(ctx, NewFeedback("2"))).To(Succeed())

			fb, err := d.FeedbackCSV(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fb.Rows).To(Equal([]string{
				"2025-06-01T12:00:00.000Z,1,quick answers,none,export,yes,",
				"2025-06-01T12:00:00.000Z,2,quick answers,none,export,yes,",
			}))
		})

		It("exports query logs oldest first", func() {
			Expect(d.AddQueryLog(ctx, NewQueryLog("first?", "one"))).To(Succeed())
			Expect(d.AddQueryLog(ctx, NewQueryLog("second?", "two, or three"))).To(Succeed())

			ql, err := d.QueryLogCSV(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ql.Rows).To(Equal([]string{
				"2025-06-01T12:00:00.000Z,anonymous,session-1,first?,one",
				`2025-06-01T12:00:00.000Z,anonymous,session-1,second?,"two, or three"`,
			}))
		})

		It("clears query logs but keeps feedback", func() {
			Expect(d.AddFeedback(ctx, NewFeedback("5"))).To(Succeed())
			Expect(d.AddQueryLog(ctx, NewQueryLog("q", "a"))).To(Succeed())

			Expect(d.ClearQueryLogs(ctx)).To(Succeed())

			ql, err := d.QueryLogCSV(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(ql.Headers).To(Equal(storage.QueryLogCSVHeaders))
			Expect(ql.Rows).To(BeEmpty())

			fb, err := d.FeedbackCSV(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fb.Rows).To(HaveLen(1))
		})

		It("rejects nil records", func() {
			Expect(d.AddFeedback(ctx, nil)).To(HaveOccurred())
			Expect(d.AddQueryLog(ctx, nil)).To(HaveOccurred())
		})
	})
}
