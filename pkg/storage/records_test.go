package storage_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ispoc/pkg/storage"
)

var _ = Describe("Feedback", func() {
	complete := func() *storage.Feedback {
		return &storage.Feedback{
			Rating:         "4",
			Liked:          "speed",
			Frustrated:     "nothing",
			FeatureRequest: "citations",
			Recommendation: "yes",
		}
	}

	It("accepts a submission without additional comments", func() {
		Expect(complete().Validate()).To(Succeed())
	})

	DescribeTable("rejects blank required answers",
		func(blank func(f *storage.Feedback)) {
			f := complete()
			blank(f)
			Expect(f.Validate()).To(MatchError(storage.ErrInvalidFeedback))
		},
		Entry("rating", func(f *storage.Feedback) { f.Rating = "" }),
		Entry("liked", func(f *storage.Feedback) { f.Liked = "  " }),
		Entry("frustrated", func(f *storage.Feedback) { f.Frustrated = "" }),
		Entry("feature request", func(f *storage.Feedback) { f.FeatureRequest = "\n" }),
		Entry("recommendation", func(f *storage.Feedback) { f.Recommendation = "" }),
	)

	It("stamps a missing timestamp in UTC and keeps an existing one", func() {
		now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))

		f := complete()
		f.Normalize(now)
		Expect(f.Timestamp).To(Equal(now.UTC()))

		earlier := now.Add(-time.Hour)
		f.Timestamp = earlier
		f.Normalize(now)
		Expect(f.Timestamp).To(Equal(earlier))
	})
})

var _ = Describe("QueryLog", func() {
	It("requires a query and a response", func() {
		Expect((&storage.QueryLog{Query: "q", Response: "a"}).Validate()).To(Succeed())
		Expect((&storage.QueryLog{Query: "q"}).Validate()).To(MatchError(storage.ErrInvalidQueryLog))
		Expect((&storage.QueryLog{Response: "a"}).Validate()).To(MatchError(storage.ErrInvalidQueryLog))
	})

	It("fills identifiers and the timestamp", func() {
		l := &storage.QueryLog{Query: "q", Response: "a"}
		l.Normalize(time.Unix(0, 0))

		Expect(l.ID).NotTo(BeEmpty())
		Expect(l.UserID).To(Equal(storage.DefaultUserID))
		Expect(l.SessionID).To(Equal(storage.DefaultSessionID))
		Expect(l.Timestamp).To(Equal(time.Unix(0, 0).UTC()))
	})

	It("keeps identifiers supplied by the client", func() {
		l := &storage.QueryLog{ID: "id-1", UserID: "u", SessionID: "s"}
		l.Normalize(time.Now())
		Expect(l.ID).To(Equal("id-1"))
		Expect(l.UserID).To(Equal("u"))
		Expect(l.SessionID).To(Equal("s"))
	})
})
