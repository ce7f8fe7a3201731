package responses

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fakeRunner struct {
	requests []TurnRequest
	ids      []string
	err      error
	block    chan struct{}
	started  chan struct{}
}

func (f *fakeRunner) RunTurn(_ context.Context, req TurnRequest, _ PartialFunc) (*Outcome, error) {
	f.requests = append(f.requests, req)
	if f.started != nil {
		close(f.started)
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	id := ""
	if len(f.ids) > 0 {
		id, f.ids = f.ids[0], f.ids[1:]
	}
	return &Outcome{Query: req.Query, Text: "answer", ContinuationID: id}, nil
}

var _ = Describe("Session", func() {
	var (
		runner  *fakeRunner
		session *Session
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = &fakeRunner{}
		session = NewSession(runner)
	})

	It("carries the continuation id into the next turn", func() {
		runner.ids = []string{"resp_1", "resp_2"}

		_, err := session.Send(ctx, "first", nil)
		Expect(err).NotTo(HaveOccurred())
		_, err = session.Send(ctx, "second", nil)
		Expect(err).NotTo(HaveOccurred())

		Expect(runner.requests).To(Equal([]TurnRequest{
			{Query: "first"},
			{Query: "second", PreviousTurnID: "resp_1"},
		}))
		Expect(session.PreviousID()).To(Equal("resp_2"))
	})

	It("forgets the conversation on Reset", func() {
		runner.ids = []string{"resp_1"}
		_, err := session.Send(ctx, "first", nil)
		Expect(err).NotTo(HaveOccurred())

		session.Reset()
		_, err = session.Send(ctx, "again", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.requests[1].PreviousTurnID).To(BeEmpty())
	})

	It("continues a resumed conversation", func() {
		session.Resume("resp_saved")
		Expect(session.PreviousID()).To(Equal("resp_saved"))

		_, err := session.Send(ctx, "again", nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(runner.requests[0].PreviousTurnID).To(Equal("resp_saved"))
	})

	It("keeps the previous id when a turn fails", func() {
		runner.ids = []string{"resp_1"}
		_, err := session.Send(ctx, "first", nil)
		Expect(err).NotTo(HaveOccurred())

		runner.err = &TransportError{StatusCode: 500, Status: "500 Internal Server Error"}
		out, err := session.Send(ctx, "second", nil)
		Expect(out).To(BeNil())
		Expect(err).To(HaveOccurred())
		Expect(session.PreviousID()).To(Equal("resp_1"))
		Expect(session.Busy()).To(BeFalse())
	})

	It("rejects a second turn while one is in flight", func() {
		runner.block = make(chan struct{})
		runner.started = make(chan struct{})

		done := make(chan error, 1)
		go func() {
			_, err := session.Send(ctx, "slow", nil)
			done <- err
		}()

		Eventually(runner.started).Should(BeClosed())
		Expect(session.Busy()).To(BeTrue())

		_, err := session.Send(ctx, "impatient", nil)
		Expect(errors.Is(err, ErrTurnInFlight)).To(BeTrue())

		close(runner.block)
		Eventually(done).Should(Receive(BeNil()))
		Expect(session.Busy()).To(BeFalse())
		Expect(runner.requests).To(HaveLen(1))
	})
})
