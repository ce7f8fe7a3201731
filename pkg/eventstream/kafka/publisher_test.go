package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/ispoc/pkg/eventstream"
	"github.com/papercomputeco/ispoc/pkg/eventstream/kafka"
	"github.com/papercomputeco/ispoc/pkg/storage"
)

type recordingWriter struct {
	messages []kafkago.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w     *recordingWriter
		p     *kafka.Publisher
		event *eventstream.TurnLoggedEvent
	)

	BeforeEach(func() {
		w = &recordingWriter{}
		p = kafka.NewPublisherWithWriter(w, nil)
		event = eventstream.NewTurnLoggedEvent(
			eventstream.EventSource{Component: "api"},
			storage.QueryLog{ID: "log-1", Query: "q", Response: "a", SessionID: "session-9"},
			time.Unix(1735689600, 0),
		)
	})

	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "t"}, nil)
		Expect(err).To(HaveOccurred())

		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}}, nil)
		Expect(err).To(HaveOccurred())
	})

	It("builds a writer without dialing", func() {
		pub, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "t"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Close()).To(Succeed())
	})

	It("returns ErrNilTurnEvent for nil events", func() {
		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(w.messages).To(BeEmpty())
	})

	It("writes the event as JSON keyed by session", func() {
		Expect(p.PublishTurn(context.Background(), event)).To(Succeed())
		Expect(w.messages).To(HaveLen(1))

		msg := w.messages[0]
		Expect(string(msg.Key)).To(Equal("session-9"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte("ispoc.turn.logged")}))

		var decoded eventstream.TurnLoggedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Turn.Query).To(Equal("q"))
	})

	It("wraps writer failures", func() {
		w.err = errors.New("broker down")
		Expect(p.PublishTurn(context.Background(), event)).To(MatchError(ContainSubstring("broker down")))
	})

	It("closes the writer", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())
	})
})
