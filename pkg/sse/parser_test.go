package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const responsesStream = "event: response.created\n" +
	"data: {\"type\":\"response.created\",\"response\":{\"id\":\"resp_1\"}}\n\n" +
	"event: response.output_text.delta\n" +
	"data: {\"type\":\"response.output_text.delta\",\"delta\":\"Héllo\",\"content_index\":0}\n\n" +
	": keep-alive\n\n" +
	"event: response.output_text.delta\n" +
	"data: {\"type\":\"response.output_text.delta\",\"delta\":\" wörld\",\"content_index\":0}\n\n" +
	"event: response.completed\n" +
	"data: {\"type\":\"response.completed\",\"response\":{\"id\":\"resp_1\"}}\n\n"

func feedAll(chunks []string) []Event {
	var p Parser
	var out []Event
	for _, c := range chunks {
		out = append(out, p.Feed(c)...)
	}
	return out
}

var _ = Describe("Parser", func() {
	Describe("Feed", func() {
		It("parses a complete frame", func() {
			var p Parser
			events := p.Feed("event: ping\ndata: {}\n\n")
			Expect(events).To(Equal([]Event{{Type: "ping", Data: "{}"}}))
			Expect(p.Buffered()).To(BeEmpty())
		})

		It("returns every frame completed by one chunk in order", func() {
			var p Parser
			events := p.Feed("data: one\n\ndata: two\n\ndata: thr")
			Expect(events).To(HaveLen(2))
			Expect(events[0].Data).To(Equal("one"))
			Expect(events[1].Data).To(Equal("two"))
			Expect(p.Buffered()).To(Equal("data: thr"))
		})

		It("holds an incomplete frame until it is terminated", func() {
			var p Parser
			Expect(p.Feed("event: a\nda")).To(BeEmpty())
			Expect(p.Feed("ta: x\n")).To(BeEmpty())
			Expect(p.Feed("\n")).To(Equal([]Event{{Type: "a", Data: "x"}}))
		})

		It("trims whitespace around field values", func() {
			var p Parser
			events := p.Feed("event:   spaced  \ndata:\t  payload  \n\n")
			Expect(events).To(Equal([]Event{{Type: "spaced", Data: "payload"}}))
		})

		It("keeps the last data line when several are present", func() {
			var p Parser
			events := p.Feed("data: first\ndata: second\n\n")
			Expect(events).To(HaveLen(1))
			Expect(events[0].Data).To(Equal("second"))
		})

		It("skips blank and unrecognized frames", func() {
			var p Parser
			events := p.Feed("\n\n: comment\n\nid: 7\nretry: 10\n\ngarbage\n\ndata: ok\n\n")
			Expect(events).To(Equal([]Event{{Data: "ok"}}))
		})

		It("yields a frame with only an event line", func() {
			var p Parser
			Expect(p.Feed("event: lonely\n\n")).To(Equal([]Event{{Type: "lonely"}}))
		})

		It("rejoins a multi-byte character split across chunks", func() {
			raw := "data: é\n\n"
			// Split between the two bytes of 'é'.
			events := feedAll([]string{raw[:7], raw[7:]})
			Expect(events).To(Equal([]Event{{Data: "é"}}))
		})
	})

	Describe("chunking", func() {
		It("produces the same events regardless of how the stream is split", func() {
			whole := feedAll([]string{responsesStream})
			Expect(whole).To(HaveLen(4))

			for size := 1; size <= len(responsesStream); size++ {
				var chunks []string
				for i := 0; i < len(responsesStream); i += size {
					end := i + size
					if end > len(responsesStream) {
						end = len(responsesStream)
					}
					chunks = append(chunks, responsesStream[i:end])
				}
				Expect(feedAll(chunks)).To(Equal(whole), "chunk size %d", size)
			}
		})

		It("produces the same events for every two-way split point", func() {
			whole := feedAll([]string{responsesStream})
			for i := 0; i <= len(responsesStream); i++ {
				got := feedAll([]string{responsesStream[:i], responsesStream[i:]})
				Expect(got).To(Equal(whole), "split at %d", i)
			}
		})
	})
})
