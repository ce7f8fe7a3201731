package responses

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/ispoc/pkg/sse"
)

var _ = Describe("ParseBody", func() {
	It("joins text content blocks", func() {
		parsed, err := ParseBody([]byte(`{"id":"resp_1","content":[
			{"type":"text","text":{"value":"one"}},
			{"type":"image","text":{"value":"skip"}},
			{"type":"text","text":{"value":"two"}}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.ID).To(Equal("resp_1"))
		Expect(parsed.Text).To(Equal("one\ntwo"))
	})

	It("falls back to output_text items", func() {
		parsed, err := ParseBody([]byte(`{"output":[{"content":[{"type":"output_text","text":"hello"}]}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Text).To(Equal("hello"))
	})

	It("wraps ErrBodyParse for invalid documents", func() {
		_, err := ParseBody([]byte("<html>"))
		Expect(err).To(MatchError(ErrBodyParse))
	})

	It("rejects documents that are not objects", func() {
		for _, raw := range []string{"null", "42", `"text"`, "[]"} {
			parsed, err := ParseBody([]byte(raw))
			Expect(err).To(MatchError(ErrBodyParse), raw)
			Expect(parsed).To(BeNil())
		}
	})

	It("rejects text blocks without a text value", func() {
		for _, raw := range []string{
			`{"content":[{"type":"text"}]}`,
			`{"content":[{"type":"text","text":null}]}`,
			`{"content":[{"type":"text","text":{}}]}`,
			`{"content":[{"type":"text","text":{"value":"ok"}},{"type":"text"}]}`,
		} {
			_, err := ParseBody([]byte(raw))
			Expect(err).To(MatchError(ErrBodyParse), raw)
		}
	})

	It("accepts an empty text value", func() {
		parsed, err := ParseBody([]byte(`{"id":"r","content":[{"type":"text","text":{"value":""}}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(parsed.Text).To(BeEmpty())
	})
})

var _ = Describe("Drive", func() {
	It("assembles a stream without a partial callback", func() {
		body := "event: response.created\ndata: {\"response\":{\"id\":\"resp_9\"}}\n\n" +
			"event: response.output_text.delta\ndata: {\"delta\":\"Hi\"}\n\n" +
			"event: response.completed\ndata: {}\n\n"

		turn := &Turn{Query: "q"}
		out := Drive(sse.NewReader(strings.NewReader(body)), turn, NewInterpreter(nil), nil, nil)

		Expect(out.Text).To(Equal("Hi"))
		Expect(out.ContinuationID).To(Equal("resp_9"))
		Expect(out.State).To(Equal(StateCompleted))
	})

	It("drops deltas whose content index is out of range", func() {
		body := "event: response.output_text.delta\ndata: {\"delta\":\"x\",\"content_index\":20000000}\n\n" +
			"event: response.output_text.delta\ndata: {\"delta\":\"y\",\"content_index\":1.5}\n\n" +
			"event: response.output_text.delta\ndata: {\"delta\":\"Hi\",\"content_index\":1}\n\n" +
			"event: response.completed\ndata: {}\n\n"

		var items []ContentItem
		out := Drive(sse.NewReader(strings.NewReader(body)), &Turn{Query: "q"}, NewInterpreter(nil),
			func(item ContentItem) { items = append(items, item) }, nil)

		Expect(out.State).To(Equal(StateCompleted))
		Expect(out.Text).To(Equal("\nHi"))
		Expect(items).To(HaveLen(1))
		Expect(items[0].Index).To(Equal(1))
	})
})
