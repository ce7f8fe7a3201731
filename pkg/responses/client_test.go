package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing/iotest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func frame(event, data string) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

func deltaFrame(text string, index int) string {
	return frame(EventOutputTextDelta, fmt.Sprintf(`{"delta":%q,"content_index":%d}`, text, index))
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// upstream is a fake Responses endpoint that records the last request body.
type upstream struct {
	server   *httptest.Server
	lastBody Request
	lastAuth string
	lastHdr  http.Header
	status   int
	headers  map[string]string
	body     string
}

func newUpstream() *upstream {
	u := &upstream{status: http.StatusOK, headers: map[string]string{"Content-Type": "text/event-stream"}}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer GinkgoRecover()
		Expect(r.URL.Path).To(Equal("/v1/responses"))
		Expect(json.NewDecoder(r.Body).Decode(&u.lastBody)).To(Succeed())
		u.lastAuth = r.Header.Get("Authorization")
		u.lastHdr = r.Header.Clone()

		for k, v := range u.headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(u.status)
		_, _ = io.WriteString(w, u.body)
	}))
	return u
}

var _ = Describe("Client", func() {
	var (
		up       *upstream
		client   *Client
		partials []ContentItem
		collect  PartialFunc
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		up = newUpstream()
		DeferCleanup(up.server.Close)

		var err error
		client, err = NewClient(&Config{
			BaseURL:       up.server.URL + "/v1",
			APIKey:        "sk-test",
			Model:         DefaultModel,
			Instructions:  "be helpful",
			VectorStoreID: "vs_123",
			Store:         true,
		})
		Expect(err).NotTo(HaveOccurred())

		partials = nil
		collect = func(item ContentItem) { partials = append(partials, item) }
	})

	Describe("NewClient", func() {
		It("rejects a nil config", func() {
			_, err := NewClient(nil)
			Expect(err).To(HaveOccurred())
		})

		It("rejects a base URL without a scheme", func() {
			_, err := NewClient(&Config{BaseURL: "localhost:8080"})
			Expect(err).To(HaveOccurred())
		})

		It("defaults to the public API", func() {
			c, err := NewClient(&Config{})
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Endpoint()).To(Equal("https://api.openai.com/v1/responses"))
		})
	})

	Describe("request", func() {
		It("sends the configured model, instructions and file search tool", func() {
			up.body = frame(EventResponseCompleted, `{"response":{"id":"r"}}`)

			_, err := client.RunTurn(ctx, TurnRequest{Query: "hi", PreviousTurnID: "prev_1"}, collect)
			Expect(err).NotTo(HaveOccurred())

			Expect(up.lastAuth).To(Equal("Bearer sk-test"))
			Expect(up.lastBody.Model).To(Equal(DefaultModel))
			Expect(up.lastBody.Instructions).To(Equal("be helpful"))
			Expect(up.lastBody.Input).To(Equal("hi"))
			Expect(up.lastBody.PreviousResponseID).To(Equal("prev_1"))
			Expect(up.lastBody.Stream).To(BeTrue())
			Expect(up.lastBody.Store).To(BeTrue())
			Expect(up.lastBody.Tools).To(Equal([]Tool{FileSearchTool("vs_123")}))
		})

		It("adds the configured headers", func() {
			up.body = frame(EventResponseCompleted, `{}`)
			tagged, err := NewClient(&Config{
				BaseURL: up.server.URL + "/v1",
				Headers: http.Header{"X-Ispoc-Session-Id": []string{"sess-1"}},
			})
			Expect(err).NotTo(HaveOccurred())

			_, err = tagged.RunTurn(ctx, TurnRequest{Query: "hi"}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(up.lastHdr.Get("X-Ispoc-Session-Id")).To(Equal("sess-1"))
			Expect(up.lastAuth).To(BeEmpty())
		})

		It("truncates oversized queries", func() {
			up.body = frame(EventResponseCompleted, `{}`)

			out, err := client.RunTurn(ctx, TurnRequest{Query: strings.Repeat("q", 2500)}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(up.lastBody.Input).To(Equal(strings.Repeat("q", 2000) + "..."))
			Expect(out.Query).To(Equal(up.lastBody.Input))
		})

		It("sends queries under the cap unchanged", func() {
			up.body = frame(EventResponseCompleted, `{}`)
			query := strings.Repeat("q", 1999)

			_, err := client.RunTurn(ctx, TurnRequest{Query: query}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(up.lastBody.Input).To(Equal(query))
		})
	})

	Describe("streaming", func() {
		It("assembles deltas and reports each one before returning", func() {
			up.body = frame(EventResponseCreated, `{"response":{"id":"resp_1"}}`) +
				deltaFrame("Hello", 0) +
				deltaFrame(" world", 0) +
				deltaFrame("Sources", 1) +
				"data: [DONE]\n\n" +
				frame(EventResponseCompleted, `{"response":{"id":"resp_1"}}`)

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("Hello world\nSources"))
			Expect(out.ContinuationID).To(Equal("resp_1"))
			Expect(out.State).To(Equal(StateCompleted))
			Expect(partials).To(Equal([]ContentItem{
				NewTextItem(0, "Hello"),
				NewTextItem(0, " world"),
				NewTextItem(1, "Sources"),
			}))
		})

		It("skips undecodable frames and keeps going", func() {
			up.body = deltaFrame("a", 0) +
				frame(EventOutputTextDelta, "{broken") +
				deltaFrame("b", 0) +
				frame(EventResponseCompleted, `{}`)

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("ab"))
		})

		It("stops at response.completed even when more frames are buffered", func() {
			up.body = deltaFrame("kept", 0) +
				frame(EventResponseCompleted, `{}`) +
				deltaFrame("dropped", 0) +
				frame("response.in_progress", `{"response":{"id":"late"}}`)

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("kept"))
			Expect(out.ContinuationID).To(BeEmpty())
			Expect(partials).To(HaveLen(1))
		})

		It("returns what it has when the stream ends without completion", func() {
			up.body = deltaFrame("partial", 0) + "data: {\"delta\":\"unterminated"

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("partial"))
			Expect(out.State).To(Equal(StateCompleted))
		})

		Context("with a mid-stream provider error", func() {
			It("absorbs the error into the outcome", func() {
				up.body = deltaFrame("Hello", 0) +
					frame(EventError, `{"message":"boom","code":42}`) +
					deltaFrame("ignored", 0)

				out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
				Expect(err).NotTo(HaveOccurred())
				Expect(out.State).To(Equal(StateErrored))
				Expect(out.Text).To(Equal("Hello\n⚠️ Internal error (42): boom"))
				Expect(out.Text).NotTo(ContainSubstring("ignored"))

				Expect(partials).To(HaveLen(2))
				Expect(partials[0].Text.Value).To(Equal("Hello"))
				Expect(partials[1]).To(Equal(NewTextItem(1, "⚠️ Internal error (42): boom")))
			})

			It("produces the warning alone when no text arrived first", func() {
				up.body = frame(EventResponseFailed, `{"error":{"message":"tool failed"}}`)

				out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
				Expect(err).NotTo(HaveOccurred())
				Expect(out.Text).To(Equal("⚠️ Internal error: tool failed"))
				Expect(partials).To(Equal([]ContentItem{NewTextItem(0, "⚠️ Internal error: tool failed")}))
			})
		})

		Context("continuation id", func() {
			It("prefers the response header over ids in the stream", func() {
				up.headers["openai-response-id"] = "X"
				up.body = frame(EventResponseCreated, `{"response":{"id":"Y"}}`) +
					frame(EventResponseCompleted, `{"response":{"id":"Y"}}`)

				out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
				Expect(err).NotTo(HaveOccurred())
				Expect(out.ContinuationID).To(Equal("X"))
			})

			It("accepts the alternate header name", func() {
				up.headers["x-response-id"] = "ALT"
				up.body = frame(EventResponseCompleted, `{"response":{"id":"Y"}}`)

				out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
				Expect(err).NotTo(HaveOccurred())
				Expect(out.ContinuationID).To(Equal("ALT"))
			})

			It("keeps the first id found in the stream", func() {
				up.body = frame(EventResponseInProgress, `{"response":{"id":"Y"}}`) +
					frame("response.output_item.added", `{"response_id":"Z"}`) +
					frame(EventResponseCompleted, `{"response":{"id":"Z"}}`)

				out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
				Expect(err).NotTo(HaveOccurred())
				Expect(out.ContinuationID).To(Equal("Y"))
			})
		})

		It("treats a JSON answer to a streaming request as non-streaming", func() {
			up.headers["Content-Type"] = "application/json"
			up.body = `{"id":"resp_json","content":[{"type":"text","text":{"value":"plain"}}]}`

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("plain"))
			Expect(out.ContinuationID).To(Equal("resp_json"))
			Expect(partials).To(BeEmpty())
		})

		It("returns the partial outcome when the body breaks mid-stream", func() {
			broken, err := NewClient(&Config{
				BaseURL: "http://upstream.test/v1",
				HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
					body := io.MultiReader(
						strings.NewReader(deltaFrame("half", 0)),
						iotest.ErrReader(errors.New("connection reset")),
					)
					return &http.Response{
						StatusCode: http.StatusOK,
						Header:     http.Header{"Content-Type": []string{"text/event-stream"}},
						Body:       io.NopCloser(body),
						Request:    r,
					}, nil
				})},
			})
			Expect(err).NotTo(HaveOccurred())

			out, err := broken.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("half"))
			Expect(out.State).To(Equal(StateErrored))
		})
	})

	Describe("non-streaming", func() {
		BeforeEach(func() {
			up.headers["Content-Type"] = "application/json"
		})

		It("joins text content items and takes the id from the body", func() {
			up.body = `{"id":"resp_9","content":[` +
				`{"type":"text","text":{"value":"one"}},` +
				`{"type":"image","text":{"value":"skip"}},` +
				`{"type":"text","text":{"value":"two"}}]}`

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(up.lastBody.Stream).To(BeFalse())
			Expect(out.Text).To(Equal("one\ntwo"))
			Expect(out.ContinuationID).To(Equal("resp_9"))
			Expect(out.State).To(Equal(StateCompleted))
		})

		It("keeps a header id over the body id", func() {
			up.headers["openai-response-id"] = "hdr"
			up.body = `{"id":"body","content":[]}`

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ContinuationID).To(Equal("hdr"))
			Expect(out.Text).To(BeEmpty())
		})

		It("reads output_text items when no content array is present", func() {
			up.body = `{"id":"r","output":[{"content":[{"type":"output_text","text":"modern"}]}]}`

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Text).To(Equal("modern"))
		})

		It("fails hard on an unparseable body", func() {
			up.body = "<html>oops</html>"

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, nil)
			Expect(err).To(MatchError(ErrBodyParse))
			Expect(out).To(BeNil())
		})
	})

	Describe("transport failures", func() {
		It("propagates a non-success status without an outcome", func() {
			up.status = http.StatusInternalServerError
			up.headers["Content-Type"] = "application/json"
			up.body = `{"error":{"message":"server exploded"}}`

			out, err := client.RunTurn(ctx, TurnRequest{Query: "q"}, collect)
			Expect(out).To(BeNil())

			var te *TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(te.Error()).To(ContainSubstring("server exploded"))
			Expect(partials).To(BeEmpty())
		})

		It("propagates a failed round trip", func() {
			dialErr := errors.New("dial tcp: connection refused")
			failing, err := NewClient(&Config{
				BaseURL: "http://upstream.test/v1",
				HTTPClient: &http.Client{Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
					return nil, dialErr
				})},
			})
			Expect(err).NotTo(HaveOccurred())

			out, err := failing.RunTurn(ctx, TurnRequest{Query: "q"}, nil)
			Expect(out).To(BeNil())
			Expect(errors.Is(err, dialErr)).To(BeTrue())

			var te *TransportError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.StatusCode).To(BeZero())
		})
	})
})

var _ = Describe("HeaderResponseID", func() {
	It("prefers openai-response-id", func() {
		h := http.Header{}
		h.Set("Openai-Response-Id", "primary")
		h.Set("X-Response-Id", "alt")
		Expect(HeaderResponseID(h)).To(Equal("primary"))
	})

	It("falls back to x-response-id", func() {
		h := http.Header{}
		h.Set("X-Response-Id", "alt")
		Expect(HeaderResponseID(h)).To(Equal("alt"))
	})

	It("is empty without either header", func() {
		Expect(HeaderResponseID(http.Header{})).To(BeEmpty())
	})
})
