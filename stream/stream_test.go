package stream_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/agent"
	"github.com/papercomputeco/reel/pkg/eventstream"
	"github.com/papercomputeco/reel/pkg/state"
	"github.com/papercomputeco/reel/stream"
)

// eventPayload builds a JSON event body in the backend's wire shape.
func eventPayload(id, text string) string {
	return fmt.Sprintf(`{"id":%q,"author":"assistant","content":{"role":"assistant","parts":[{"text":%q}]}}`, id, text)
}

// chunkedBody replays scripted chunks, one per Read call, then ends the
// stream with finalErr (io.EOF when unset). Chunk boundaries land exactly
// where the script puts them regardless of the reader's buffer size.
type chunkedBody struct {
	mu       sync.Mutex
	chunks   []string
	finalErr error
	closed   bool
}

func newChunkedBody(chunks ...string) *chunkedBody {
	return &chunkedBody{chunks: chunks}
}

func (b *chunkedBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.New("read from closed body")
	}
	if len(b.chunks) == 0 {
		if b.finalErr != nil {
			return 0, b.finalErr
		}
		return 0, io.EOF
	}

	n := copy(p, b.chunks[0])
	if n < len(b.chunks[0]) {
		b.chunks[0] = b.chunks[0][n:]
	} else {
		b.chunks = b.chunks[1:]
	}
	return n, nil
}

func (b *chunkedBody) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// blockingBody parks every Read until the body is closed, simulating a
// stream that is open but idle.
type blockingBody struct {
	once    sync.Once
	unblock chan struct{}
}

func newBlockingBody() *blockingBody {
	return &blockingBody{unblock: make(chan struct{})}
}

func (b *blockingBody) Read(_ []byte) (int, error) {
	<-b.unblock
	return 0, errors.New("body closed while reading")
}

func (b *blockingBody) Close() error {
	b.once.Do(func() { close(b.unblock) })
	return nil
}

func (b *blockingBody) Closed() bool {
	select {
	case <-b.unblock:
		return true
	default:
		return false
	}
}

// scriptedOpener hands out a fixed body, or a fixed error, for every run.
type scriptedOpener struct {
	mu       sync.Mutex
	body     io.ReadCloser
	err      error
	requests []agent.RunRequest
}

func (o *scriptedOpener) OpenRun(_ context.Context, req agent.RunRequest) (io.ReadCloser, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.requests = append(o.requests, req)
	if o.err != nil {
		return nil, o.err
	}
	return o.body, nil
}

// runRecorder collects handler callbacks for assertion. Callbacks fire on
// the pump goroutine, so every field is mutex-guarded.
type runRecorder struct {
	mu               sync.Mutex
	events           []*agent.Event
	warnings         []*agent.ParseError
	completions      int
	eventsAtComplete int
	failures         []error
}

func (r *runRecorder) handler() stream.Handler {
	return stream.Handler{
		OnEvent: func(ev *agent.Event) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.events = append(r.events, ev)
		},
		OnWarning: func(perr *agent.ParseError) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.warnings = append(r.warnings, perr)
		},
		OnComplete: func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.completions++
			r.eventsAtComplete = len(r.events)
		},
		OnError: func(err error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.failures = append(r.failures, err)
		},
	}
}

func (r *runRecorder) texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	texts := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		texts = append(texts, ev.Text())
	}
	return texts
}

func (r *runRecorder) warningCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.warnings)
}

func (r *runRecorder) firstWarning() *agent.ParseError {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.warnings) == 0 {
		return nil
	}
	return r.warnings[0]
}

func (r *runRecorder) completionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completions
}

func (r *runRecorder) completedAfter() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.eventsAtComplete
}

func (r *runRecorder) firstFailure() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.failures) == 0 {
		return nil
	}
	return r.failures[0]
}

func (r *runRecorder) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

// callbackCount totals every callback of any kind, for silence assertions.
func (r *runRecorder) callbackCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events) + len(r.warnings) + r.completions + len(r.failures)
}

// recordingPublisher captures republished envelopes.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.StreamEvent
}

func (p *recordingPublisher) PublishEvent(_ context.Context, event *eventstream.StreamEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []*eventstream.StreamEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*eventstream.StreamEvent(nil), p.events...)
}

var _ = Describe("NewClient", func() {
	It("requires an opener", func() {
		_, err := stream.NewClient(stream.Config{})
		Expect(err).To(MatchError(ContainSubstring("opener is required")))
	})

	It("provides a private loading cell when none is configured", func() {
		client, err := stream.NewClient(stream.Config{Opener: &scriptedOpener{body: newChunkedBody()}})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Loading()).NotTo(BeNil())
		Expect(client.Loading().Get()).To(BeFalse())
	})
})

var _ = Describe("Start", func() {
	var (
		recorder *runRecorder
		loading  *state.Cell[bool]
	)

	BeforeEach(func() {
		recorder = &runRecorder{}
		loading = state.NewCell(false)
	})

	// runToDone streams the given body through a fresh client and waits for
	// the subscription to wind down.
	runToDone := func(body io.ReadCloser) *stream.Subscription {
		client, err := stream.NewClient(stream.Config{
			Opener:  &scriptedOpener{body: body},
			Loading: loading,
		})
		Expect(err).NotTo(HaveOccurred())

		sub := client.Start(context.Background(), agent.RunRequest{SessionID: "sess-1"}, recorder.handler())
		Eventually(sub.Done()).Should(BeClosed())
		return sub
	}

	Context("delivering events", func() {
		It("delivers decoded events in stream order", func() {
			runToDone(newChunkedBody(
				"data: " + eventPayload("ev-1", "Hello") + "\n" +
					"data: " + eventPayload("ev-2", " world") + "\n",
			))

			Expect(recorder.texts()).To(Equal([]string{"Hello", " world"}))
			Expect(recorder.completionCount()).To(Equal(1))
			Expect(recorder.failureCount()).To(BeZero())
		})

		It("reassembles a data marker split across chunks", func() {
			runToDone(newChunkedBody(
				"da",
				"ta: "+eventPayload("ev-1", "split marker")+"\n",
			))

			Expect(recorder.texts()).To(Equal([]string{"split marker"}))
			Expect(recorder.warningCount()).To(BeZero())
		})

		It("reassembles a payload split across chunks", func() {
			payload := eventPayload("ev-1", "split payload")
			runToDone(newChunkedBody(
				"data: "+payload[:7],
				payload[7:]+"\n",
			))

			Expect(recorder.texts()).To(Equal([]string{"split payload"}))
		})

		It("handles CRLF line terminators", func() {
			runToDone(newChunkedBody(
				"data: " + eventPayload("ev-1", "carriage") + "\r\n",
			))

			Expect(recorder.texts()).To(Equal([]string{"carriage"}))
		})

		It("drops non-data lines without warnings", func() {
			runToDone(newChunkedBody(
				"event: ping\n" +
					": keep-alive\n" +
					"\n" +
					"data: " + eventPayload("ev-1", "kept") + "\n",
			))

			Expect(recorder.texts()).To(Equal([]string{"kept"}))
			Expect(recorder.warningCount()).To(BeZero())
		})

		It("delivers the final line of a stream with no trailing newline", func() {
			runToDone(newChunkedBody(
				"data: " + eventPayload("ev-1", "first") + "\n" +
					"data: " + eventPayload("ev-2", "last"),
			))

			Expect(recorder.texts()).To(Equal([]string{"first", "last"}))
			Expect(recorder.completionCount()).To(Equal(1))
		})
	})

	Context("malformed payloads", func() {
		It("warns and continues past malformed JSON", func() {
			runToDone(newChunkedBody(
				"data: {not json}\n" +
					"data: " + eventPayload("ev-1", "survivor") + "\n",
			))

			Expect(recorder.texts()).To(Equal([]string{"survivor"}))
			Expect(recorder.warningCount()).To(Equal(1))
			Expect(recorder.firstWarning().Payload).To(Equal("{not json}"))
			Expect(recorder.completionCount()).To(Equal(1))
			Expect(recorder.failureCount()).To(BeZero())
		})

		It("warns on empty data payloads", func() {
			runToDone(newChunkedBody(
				"data:\n" +
					"data: \n" +
					"data: " + eventPayload("ev-1", "kept") + "\n",
			))

			Expect(recorder.texts()).To(Equal([]string{"kept"}))
			Expect(recorder.warningCount()).To(Equal(2))
			Expect(recorder.firstWarning()).To(MatchError(agent.ErrEmptyPayload))
		})
	})

	Context("terminal callbacks", func() {
		It("invokes OnComplete once, after every event has been delivered", func() {
			runToDone(newChunkedBody(
				"data: " + eventPayload("ev-1", "one") + "\n" +
					"data: " + eventPayload("ev-2", "two") + "\n",
			))

			Expect(recorder.completionCount()).To(Equal(1))
			Expect(recorder.completedAfter()).To(Equal(2))
		})

		It("reports open failures with OpenError and clears loading before returning", func() {
			cause := errors.New("connection refused")
			client, err := stream.NewClient(stream.Config{
				Opener:  &scriptedOpener{err: cause},
				Loading: loading,
			})
			Expect(err).NotTo(HaveOccurred())

			sub := client.Start(context.Background(), agent.RunRequest{SessionID: "sess-1"}, recorder.handler())

			Expect(loading.Get()).To(BeFalse())
			Expect(sub.Done()).To(BeClosed())

			var openErr *stream.OpenError
			Expect(errors.As(recorder.firstFailure(), &openErr)).To(BeTrue())
			Expect(recorder.firstFailure()).To(MatchError(cause))
			Expect(recorder.completionCount()).To(BeZero())
		})

		It("reports read failures with ReadError and discards the buffered tail", func() {
			body := newChunkedBody(
				"data: "+eventPayload("ev-1", "delivered")+"\n",
				"data: {\"id\":\"ev-2\",\"auth", // incomplete line, never terminated
			)
			body.finalErr = errors.New("connection reset")

			runToDone(body)

			Expect(recorder.texts()).To(Equal([]string{"delivered"}))

			var readErr *stream.ReadError
			Expect(errors.As(recorder.firstFailure(), &readErr)).To(BeTrue())
			Expect(recorder.firstFailure()).To(MatchError(ContainSubstring("connection reset")))
			Expect(recorder.completionCount()).To(BeZero())
			Expect(recorder.warningCount()).To(BeZero())
			Expect(loading.Get()).To(BeFalse())
		})
	})

	Context("loading state", func() {
		It("re-asserts loading on every chunk and clears it on completion", func() {
			var (
				mu   sync.Mutex
				seen []bool
			)
			unsubscribe := loading.Subscribe(func(v bool) {
				mu.Lock()
				defer mu.Unlock()
				seen = append(seen, v)
			})
			defer unsubscribe()

			runToDone(newChunkedBody(
				"data: "+eventPayload("ev-1", "one")+"\n",
				"data: "+eventPayload("ev-2", "two")+"\n",
			))

			mu.Lock()
			defer mu.Unlock()
			Expect(seen).To(Equal([]bool{true, true, true, false}))
		})

		It("is observable as loading while the stream is idle but open", func() {
			body := newBlockingBody()
			client, err := stream.NewClient(stream.Config{
				Opener:  &scriptedOpener{body: body},
				Loading: loading,
			})
			Expect(err).NotTo(HaveOccurred())

			sub := client.Start(context.Background(), agent.RunRequest{SessionID: "sess-1"}, recorder.handler())
			Expect(loading.Get()).To(BeTrue())

			sub.Cancel()
			Eventually(sub.Done()).Should(BeClosed())
		})
	})

	Context("cancellation", func() {
		It("ends the run silently and releases the transport", func() {
			body := newBlockingBody()
			client, err := stream.NewClient(stream.Config{
				Opener:  &scriptedOpener{body: body},
				Loading: loading,
			})
			Expect(err).NotTo(HaveOccurred())

			sub := client.Start(context.Background(), agent.RunRequest{SessionID: "sess-1"}, recorder.handler())
			Expect(loading.Get()).To(BeTrue())

			sub.Cancel()

			Expect(body.Closed()).To(BeTrue())
			Eventually(sub.Done()).Should(BeClosed())
			Expect(loading.Get()).To(BeFalse())
			Consistently(recorder.callbackCount).Should(BeZero())
		})

		It("is idempotent", func() {
			body := newBlockingBody()
			client, err := stream.NewClient(stream.Config{
				Opener:  &scriptedOpener{body: body},
				Loading: loading,
			})
			Expect(err).NotTo(HaveOccurred())

			sub := client.Start(context.Background(), agent.RunRequest{SessionID: "sess-1"}, recorder.handler())
			sub.Cancel()
			sub.Cancel()

			Eventually(sub.Done()).Should(BeClosed())
			Expect(sub.Cancelled()).To(BeTrue())
		})
	})

	Context("delivery wrapper", func() {
		It("routes every callback through the configured wrapper", func() {
			var wrapped atomic.Int32
			client, err := stream.NewClient(stream.Config{
				Opener: &scriptedOpener{body: newChunkedBody(
					"data: {bad}\n" +
						"data: " + eventPayload("ev-1", "one") + "\n" +
						"data: " + eventPayload("ev-2", "two") + "\n",
				)},
				Loading: loading,
				Deliver: func(fn func()) {
					wrapped.Add(1)
					fn()
				},
			})
			Expect(err).NotTo(HaveOccurred())

			sub := client.Start(context.Background(), agent.RunRequest{SessionID: "sess-1"}, recorder.handler())
			Eventually(sub.Done()).Should(BeClosed())

			// Two events, one warning, one completion.
			Expect(wrapped.Load()).To(Equal(int32(4)))
			Expect(recorder.texts()).To(Equal([]string{"one", "two"}))
		})
	})
})

var _ = Describe("Republishing", func() {
	var (
		recorder  *runRecorder
		publisher *recordingPublisher
	)

	BeforeEach(func() {
		recorder = &runRecorder{}
		publisher = &recordingPublisher{}
	})

	newPublishingClient := func(body io.ReadCloser) *stream.Client {
		client, err := stream.NewClient(stream.Config{
			Opener:         &scriptedOpener{body: body},
			Publisher:      publisher,
			PublishWorkers: 1, // one worker keeps envelope arrival order deterministic
			Backend:        "http://localhost:8000",
		})
		Expect(err).NotTo(HaveOccurred())
		return client
	}

	It("republishes delivered events and a completion envelope", func() {
		client := newPublishingClient(newChunkedBody(
			"data: " + eventPayload("ev-1", "one") + "\n" +
				"data: {bad}\n" +
				"data: " + eventPayload("ev-2", "two") + "\n",
		))

		req := agent.RunRequest{AppName: "demo", UserID: "user", SessionID: "sess-1"}
		sub := client.Start(context.Background(), req, recorder.handler())
		Eventually(sub.Done()).Should(BeClosed())

		// Drain the worker pool so every envelope has reached the publisher.
		client.Close()

		envelopes := publisher.published()
		Expect(envelopes).To(HaveLen(3))

		Expect(envelopes[0].EventType).To(Equal(eventstream.EventTypeRunEvent))
		Expect(envelopes[0].SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(envelopes[0].EventID).NotTo(BeEmpty())
		Expect(envelopes[0].Source.Backend).To(Equal("http://localhost:8000"))
		Expect(envelopes[0].Source.AppName).To(Equal("demo"))
		Expect(envelopes[0].Source.UserID).To(Equal("user"))
		Expect(envelopes[0].Run.SessionID).To(Equal("sess-1"))
		Expect(envelopes[0].Run.Sequence).To(Equal(1))
		Expect(envelopes[0].Event).NotTo(BeNil())
		Expect(envelopes[0].Event.Text()).To(Equal("one"))

		Expect(envelopes[1].Run.Sequence).To(Equal(2))
		Expect(envelopes[1].EventID).NotTo(Equal(envelopes[0].EventID))

		completed := envelopes[2]
		Expect(completed.EventType).To(Equal(eventstream.EventTypeRunCompleted))
		Expect(completed.Event).To(BeNil())
		Expect(completed.Run.Delivered).To(Equal(2))
		Expect(completed.Run.Warnings).To(Equal(1))
		Expect(completed.Run.SessionID).To(Equal("sess-1"))
	})

	It("emits no completion envelope when the run fails", func() {
		body := newChunkedBody("data: " + eventPayload("ev-1", "one") + "\n")
		body.finalErr = errors.New("connection reset")

		client := newPublishingClient(body)
		sub := client.Start(context.Background(), agent.RunRequest{SessionID: "sess-1"}, recorder.handler())
		Eventually(sub.Done()).Should(BeClosed())
		client.Close()

		envelopes := publisher.published()
		Expect(envelopes).To(HaveLen(1))
		Expect(envelopes[0].EventType).To(Equal(eventstream.EventTypeRunEvent))
	})
})

var _ = Describe("Against an SSE backend", func() {
	var (
		upstream *httptest.Server
		recorder *runRecorder
	)

	BeforeEach(func() {
		recorder = &runRecorder{}
		upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/run_sse"))
			Expect(r.Header.Get("Accept")).To(Equal("text/event-stream"))

			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())

			events := []string{
				"data: {\"id\":\"ev-1\",\"author\":\"session_agent\",\"content\":{\"role\":\"assistant\",\"parts\":[{\"text\":\"Processing\"}]},\"partial\":true}\n\n",
				"data: {\"id\":\"ev-2\",\"author\":\"session_agent\",\"content\":{\"role\":\"assistant\",\"parts\":[{\"text\":\"Done.\"}]}}\n\n",
			}

			for _, event := range events {
				fmt.Fprint(w, event)
				flusher.Flush()
			}
		}))
	})

	AfterEach(func() {
		if upstream != nil {
			upstream.Close()
		}
	})

	It("streams a run end to end through the agent client", func() {
		backend := agent.NewClient(agent.Config{BaseURL: upstream.URL})
		client, err := stream.NewClient(stream.Config{Opener: backend})
		Expect(err).NotTo(HaveOccurred())

		req := agent.RunRequest{
			AppName:    "demo",
			UserID:     "user",
			SessionID:  "sess-1",
			NewMessage: agent.Content{Role: agent.RoleUser, Parts: []agent.Part{{Text: "hello"}}},
			Streaming:  true,
		}
		sub := client.Start(context.Background(), req, recorder.handler())
		Eventually(sub.Done()).Should(BeClosed())

		Expect(recorder.texts()).To(Equal([]string{"Processing", "Done."}))
		Expect(recorder.completionCount()).To(Equal(1))
		Expect(recorder.failureCount()).To(BeZero())
		Expect(client.Loading().Get()).To(BeFalse())
	})
})
