package agent_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/agent"
)

var _ = Describe("ParseEvent", func() {
	It("decodes a well-formed event payload", func() {
		payload := `{"id":"ev-1","author":"model","content":{"parts":[{"text":"Hello"}]}}`

		ev, err := agent.ParseEvent(payload)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.ID).To(Equal("ev-1"))
		Expect(ev.Author).To(Equal("model"))
		Expect(ev.Text()).To(Equal("Hello"))
	})

	It("accepts an object without known fields", func() {
		ev, err := agent.ParseEvent(`{"x":1}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.ID).To(BeEmpty())
		Expect(ev.Text()).To(BeEmpty())
	})

	It("rejects a malformed payload with a ParseError", func() {
		ev, err := agent.ParseEvent("not-json")
		Expect(ev).To(BeNil())
		Expect(err).To(HaveOccurred())

		var parseErr *agent.ParseError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
		Expect(parseErr.Payload).To(Equal("not-json"))
		Expect(parseErr.Err).NotTo(BeNil())
	})

	It("rejects an empty payload", func() {
		ev, err := agent.ParseEvent("")
		Expect(ev).To(BeNil())
		Expect(errors.Is(err, agent.ErrEmptyPayload)).To(BeTrue())
	})

	It("rejects a whitespace-only payload", func() {
		ev, err := agent.ParseEvent("   \t")
		Expect(ev).To(BeNil())
		Expect(errors.Is(err, agent.ErrEmptyPayload)).To(BeTrue())
	})

	It("keeps the offending text on the error", func() {
		_, err := agent.ParseEvent(`{"id": truncated`)

		var parseErr *agent.ParseError
		Expect(errors.As(err, &parseErr)).To(BeTrue())
		Expect(parseErr.Payload).To(Equal(`{"id": truncated`))
	})
})

var _ = Describe("Event.Text", func() {
	It("concatenates all text parts in order", func() {
		ev := &agent.Event{
			Content: &agent.Content{
				Parts: []agent.Part{{Text: "Hello"}, {Text: " "}, {Text: "world"}},
			},
		}
		Expect(ev.Text()).To(Equal("Hello world"))
	})

	It("returns empty for an event without content", func() {
		ev := &agent.Event{ID: "ev-1"}
		Expect(ev.Text()).To(BeEmpty())
	})

	It("skips parts without text", func() {
		ev := &agent.Event{
			Content: &agent.Content{
				Parts: []agent.Part{{Text: "a"}, {}, {Text: "b"}},
			},
		}
		Expect(ev.Text()).To(Equal("ab"))
	})
})
