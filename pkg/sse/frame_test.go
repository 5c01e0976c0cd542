package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseFrame", func() {
	Context("with data lines", func() {
		It("extracts the payload after the marker and one space", func() {
			f := ParseFrame("data: {\"x\":1}")
			Expect(f.Data).To(BeTrue())
			Expect(f.Payload).To(Equal("{\"x\":1}"))
			Expect(f.Line).To(Equal("data: {\"x\":1}"))
		})

		It("handles the marker with no space after the colon", func() {
			f := ParseFrame("data:{\"x\":1}")
			Expect(f.Data).To(BeTrue())
			Expect(f.Payload).To(Equal("{\"x\":1}"))
		})

		It("strips at most one leading space", func() {
			f := ParseFrame("data:  indented")
			Expect(f.Data).To(BeTrue())
			Expect(f.Payload).To(Equal(" indented"))
		})

		It("preserves an empty payload as a data frame", func() {
			f := ParseFrame("data:")
			Expect(f.Data).To(BeTrue())
			Expect(f.Payload).To(BeEmpty())
		})

		It("treats a bare marker plus space as an empty payload", func() {
			f := ParseFrame("data: ")
			Expect(f.Data).To(BeTrue())
			Expect(f.Payload).To(BeEmpty())
		})
	})

	Context("with non-data lines", func() {
		It("is case-sensitive about the marker", func() {
			Expect(ParseFrame("Data: {\"x\":1}").Data).To(BeFalse())
			Expect(ParseFrame("DATA: {\"x\":1}").Data).To(BeFalse())
		})

		It("rejects a marker that does not start the line", func() {
			Expect(ParseFrame(" data: {\"x\":1}").Data).To(BeFalse())
		})

		It("rejects the field name without a colon", func() {
			Expect(ParseFrame("data").Data).To(BeFalse())
		})

		It("classifies blank lines as non-data", func() {
			f := ParseFrame("")
			Expect(f.Data).To(BeFalse())
			Expect(f.Line).To(BeEmpty())
		})

		It("classifies comments as non-data", func() {
			f := ParseFrame(": keep-alive")
			Expect(f.Data).To(BeFalse())
			Expect(f.Line).To(Equal(": keep-alive"))
		})

		It("classifies other field types as non-data", func() {
			Expect(ParseFrame("event: message").Data).To(BeFalse())
			Expect(ParseFrame("id: 42").Data).To(BeFalse())
			Expect(ParseFrame("retry: 3000").Data).To(BeFalse())
		})

		It("carries the original line through", func() {
			f := ParseFrame("event: message")
			Expect(f.Line).To(Equal("event: message"))
		})
	})
})
