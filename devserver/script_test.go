package devserver

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/reel/pkg/logger"
)

var _ = Describe("ScriptBook", func() {
	var path string

	writeScript := func(content string) {
		GinkgoHelper()
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	}

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "replies.toml")
	})

	Describe("loading", func() {
		It("loads turns and the default reply", func() {
			writeScript(`default = "Hmm."

[[turn]]
match = "weather"
reply = "Sunny."

[[turn]]
match = "hello"
reply = "Hi!"
delay_ms = 5
`)

			book, err := LoadScriptBook(path, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
			Expect(book.Turns()).To(Equal(2))
		})

		It("errors when the file is missing", func() {
			_, err := LoadScriptBook(path, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("reading reply script")))
		})

		It("errors on invalid TOML", func() {
			writeScript(`[[turn` + "\n")

			_, err := LoadScriptBook(path, logger.Nop())
			Expect(err).To(MatchError(ContainSubstring("parsing reply script")))
		})
	})

	Describe("resolving", func() {
		var book *ScriptBook

		BeforeEach(func() {
			writeScript(`default = "I do not know."

[[turn]]
match = "weather"
reply = "Sunny."

[[turn]]
match = "sun"
reply = "Bright."
`)

			var err error
			book, err = LoadScriptBook(path, logger.Nop())
			Expect(err).NotTo(HaveOccurred())
		})

		It("matches case-insensitively as a substring", func() {
			turn, ok := book.Resolve("How is the WEATHER today?")
			Expect(ok).To(BeTrue())
			Expect(turn.Reply).To(Equal("Sunny."))
		})

		It("lets the first matching turn win", func() {
			// "weather sun" matches both; the weather turn is listed first.
			turn, ok := book.Resolve("weather sun")
			Expect(ok).To(BeTrue())
			Expect(turn.Reply).To(Equal("Sunny."))
		})

		It("falls back to the default reply", func() {
			turn, ok := book.Resolve("anything else")
			Expect(ok).To(BeTrue())
			Expect(turn.Reply).To(Equal("I do not know."))
		})

		It("reports no match without a default", func() {
			writeScript(`[[turn]]
match = "weather"
reply = "Sunny."
`)
			Expect(book.Reload()).To(Succeed())

			_, ok := book.Resolve("anything else")
			Expect(ok).To(BeFalse())
		})
	})

	Describe("reloading", func() {
		It("picks up new turns", func() {
			writeScript(`default = "Old."` + "\n")
			book, err := LoadScriptBook(path, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			writeScript(`default = "New."

[[turn]]
match = "x"
reply = "y"
`)
			Expect(book.Reload()).To(Succeed())

			turn, ok := book.Resolve("whatever")
			Expect(ok).To(BeTrue())
			Expect(turn.Reply).To(Equal("New."))
			Expect(book.Turns()).To(Equal(1))
		})

		It("keeps the old turns when the file becomes invalid", func() {
			writeScript(`default = "Old."` + "\n")
			book, err := LoadScriptBook(path, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			writeScript(`default = `)
			Expect(book.Reload()).To(MatchError(ContainSubstring("parsing reply script")))

			turn, ok := book.Resolve("whatever")
			Expect(ok).To(BeTrue())
			Expect(turn.Reply).To(Equal("Old."))
		})
	})

	Describe("watching", func() {
		It("reloads when the file is rewritten", func() {
			writeScript(`default = "Old."` + "\n")
			book, err := LoadScriptBook(path, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- book.Watch(ctx)
			}()

			// Rewrite until the watcher picks it up; the first write can
			// land before the watch is registered.
			updated := `default = "New."

[[turn]]
match = "x"
reply = "y"
`
			Eventually(func(g Gomega) {
				g.Expect(os.WriteFile(path, []byte(updated), 0o644)).To(Succeed())
				g.Expect(book.Turns()).To(Equal(1))
			}, "3s").Should(Succeed())

			cancel()
			Eventually(done).Should(Receive(MatchError(context.Canceled)))
		})
	})
})
