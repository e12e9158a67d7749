package scanning

import (
	"github.com/google/generative-ai-go/genai"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Gemini", func() {
	Describe("NewGemini", func() {
		It("requires an API key", func() {
			_, err := NewGemini("", "")
			Expect(err).To(MatchError(ContainSubstring("api key is required")))
		})

		It("configures the model as a literal transcriber", func() {
			g, err := NewGemini("test-key", "")
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(g.Close)

			Expect(g.model.SystemInstruction).NotTo(BeNil())
			Expect(g.model.SystemInstruction.Parts).To(Equal([]genai.Part{genai.Text(systemInstruction)}))
			Expect(g.model.Temperature).NotTo(BeNil())
			Expect(*g.model.Temperature).To(BeZero())
			Expect(g.timeout).To(Equal(DefaultTimeout))
		})
	})

	Describe("candidateText", func() {
		It("joins the text parts of the first candidate", func() {
			resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
				Content: &genai.Content{Parts: []genai.Part{genai.Text("Foo Mart\n"), genai.Text("Total: ₹250")}},
			}}}
			Expect(candidateText(resp)).To(Equal("Foo Mart\nTotal: ₹250"))
		})

		It("is empty without candidates", func() {
			Expect(candidateText(nil)).To(BeEmpty())
			Expect(candidateText(&genai.GenerateContentResponse{})).To(BeEmpty())
			Expect(candidateText(&genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}})).To(BeEmpty())
		})
	})
})
