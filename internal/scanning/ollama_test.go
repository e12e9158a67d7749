package scanning

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		lines   []string
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		var newErr error
		scanner, newErr = NewOllama(server.URL()+"/", "qwen2-vl")
		Expect(newErr).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		lines, err = scanner.ReadLines(context.Background(), []byte("png"), "image/png")
	})

	When("the model transcribes the receipt", func() {
		var sent ollamaGenerateRequest

		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/generate"),
				ghttp.VerifyContentType("application/json"),
				func(w http.ResponseWriter, r *http.Request) {
					body, _ := io.ReadAll(r.Body)
					Expect(json.Unmarshal(body, &sent)).To(Succeed())
				},
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaGenerateResponse{
					Response: "Foo Mart\nTotal: ₹250.00\n",
					Done:     true,
				}),
			))
		})

		It("returns the transcript lines", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(Equal([]string{"Foo Mart", "Total: ₹250.00"}))
		})

		It("sends the image and a deterministic request", func() {
			Expect(sent.Model).To(Equal("qwen2-vl"))
			Expect(sent.Stream).To(BeFalse())
			Expect(sent.Images).To(Equal([]string{base64.StdEncoding.EncodeToString([]byte("png"))}))
			Expect(sent.Options).To(HaveKeyWithValue("temperature", BeNumerically("==", 0)))
		})
	})

	When("the model sees no text", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaGenerateResponse{
				Response: "NO_TEXT",
				Done:     true,
			}))
		})

		It("returns ErrNoText", func() {
			Expect(err).To(MatchError(ErrNoText))
		})
	})

	When("the API returns an error status", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns ErrUpstreamUnavailable", func() {
			Expect(err).To(MatchError(ErrUpstreamUnavailable))
			Expect(err.Error()).To(ContainSubstring("model not loaded"))
		})
	})

	When("the response carries an error", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaGenerateResponse{Error: "out of memory"}))
		})

		It("returns ErrUpstreamUnavailable", func() {
			Expect(err).To(MatchError(ErrUpstreamUnavailable))
			Expect(err.Error()).To(ContainSubstring("out of memory"))
		})
	})
})
