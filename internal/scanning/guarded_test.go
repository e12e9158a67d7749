package scanning

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// mockScanner is a mock implementation of Scanner
type mockScanner struct {
	lines  []string
	err    error
	calls  int
	closed bool
}

func (m *mockScanner) ReadLines(ctx context.Context, imageData []byte, contentType string) ([]string, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.lines, nil
}

func (m *mockScanner) Close() error {
	m.closed = true
	return nil
}

var _ = Describe("Guarded", func() {
	var (
		inner   *mockScanner
		guarded *Guarded
		cfg     GuardConfig
	)

	BeforeEach(func() {
		inner = &mockScanner{lines: []string{"₹ 10"}}
		cfg = GuardConfig{Name: "test", FailureThreshold: 2, OpenTimeout: time.Minute}
	})

	JustBeforeEach(func() {
		guarded = NewGuarded(inner, cfg)
	})

	When("the scanner succeeds", func() {
		It("passes the lines through", func() {
			lines, err := guarded.ReadLines(context.Background(), nil, "image/png")
			Expect(err).NotTo(HaveOccurred())
			Expect(lines).To(Equal([]string{"₹ 10"}))
		})
	})

	When("the scanner keeps failing", func() {
		BeforeEach(func() {
			inner.err = errors.New("boom")
		})

		It("opens the breaker and stops calling the scanner", func() {
			for i := 0; i < 2; i++ {
				_, err := guarded.ReadLines(context.Background(), nil, "image/png")
				Expect(err).To(MatchError("boom"))
			}
			_, err := guarded.ReadLines(context.Background(), nil, "image/png")
			Expect(err).To(MatchError(ErrUpstreamUnavailable))
			Expect(inner.calls).To(Equal(2))
		})
	})

	When("images are unreadable", func() {
		BeforeEach(func() {
			inner.err = ErrNoText
		})

		It("does not count them as failures", func() {
			for i := 0; i < 4; i++ {
				_, err := guarded.ReadLines(context.Background(), nil, "image/png")
				Expect(err).To(MatchError(ErrNoText))
			}
			Expect(inner.calls).To(Equal(4))
		})
	})

	When("uploads are not images", func() {
		BeforeEach(func() {
			inner.err = ErrUnsupportedImage
		})

		It("does not count them as failures", func() {
			for i := 0; i < 4; i++ {
				_, err := guarded.ReadLines(context.Background(), nil, "text/plain")
				Expect(err).To(MatchError(ErrUnsupportedImage))
			}
			Expect(inner.calls).To(Equal(4))
		})
	})

	When("the rate limit is exhausted", func() {
		BeforeEach(func() {
			cfg.RPM = 1
			cfg.Burst = 1
		})

		It("gives up when the context ends first", func() {
			_, err := guarded.ReadLines(context.Background(), nil, "image/png")
			Expect(err).NotTo(HaveOccurred())

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
			defer cancel()
			_, err = guarded.ReadLines(ctx, nil, "image/png")
			Expect(err).To(MatchError(ErrUpstreamUnavailable))
			Expect(inner.calls).To(Equal(1))
		})
	})

	It("closes the wrapped scanner", func() {
		Expect(guarded.Close()).To(Succeed())
		Expect(inner.closed).To(BeTrue())
	})
})
