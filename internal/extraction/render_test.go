package extraction

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Render", func() {
	var (
		lines    []string
		category Category
		report   string
	)

	JustBeforeEach(func() {
		result, err := NewExtractor(DefaultQualityGate).Extract(lines, category)
		Expect(err).NotTo(HaveOccurred())
		report = Render(result)
	})

	When("rendering a generic receipt", func() {
		BeforeEach(func() {
			category = CategoryOther
			lines = []string{"Foo Mart", "Total: ₹250.00", "12/05/2024", "Thanks for shopping"}
		})

		It("orders header, category, fields and other info", func() {
			Expect(report).To(Equal(strings.Join([]string{
				"Foo Mart",
				"Category: Other",
				"",
				"Extracted Details:",
				"• Total: ₹250.00",
				"• Date: 12/05/2024",
				"",
				"Other Info:",
				"- Thanks for shopping",
			}, "\n")))
		})
	})

	When("a generic receipt has no fields", func() {
		BeforeEach(func() {
			category = CategoryBrochure
			lines = []string{"Grand Opening Sale"}
		})

		It("omits the empty blocks", func() {
			Expect(report).To(Equal("Grand Opening Sale\nCategory: Brochure"))
		})
	})

	When("rendering a targeted receipt with missing fields", func() {
		BeforeEach(func() {
			category = CategoryPaytm
			lines = []string{"RECEIPT001234567890"}
		})

		It("shows every declared field", func() {
			Expect(report).To(Equal(strings.Join([]string{
				"Paytm Receipt Summary",
				"Category: Paytm",
				"",
				"Extracted Details:",
				"• Amount: Not Found",
				"• Person Name: Not Found",
				"• UPI ID: Not Found",
				"• Transaction ID: RECEIPT001234567890",
				"• UPI Ref No: Not Found",
				"• Date & Time: Not Found",
			}, "\n")))
		})
	})

	Describe("targeted field blocks", func() {
		for _, c := range []Category{CategoryPhonePe, CategoryPaytm, CategoryGooglePay, CategoryAmazonPay} {
			c := c
			It("lists each key exactly once for "+string(c), func() {
				result, err := NewExtractor(DefaultQualityGate).Extract([]string{"nothing useful here"}, c)
				Expect(err).NotTo(HaveOccurred())
				out := Render(result)
				Expect(result.Fields).To(HaveLen(len(targetedRules[c].fields)))
				for _, key := range targetedRules[c].fields {
					Expect(strings.Count(out, "• "+key+": ")).To(Equal(1), key)
				}
				Expect(out).To(ContainSubstring("- nothing useful here"))
			})
		}
	})

	When("the category has a display name", func() {
		BeforeEach(func() {
			category = CategoryAmazonPay
			lines = []string{"₹99"}
		})

		It("uses it", func() {
			Expect(report).To(HavePrefix("Amazon Pay Receipt Summary\nCategory: Amazon Pay\n"))
		})
	})
})
