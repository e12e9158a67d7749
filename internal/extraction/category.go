package extraction

import "strings"

// Category selects the rule set used to classify a receipt's lines
type Category string

const (
	CategoryPhonePe     Category = "PhonePe"
	CategoryPaytm       Category = "Paytm"
	CategoryGooglePay   Category = "GooglePay"
	CategoryAmazonPay   Category = "AmazonPay"
	CategoryHandwritten Category = "Handwritten"
	CategoryPrinted     Category = "Printed"
	CategoryBrochure    Category = "Brochure"
	CategoryOther       Category = "Other"
)

// Categories lists the known categories in menu order
var Categories = []Category{
	CategoryPhonePe,
	CategoryGooglePay,
	CategoryAmazonPay,
	CategoryHandwritten,
	CategoryPaytm,
	CategoryPrinted,
	CategoryBrochure,
	CategoryOther,
}

var categoryAliases = map[string]Category{
	"phonepe":     CategoryPhonePe,
	"phone pe":    CategoryPhonePe,
	"paytm":       CategoryPaytm,
	"googlepay":   CategoryGooglePay,
	"google pay":  CategoryGooglePay,
	"gpay":        CategoryGooglePay,
	"amazonpay":   CategoryAmazonPay,
	"amazon pay":  CategoryAmazonPay,
	"handwritten": CategoryHandwritten,
	"printed":     CategoryPrinted,
	"brochure":    CategoryBrochure,
	"other":       CategoryOther,
}

var displayNames = map[Category]string{
	CategoryGooglePay: "Google Pay",
	CategoryAmazonPay: "Amazon Pay",
}

// ParseCategory maps user input to a Category. Unknown values are kept as-is
// and are handled by the generic rule set; an empty value means Other.
func ParseCategory(s string) Category {
	s = strings.TrimSpace(s)
	if s == "" {
		return CategoryOther
	}
	if c, ok := categoryAliases[strings.ToLower(s)]; ok {
		return c
	}
	return Category(s)
}

// Known reports whether c is one of the predefined categories
func (c Category) Known() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Targeted reports whether c uses a fixed, always-rendered field set
func (c Category) Targeted() bool {
	_, ok := targetedRules[c]
	return ok
}

// DisplayName returns a human readable name for the category
func (c Category) DisplayName() string {
	if name, ok := displayNames[c]; ok {
		return name
	}
	if c == "" {
		return string(CategoryOther)
	}
	return string(c)
}
