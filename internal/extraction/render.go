package extraction

import "strings"

// NotFound is rendered for targeted fields that no line matched
const NotFound = "Not Found"

// Render formats a Result as a flat text report: title, category, fields and
// residual lines. Generic results omit empty blocks; targeted results always
// list every field.
func Render(r *Result) string {
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteString("\nCategory: ")
	b.WriteString(r.Category.DisplayName())
	b.WriteString("\n")

	if len(r.Fields) > 0 || r.Targeted {
		b.WriteString("\nExtracted Details:\n")
		for _, f := range r.Fields {
			value := f.Value
			if value == "" {
				value = NotFound
			}
			b.WriteString("• ")
			b.WriteString(f.Key)
			b.WriteString(": ")
			b.WriteString(value)
			b.WriteString("\n")
		}
	}

	if len(r.Residuals) > 0 {
		b.WriteString("\nOther Info:\n")
		for _, line := range r.Residuals {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
