package extraction

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Field keys produced by the built-in rules
const (
	KeyAmount        = "Amount"
	KeyDateTime      = "Date & Time"
	KeyDate          = "Date"
	KeyTransactionID = "Transaction ID"
	KeyPersonName    = "Person Name"
	KeyUPIID         = "UPI ID"
	KeyUPIRef        = "UPI Ref No"
	KeyUTR           = "UTR"
	KeyDebitedFrom   = "Debited From"
	KeyMessage       = "Message"
	KeyVendor        = "Vendor"
)

// dateTimePattern matches a time followed by a later number, or a year
// followed by a later time
var dateTimePattern = regexp.MustCompile(`\b\d{1,2}[:.]\d{2}\b.*\b\d{2,4}\b|\b(?:19|20)\d{2}\b.*\b\d{1,2}[:.]\d{2}\b`)

var (
	amountPattern    = regexp.MustCompile(`[₹$€£]\s?\d[\d,]*(?:\.\d+)?`)
	datePattern      = regexp.MustCompile(`\b\d{1,2}[-/]\d{1,2}[-/]\d{2,4}\b`)
	txnID12Pattern   = regexp.MustCompile(`^[A-Z0-9]{12,}$`)
	txnID16Pattern   = regexp.MustCompile(`^[A-Z0-9]{16,}$`)
	txnLabelPattern  = regexp.MustCompile(`(?i)^(?:transaction|txn|order)\s*(?:id|no\.?|number)\s*[:\-]?\s*([A-Za-z0-9\-]{6,})$`)
	personPattern    = regexp.MustCompile(`(?i)^(?:paid\s+to|to)\b\s*:?\s*(\S.*)$`)
	upiIDPattern     = regexp.MustCompile(`[A-Za-z0-9._\-]{2,}@[A-Za-z][A-Za-z0-9]+`)
	upiRefPattern    = regexp.MustCompile(`(?i)\b(?:upi\s+ref(?:erence)?|ref)\s*(?:no\.?|number|id)?\s*[:\-]?\s*([A-Za-z0-9]{6,})\b`)
	utrPattern       = regexp.MustCompile(`(?i)\butr\b\s*(?:no\.?|number)?\s*[:\-]?\s*([A-Za-z0-9]{6,})\b`)
	debitedPattern   = regexp.MustCompile(`(?i)^debited\s+from\s*:?\s*(\S.*)$`)
	messagePattern   = regexp.MustCompile(`(?i)^message\s*[:\-]\s*(\S.*)$`)
	vendorPattern    = regexp.MustCompile(`(?i)\b(?:phonepe|paytm|gpay|google\s*pay|amazon\s*pay|bhim|upi)\b`)
	hasLetterPattern = regexp.MustCompile(`\pL`)
)

// match is a single rule hit. Explicit matches come from labelled lines and may
// replace an earlier implicit guess for the same key.
type match struct {
	key      string
	value    string
	explicit bool
}

// rule classifies a trimmed line
type rule func(line string) (match, bool)

// wholeLine claims the entire line when re matches anywhere in it
func wholeLine(key string, re *regexp.Regexp) rule {
	return func(line string) (match, bool) {
		if !re.MatchString(line) {
			return match{}, false
		}
		return match{key: key, value: line}, true
	}
}

// submatch claims the first capture group of re
func submatch(key string, re *regexp.Regexp) rule {
	return func(line string) (match, bool) {
		m := re.FindStringSubmatch(line)
		if m == nil {
			return match{}, false
		}
		value := strings.TrimSpace(m[1])
		if value == "" {
			return match{}, false
		}
		return match{key: key, value: value}, true
	}
}

// token claims the matched text of re rather than the whole line
func token(key string, re *regexp.Regexp) rule {
	return func(line string) (match, bool) {
		m := re.FindString(line)
		if m == "" {
			return match{}, false
		}
		return match{key: key, value: m}, true
	}
}

// firstOf tries each rule in turn
func firstOf(rules ...rule) rule {
	return func(line string) (match, bool) {
		for _, r := range rules {
			if m, ok := r(line); ok {
				return m, true
			}
		}
		return match{}, false
	}
}

func transactionID(bare *regexp.Regexp) rule {
	return firstOf(wholeLine(KeyTransactionID, bare), submatch(KeyTransactionID, txnLabelPattern))
}

// labelValue splits "label: value" lines into a title-cased key and its value
func labelValue(line string) (match, bool) {
	idx := strings.Index(line, ":")
	if idx <= 0 || idx == len(line)-1 {
		return match{}, false
	}
	// a colon between two digits is a clock time, not a separator
	if isDigit(line[idx-1]) && isDigit(line[idx+1]) {
		return match{}, false
	}
	label := strings.TrimSpace(line[:idx])
	value := strings.TrimSpace(line[idx+1:])
	// scheme separator of a URL
	if strings.HasPrefix(value, "//") {
		return match{}, false
	}
	if value == "" || !hasLetterPattern.MatchString(label) {
		return match{}, false
	}
	return match{key: titleCase(label), value: value, explicit: true}, true
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// titleCase upper-cases the first letter of each word and lower-cases the rest.
// Casers are stateful, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.Und).String(strings.Join(strings.Fields(s), " "))
}

// ruleSet is the configuration for one category
type ruleSet struct {
	// fields is the fixed, ordered field list; nil means fields are dynamic
	fields []string
	rules  []rule
	// header captures the first unclassified line as the title
	header bool
}

var targetedRules = map[Category]ruleSet{
	CategoryPhonePe: {
		fields: []string{KeyAmount, KeyPersonName, KeyDateTime, KeyTransactionID, KeyUTR, KeyDebitedFrom, KeyMessage},
		rules: []rule{
			wholeLine(KeyAmount, amountPattern),
			wholeLine(KeyDateTime, dateTimePattern),
			transactionID(txnID12Pattern),
			submatch(KeyPersonName, personPattern),
			submatch(KeyUTR, utrPattern),
			submatch(KeyDebitedFrom, debitedPattern),
			submatch(KeyMessage, messagePattern),
		},
	},
	CategoryPaytm: {
		fields: []string{KeyAmount, KeyPersonName, KeyUPIID, KeyTransactionID, KeyUPIRef, KeyDateTime},
		rules: []rule{
			wholeLine(KeyAmount, amountPattern),
			wholeLine(KeyDateTime, dateTimePattern),
			transactionID(txnID16Pattern),
			submatch(KeyPersonName, personPattern),
			token(KeyUPIID, upiIDPattern),
			submatch(KeyUPIRef, upiRefPattern),
		},
	},
	CategoryGooglePay: {
		fields: []string{KeyAmount, KeyPersonName, KeyUPIID, KeyTransactionID, KeyDateTime},
		rules: []rule{
			wholeLine(KeyAmount, amountPattern),
			wholeLine(KeyDateTime, dateTimePattern),
			transactionID(txnID12Pattern),
			submatch(KeyPersonName, personPattern),
			token(KeyUPIID, upiIDPattern),
		},
	},
	CategoryAmazonPay: {
		fields: []string{KeyAmount, KeyPersonName, KeyTransactionID, KeyDateTime},
		rules: []rule{
			wholeLine(KeyAmount, amountPattern),
			wholeLine(KeyDateTime, dateTimePattern),
			transactionID(txnID12Pattern),
			submatch(KeyPersonName, personPattern),
		},
	},
}

var genericRules = ruleSet{
	rules: []rule{
		labelValue,
		wholeLine(KeyAmount, amountPattern),
		wholeLine(KeyDate, datePattern),
		wholeLine(KeyDateTime, dateTimePattern),
		wholeLine(KeyVendor, vendorPattern),
	},
	header: true,
}

func rulesFor(c Category) ruleSet {
	if rs, ok := targetedRules[c]; ok {
		return rs
	}
	return genericRules
}
