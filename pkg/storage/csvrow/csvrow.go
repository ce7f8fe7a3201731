// Package csvrow renders audit records as single CSV lines for the admin
// exports.
package csvrow

import (
	"bytes"
	"encoding/csv"
	"regexp"
	"strings"
	"time"

	"github.com/papercomputeco/ispoc/pkg/storage"
)

// MaxResponseLength is the number of characters of an answer kept in the
// query log export.
const MaxResponseLength = 500

// TimestampLayout matches the millisecond UTC timestamps of the export.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	lineBreaks = regexp.MustCompile(`\r?\n`)

	// greeting matches an assistant preamble on the first line, from the
	// salutation through the offer of help and the rest of that line.
	greeting = regexp.MustCompile(`(?i)^(Hello|Hi|Welcome|Thank you for|I'm your|I am your).*?(How can I help you today\?|How can I assist you\?|How may I assist you\?|What can I help you with\?).*`)
)

// Feedback renders f as one CSV line.
func Feedback(f *storage.Feedback) string {
	return join([]string{
		Timestamp(f.Timestamp),
		flatten(f.Rating),
		flatten(f.Liked),
		flatten(f.Frustrated),
		flatten(f.FeatureRequest),
		flatten(f.Recommendation),
		flatten(f.AdditionalComments),
	})
}

// QueryLog renders l as one CSV line. The response is cut to
// MaxResponseLength characters and greeting preambles are removed from every
// text field.
func QueryLog(l *storage.QueryLog) string {
	return join([]string{
		Timestamp(l.Timestamp),
		stripGreeting(l.UserID),
		stripGreeting(l.SessionID),
		stripGreeting(l.Query),
		stripGreeting(cut(l.Response, MaxResponseLength)),
	})
}

// Timestamp formats t in UTC with millisecond precision.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func flatten(s string) string {
	return lineBreaks.ReplaceAllString(s, " ")
}

func stripGreeting(s string) string {
	s = strings.TrimSpace(greeting.ReplaceAllString(strings.TrimSpace(s), ""))
	return flatten(s)
}

func cut(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// join quotes fields containing separators or quotes and doubles embedded
// quotes.
func join(fields []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	// Writing to a bytes.Buffer cannot fail.
	_ = w.Write(fields)
	w.Flush()
	return strings.TrimRight(buf.String(), "\n")
}
