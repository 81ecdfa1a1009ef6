package diag

import (
	"fmt"
	"unicode/utf8"
)

// MaxTextLen bounds the text of a single trace record in bytes.
const MaxTextLen = 1024

type Severity int

const (
	SeverityTrace Severity = iota
	SeverityWarn
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityTrace:
		return "trace"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Record is a pre-rendered trace message.
type Record struct {
	Severity Severity
	Text     string
	File     string
	Line     int
}

// NewRecord builds a record, truncating text to MaxTextLen.
func NewRecord(sev Severity, text, file string, line int) Record {
	return Record{
		Severity: sev,
		Text:     Truncate(text, MaxTextLen),
		File:     file,
		Line:     line,
	}
}

// Truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// AssertReport describes a failed engine assertion.
type AssertReport struct {
	Expression string
	Message    string
	File       string
	Line       int
}

func (r AssertReport) String() string {
	return fmt.Sprintf("%s:%d: (%s) %s", r.File, r.Line, r.Expression, r.Message)
}
