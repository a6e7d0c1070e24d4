package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultInvoiceNumberTemplate = "VET-{YYYY}{MM}{DD}-{SEQ4}"

var ErrInvalidTemplate = errors.New("invalid_invoice_number_template")

// scopeSeq makes expand leave sequence tokens unexpanded.
const scopeSeq int64 = -1

// FormatInvoiceNumber builds a human-readable invoice number from template,
// the day the invoice was issued and its sequence within that day.
//
// Supported tokens: {YYYY} {YY} {MM} {DD} {SEQ} and {SEQn} for a sequence
// zero-padded to n digits.
func FormatInvoiceNumber(template string, issuedAt time.Time, seq int64) (string, error) {
	if seq <= 0 {
		return "", fmt.Errorf("invalid invoice sequence: %d", seq)
	}
	return expand(template, issuedAt, seq)
}

// SequenceScope expands the date tokens of template and keeps its sequence
// tokens verbatim. Numbers sharing a scope draw from the same counter, so
// "VET-{YYYY}{MM}{DD}-{SEQ4}" restarts every day while "INV-{SEQ}" never does.
func SequenceScope(template string, issuedAt time.Time) (string, error) {
	return expand(template, issuedAt, scopeSeq)
}

// ValidateTemplate reports whether template only uses known tokens.
func ValidateTemplate(template string) error {
	_, err := expand(template, time.Time{}, 1)
	return err
}

func expand(template string, issuedAt time.Time, seq int64) (string, error) {
	if strings.TrimSpace(template) == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTemplate)
	}

	var b strings.Builder
	rest := template
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			if strings.IndexByte(rest, '}') >= 0 {
				return "", fmt.Errorf("%w: unmatched }", ErrInvalidTemplate)
			}
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("%w: unterminated token", ErrInvalidTemplate)
		}
		if strings.IndexByte(rest[:open], '}') >= 0 {
			return "", fmt.Errorf("%w: unmatched }", ErrInvalidTemplate)
		}

		value, err := token(rest[open+1:open+end], issuedAt, seq)
		if err != nil {
			return "", err
		}
		b.WriteString(rest[:open])
		b.WriteString(value)
		rest = rest[open+end+1:]
	}
}

func token(name string, issuedAt time.Time, seq int64) (string, error) {
	switch name {
	case "YYYY":
		return issuedAt.Format("2006"), nil
	case "YY":
		return issuedAt.Format("06"), nil
	case "MM":
		return issuedAt.Format("01"), nil
	case "DD":
		return issuedAt.Format("02"), nil
	case "SEQ":
		if seq == scopeSeq {
			return "{SEQ}", nil
		}
		return strconv.FormatInt(seq, 10), nil
	}
	if width, ok := strings.CutPrefix(name, "SEQ"); ok {
		n, err := strconv.Atoi(width)
		if err == nil && n > 0 && n <= 18 {
			if seq == scopeSeq {
				return "{" + name + "}", nil
			}
			return fmt.Sprintf("%0*d", n, seq), nil
		}
	}
	return "", fmt.Errorf("%w: unknown token {%s}", ErrInvalidTemplate, name)
}
