// Package card implements the FITS 80-column header card codec.
//
// A card is a fixed 80-byte record: an 8-character keyword, an optional
// value indicator ("= " at columns 9-10), a value, and an optional
// comment introduced by '/'. Values are typed: logical (T/F), integer,
// real (with Fortran D exponents), complex, quoted string (with
// doubled-quote escaping), or undefined.
package card

import (
	"fmt"
	"strconv"
	"strings"
)

// Size is the fixed length of a header card in bytes.
const Size = 80

// Keywords with special structural meaning.
const (
	KeywordEnd      = "END"
	KeywordComment  = "COMMENT"
	KeywordHistory  = "HISTORY"
	KeywordContinue = "CONTINUE"
)

// Card is a single header record. Value holds one of: nil (undefined or
// commentary), bool, int64, float64, complex128, or string.
type Card struct {
	Keyword string
	Value   interface{}
	Comment string
}

// IsCommentary reports whether the card carries no value by construction
// (COMMENT, HISTORY, END, or a blank keyword).
func (c Card) IsCommentary() bool {
	switch c.Keyword {
	case KeywordComment, KeywordHistory, KeywordEnd, "":
		return true
	}
	return false
}

// IsEnd reports whether this is the END card.
func (c Card) IsEnd() bool {
	return c.Keyword == KeywordEnd
}

// Nth builds an indexed keyword such as NAXIS1 or TFORM12.
func Nth(prefix string, n int) string {
	return fmt.Sprintf("%s%d", prefix, n)
}

// IsValidKeyword reports whether s is a legal FITS keyword: at most 8
// characters drawn from uppercase letters, digits, hyphen and underscore.
func IsValidKeyword(s string) bool {
	if len(s) > 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}

// Parse decodes one 80-byte card image.
//
// Structural problems (wrong length, unterminated string) are errors.
// A value that is merely unparsable is stored as undefined (nil) so a
// sloppy header does not make the whole HDU unreadable.
func Parse(raw []byte) (Card, error) {
	if len(raw) != Size {
		return Card{}, fmt.Errorf("card image must be %d bytes, got %d", Size, len(raw))
	}

	keyword := strings.TrimRight(string(raw[0:8]), " ")

	if keyword == KeywordEnd {
		return Card{Keyword: KeywordEnd}, nil
	}

	// The long-string convention places CONTINUE cards without a value
	// indicator; their payload is still a quoted string.
	if keyword == KeywordContinue {
		c := Card{Keyword: KeywordContinue}
		val, rest, err := parseQuoted(strings.TrimLeft(string(raw[8:]), " "))
		if err != nil {
			return c, err
		}
		c.Value = val
		c.Comment = parseComment(rest)
		return c, nil
	}

	// No value indicator: commentary card, text in columns 9-80.
	if string(raw[8:10]) != "= " || keyword == KeywordComment || keyword == KeywordHistory {
		return Card{
			Keyword: keyword,
			Comment: strings.TrimRight(string(raw[8:]), " "),
		}, nil
	}

	c := Card{Keyword: keyword}
	s := strings.TrimLeft(string(raw[10:]), " ")
	if s == "" {
		return c, nil // undefined value
	}

	if s[0] == '\'' {
		val, rest, err := parseQuoted(s)
		if err != nil {
			return c, err
		}
		c.Value = val
		c.Comment = parseComment(rest)
		return c, nil
	}

	valstr := s
	if j := strings.IndexByte(s, '/'); j >= 0 {
		valstr = s[:j]
		c.Comment = strings.TrimSpace(s[j+1:])
	}
	valstr = strings.TrimSpace(valstr)
	if valstr == "" {
		return c, nil // undefined value with a comment
	}

	c.Value = parseValue(valstr)
	return c, nil
}

// parseValue interprets an unquoted value string. Unparsable values
// yield nil.
func parseValue(s string) interface{} {
	switch s[0] {
	case 'T':
		if s == "T" {
			return true
		}
	case 'F':
		if s == "F" {
			return false
		}
	case '(':
		var re, im float64
		if _, err := fmt.Sscanf(s, "(%g,%g)", &re, &im); err == nil {
			return complex(re, im)
		}
		return nil
	}

	first := s[0]
	if (first >= '0' && first <= '9') || first == '+' || first == '-' || first == '.' {
		if strings.ContainsAny(s, ".EDed") {
			// Fortran D exponents are legal in FITS reals.
			fs := strings.Replace(s, "D", "E", 1)
			fs = strings.Replace(fs, "d", "e", 1)
			if v, err := strconv.ParseFloat(fs, 64); err == nil {
				return v
			}
			return nil
		}
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return v
		}
	}
	return nil
}

// parseQuoted consumes a leading quoted string, handling doubled single
// quotes, and returns the value plus the unconsumed remainder. Trailing
// blanks inside the quotes are not significant.
func parseQuoted(s string) (string, string, error) {
	if s == "" || s[0] != '\'' {
		return "", "", fmt.Errorf("string value does not start with a quote")
	}

	var b strings.Builder
	i := 1
	for i < len(s) {
		if s[i] != '\'' {
			b.WriteByte(s[i])
			i++
			continue
		}
		// Quote: either an escaped quote or the terminator.
		if i+1 < len(s) && s[i+1] == '\'' {
			b.WriteByte('\'')
			i += 2
			continue
		}
		return strings.TrimRight(b.String(), " "), s[i+1:], nil
	}
	return "", "", fmt.Errorf("unterminated string value")
}

// parseComment extracts the comment from the text following a value.
func parseComment(rest string) string {
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		return strings.TrimSpace(rest[j+1:])
	}
	return ""
}
