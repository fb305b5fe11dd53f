package card

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// fixedValueWidth is the width of the fixed-format value field
// (columns 11-30). Logicals, integers and reals are right justified in
// it; quoted strings start at column 11 with a minimum 8-character body.
const fixedValueWidth = 20

const minStringBody = 8

// Format encodes the card as an 80-byte image. Values that cannot be
// represented in a single card (over-long strings or commentary text,
// NaN or infinite reals, invalid keywords) are errors; over-long strings
// are the header layer's job to split into CONTINUE cards.
func (c Card) Format() ([]byte, error) {
	if !IsValidKeyword(c.Keyword) {
		return nil, fmt.Errorf("invalid keyword %q", c.Keyword)
	}

	var b strings.Builder
	b.Grow(Size)

	switch {
	case c.Keyword == KeywordEnd:
		b.WriteString(KeywordEnd)

	case c.IsCommentary():
		if len(c.Comment) > Size-8 {
			return nil, fmt.Errorf("commentary text too long for one card (%d > %d)", len(c.Comment), Size-8)
		}
		fmt.Fprintf(&b, "%-8s%s", c.Keyword, c.Comment)

	case c.Keyword == KeywordContinue:
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("CONTINUE card value must be a string")
		}
		body, err := quoteString(s)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, "%-8s  %s", KeywordContinue, body)
		appendComment(&b, c.Comment)

	default:
		field, leftJustified, err := formatValue(c.Value)
		if err != nil {
			return nil, fmt.Errorf("keyword %s: %w", c.Keyword, err)
		}
		if leftJustified {
			fmt.Fprintf(&b, "%-8s= %s", c.Keyword, field)
		} else {
			fmt.Fprintf(&b, "%-8s= %*s", c.Keyword, fixedValueWidth, field)
		}
		appendComment(&b, c.Comment)
	}

	if b.Len() > Size {
		return nil, fmt.Errorf("card for keyword %q exceeds %d bytes", c.Keyword, Size)
	}
	out := make([]byte, Size)
	for i := range out {
		out[i] = ' '
	}
	copy(out, b.String())
	return out, nil
}

// appendComment appends " / comment", truncating so the card stays
// within 80 bytes. Comment truncation is conventional, not an error.
func appendComment(b *strings.Builder, comment string) {
	if comment == "" {
		return
	}
	room := Size - b.Len() - 3
	if room <= 0 {
		return
	}
	if len(comment) > room {
		comment = comment[:room]
	}
	b.WriteString(" / ")
	b.WriteString(comment)
}

// formatValue renders a typed value. The second result is true for
// strings, which are left justified; all other types use the fixed
// right-justified field.
func formatValue(v interface{}) (string, bool, error) {
	switch val := v.(type) {
	case nil:
		return "", false, nil
	case bool:
		if val {
			return "T", false, nil
		}
		return "F", false, nil
	case int64:
		return strconv.FormatInt(val, 10), false, nil
	case int:
		return strconv.Itoa(val), false, nil
	case float64:
		s, err := formatFloat(val)
		return s, false, err
	case complex128:
		re, err := formatFloat(real(val))
		if err != nil {
			return "", false, err
		}
		im, err := formatFloat(imag(val))
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("(%s, %s)", re, im), false, nil
	case string:
		s, err := quoteString(val)
		return s, true, err
	default:
		return "", false, fmt.Errorf("unsupported value type %T", v)
	}
}

// formatFloat renders a real value in FITS fixed format: uppercase E
// exponent, always containing a decimal point or exponent, at most 20
// characters.
func formatFloat(v float64) (string, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "", fmt.Errorf("value %v has no FITS representation", v)
	}
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if !strings.ContainsAny(s, ".E") {
		s += "."
	}
	if len(s) <= fixedValueWidth {
		return s, nil
	}
	// Shed precision until the field fits.
	for prec := 13; prec >= 1; prec-- {
		s = strconv.FormatFloat(v, 'E', prec, 64)
		if len(s) <= fixedValueWidth {
			return s, nil
		}
	}
	return "", fmt.Errorf("value %v does not fit the fixed value field", v)
}

// quoteString renders a string value: single quotes, internal quotes
// doubled, body padded to the minimum 8 characters so the closing quote
// lands no earlier than column 20.
func quoteString(s string) (string, error) {
	escaped := strings.ReplaceAll(s, "'", "''")
	if len(escaped) < minStringBody {
		escaped += strings.Repeat(" ", minStringBody-len(escaped))
	}
	// Keyword(8) + "= "(2) + quotes(2) leaves 68 characters for the body.
	if len(escaped) > Size-12 {
		return "", fmt.Errorf("string value too long for one card (%d > %d)", len(escaped), Size-12)
	}
	return "'" + escaped + "'", nil
}

// EndImage returns the formatted END card.
func EndImage() []byte {
	img, _ := Card{Keyword: KeywordEnd}.Format()
	return img
}
