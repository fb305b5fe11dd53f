package fits

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/starbeam-io/go-fits/internal/binary"
	"github.com/starbeam-io/go-fits/internal/card"
	"github.com/starbeam-io/go-fits/internal/dtype"
)

// Header is an ordered collection of FITS cards. The END card is
// implicit: it is appended during serialization and stripped during
// parsing.
//
// Mutating methods record that the header changed so the update path
// knows which HDUs need rewriting.
type Header struct {
	cards    []card.Card
	modified bool
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{}
}

// Len returns the number of cards, excluding the implicit END.
func (h *Header) Len() int {
	return len(h.cards)
}

// Card returns the i-th card.
func (h *Header) Card(i int) card.Card {
	return h.cards[i]
}

// Keywords returns every keyword in card order, including repeats.
func (h *Header) Keywords() []string {
	out := make([]string, len(h.cards))
	for i, c := range h.cards {
		out[i] = c.Keyword
	}
	return out
}

// Index returns the position of the first card with the given keyword,
// or -1.
func (h *Header) Index(keyword string) int {
	for i, c := range h.cards {
		if c.Keyword == keyword {
			return i
		}
	}
	return -1
}

// Get returns the first card with the given keyword.
func (h *Header) Get(keyword string) (card.Card, bool) {
	if i := h.Index(keyword); i >= 0 {
		return h.cards[i], true
	}
	return card.Card{}, false
}

// Has reports whether the header contains the keyword.
func (h *Header) Has(keyword string) bool {
	return h.Index(keyword) >= 0
}

// Int returns the keyword's value as an integer.
func (h *Header) Int(keyword string) (int64, bool) {
	c, ok := h.Get(keyword)
	if !ok {
		return 0, false
	}
	v, ok := c.Value.(int64)
	return v, ok
}

// Float returns the keyword's value as a real. Integer values are
// widened, since FITS writers are loose about 1 versus 1.0.
func (h *Header) Float(keyword string) (float64, bool) {
	c, ok := h.Get(keyword)
	if !ok {
		return 0, false
	}
	switch v := c.Value.(type) {
	case float64:
		return v, true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// Bool returns the keyword's value as a logical.
func (h *Header) Bool(keyword string) (bool, bool) {
	c, ok := h.Get(keyword)
	if !ok {
		return false, false
	}
	v, ok := c.Value.(bool)
	return v, ok
}

// Str returns the keyword's value as a string, joining any CONTINUE
// cards per the long-string convention.
func (h *Header) Str(keyword string) (string, bool) {
	i := h.Index(keyword)
	if i < 0 {
		return "", false
	}
	v, ok := h.cards[i].Value.(string)
	if !ok {
		return "", false
	}
	for strings.HasSuffix(v, "&") && i+1 < len(h.cards) && h.cards[i+1].Keyword == card.KeywordContinue {
		i++
		next, ok := h.cards[i].Value.(string)
		if !ok {
			break
		}
		v = v[:len(v)-1] + next
	}
	return v, true
}

// Complex returns the keyword's value as a complex number.
func (h *Header) Complex(keyword string) (complex128, bool) {
	c, ok := h.Get(keyword)
	if !ok {
		return 0, false
	}
	v, ok := c.Value.(complex128)
	return v, ok
}

// Comment returns the comment attached to the keyword's card.
func (h *Header) Comment(keyword string) (string, bool) {
	c, ok := h.Get(keyword)
	if !ok {
		return "", false
	}
	return c.Comment, true
}

// Set stores a value, replacing the first existing card with the same
// keyword in place or appending a new one. Value must be nil, bool,
// int, int64, float64, complex128 or a string short enough for one
// card; use SetLongString for arbitrary strings.
func (h *Header) Set(keyword string, value interface{}, comment string) {
	c := card.Card{Keyword: keyword, Value: value, Comment: comment}
	if i := h.Index(keyword); i >= 0 {
		h.cards[i] = c
	} else {
		h.cards = append(h.cards, c)
	}
	h.modified = true
}

// maxStringBody is the longest escaped string body a single card holds.
const maxStringBody = card.Size - 12

// SetLongString stores a string value of any length, splitting it into
// CONTINUE cards when it does not fit a single card.
func (h *Header) SetLongString(keyword, value, comment string) {
	h.Remove(keyword)
	chunks := splitLongString(value)
	h.append(card.Card{Keyword: keyword, Value: chunks[0], Comment: comment})
	for _, chunk := range chunks[1:] {
		h.append(card.Card{Keyword: card.KeywordContinue, Value: chunk})
	}
}

// splitLongString breaks a string into card-sized chunks, every chunk
// but the last ending in the '&' continuation marker. Splitting counts
// escaped quotes so no chunk overflows its card.
func splitLongString(s string) []string {
	var chunks []string
	for {
		body := 0 // escaped length consumed so far, reserving one column for '&'
		i := 0
		for i < len(s) {
			w := 1
			if s[i] == '\'' {
				w = 2
			}
			if body+w > maxStringBody-1 {
				break
			}
			body += w
			i++
		}
		if i == len(s) {
			chunks = append(chunks, s)
			return chunks
		}
		chunks = append(chunks, s[:i]+"&")
		s = s[i:]
	}
}

// append adds a card without keyword deduplication.
func (h *Header) append(c card.Card) {
	h.cards = append(h.cards, c)
	h.modified = true
}

// Append adds a card without replacing existing ones with the same
// keyword. Commentary keywords are expected to repeat.
func (h *Header) Append(keyword string, value interface{}, comment string) {
	h.append(card.Card{Keyword: keyword, Value: value, Comment: comment})
}

// InsertAt places a card at position i, shifting later cards down.
func (h *Header) InsertAt(i int, keyword string, value interface{}, comment string) {
	c := card.Card{Keyword: keyword, Value: value, Comment: comment}
	h.cards = append(h.cards, card.Card{})
	copy(h.cards[i+1:], h.cards[i:])
	h.cards[i] = c
	h.modified = true
}

// Remove deletes the first card with the given keyword, along with any
// CONTINUE cards chained to it. It reports whether a card was removed.
func (h *Header) Remove(keyword string) bool {
	i := h.Index(keyword)
	if i < 0 {
		return false
	}
	j := i + 1
	if s, ok := h.cards[i].Value.(string); ok && strings.HasSuffix(s, "&") {
		for j < len(h.cards) && h.cards[j].Keyword == card.KeywordContinue {
			j++
		}
	}
	h.cards = append(h.cards[:i], h.cards[j:]...)
	h.modified = true
	return true
}

// AddComment appends COMMENT cards, splitting long text across several.
func (h *Header) AddComment(text string) {
	h.addCommentary(card.KeywordComment, text)
}

// AddHistory appends HISTORY cards.
func (h *Header) AddHistory(text string) {
	h.addCommentary(card.KeywordHistory, text)
}

func (h *Header) addCommentary(keyword, text string) {
	const width = card.Size - 8
	for len(text) > width {
		h.append(card.Card{Keyword: keyword, Comment: text[:width]})
		text = text[width:]
	}
	h.append(card.Card{Keyword: keyword, Comment: text})
}

// Modified reports whether the header changed since it was parsed or
// last written.
func (h *Header) Modified() bool {
	return h.modified
}

func (h *Header) clearModified() {
	h.modified = false
}

// Bitpix returns the BITPIX value, validated against the legal set.
func (h *Header) Bitpix() (int, error) {
	v, ok := h.Int("BITPIX")
	if !ok {
		return 0, fmt.Errorf("missing BITPIX card: %w", ErrCorruptHeader)
	}
	if !dtype.Valid(int(v)) {
		return 0, fmt.Errorf("invalid BITPIX %d: %w", v, ErrCorruptHeader)
	}
	return int(v), nil
}

// Naxis returns the axis lengths NAXIS1..NAXISn in order. An empty
// slice means NAXIS=0, i.e. no data.
func (h *Header) Naxis() ([]int, error) {
	n, ok := h.Int("NAXIS")
	if !ok {
		return nil, fmt.Errorf("missing NAXIS card: %w", ErrCorruptHeader)
	}
	if n < 0 || n > 999 {
		return nil, fmt.Errorf("invalid NAXIS %d: %w", n, ErrCorruptHeader)
	}
	axes := make([]int, n)
	for i := range axes {
		v, ok := h.Int(card.Nth("NAXIS", i+1))
		if !ok || v < 0 {
			return nil, fmt.Errorf("missing or invalid NAXIS%d card: %w", i+1, ErrCorruptHeader)
		}
		axes[i] = int(v)
	}
	return axes, nil
}

// DataSize computes the unpadded data region size in bytes from the
// mandatory keywords:
//
//	|BITPIX|/8 × GCOUNT × (PCOUNT + NAXIS1 × NAXIS2 × ...)
//
// GCOUNT defaults to 1 and PCOUNT to 0 when absent. Under the random
// groups convention (NAXIS1=0, GROUPS=T) the leading zero axis is
// excluded from the product.
func (h *Header) DataSize() (int64, error) {
	bitpix, err := h.Bitpix()
	if err != nil {
		return 0, err
	}
	axes, err := h.Naxis()
	if err != nil {
		return 0, err
	}
	if len(axes) == 0 {
		return 0, nil
	}

	gcount := int64(1)
	if v, ok := h.Int("GCOUNT"); ok {
		gcount = v
	}
	pcount := int64(0)
	if v, ok := h.Int("PCOUNT"); ok {
		pcount = v
	}

	if groups, _ := h.Bool("GROUPS"); groups && axes[0] == 0 {
		axes = axes[1:]
	}
	pixels := int64(1)
	for _, ax := range axes {
		pixels *= int64(ax)
	}

	size, _ := dtype.ElemSize(bitpix)
	return int64(size) * gcount * (pcount + pixels), nil
}

// Bytes serializes the header: every card, the END card, then space
// padding to a block boundary.
func (h *Header) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	for _, c := range h.cards {
		img, err := c.Format()
		if err != nil {
			return nil, err
		}
		buf.Write(img)
	}
	buf.Write(card.EndImage())
	for pad := binary.PadLength(int64(buf.Len())); pad > 0; pad-- {
		buf.WriteByte(' ')
	}
	return buf.Bytes(), nil
}

// parseHeader reads cards block by block until END. It returns the
// header and the number of bytes consumed (always a block multiple).
//
// io.EOF is returned untouched when the reader is exhausted before the
// first block, so the file scanner can tell "no more HDUs" from a
// header truncated mid-way, which is ErrCorruptHeader.
func parseHeader(r *binary.Reader, strict bool) (*Header, int64, error) {
	h := NewHeader()
	var span int64
	for {
		block, err := r.ReadBytes(binary.BlockSize)
		if err != nil {
			if span == 0 && h.Len() == 0 {
				return nil, 0, io.EOF
			}
			return nil, span, fmt.Errorf("header truncated after %d bytes: %w", span, ErrCorruptHeader)
		}
		span += binary.BlockSize

		for i := 0; i < binary.CardsPerBlock; i++ {
			raw := block[i*card.Size : (i+1)*card.Size]
			c, err := card.Parse(raw)
			if err != nil {
				if strict {
					return nil, span, fmt.Errorf("card %d: %v: %w", h.Len(), err, ErrCorruptHeader)
				}
				continue
			}
			if c.IsEnd() {
				h.modified = false
				return h, span, nil
			}
			if c.Keyword == "" && c.Comment == "" {
				continue // blank filler card
			}
			h.cards = append(h.cards, c)
		}
	}
}

// IsCorrupt reports whether err marks a header that could not be
// parsed, as opposed to an I/O failure.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorruptHeader)
}
