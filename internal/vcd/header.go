package vcd

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the layout accepted for the $date keyword.
const DateLayout = time.ANSIC

// DefaultVersion is written to $version when no header is supplied.
const DefaultVersion = "vcdtrace"

// Header holds the metadata written before the declarations.
// It is validated once at construction and never changes afterwards.
type Header struct {
	timescale Timescale
	date      string
	comment   string
	version   string
}

// HeaderOption configures a Header.
type HeaderOption func(*Header)

// WithTimescale sets the $timescale keyword.
func WithTimescale(ts Timescale) HeaderOption {
	return func(h *Header) { h.timescale = ts }
}

// WithDate sets $date. It must be empty or follow DateLayout.
func WithDate(date string) HeaderOption {
	return func(h *Header) { h.date = date }
}

// WithComment sets $comment.
func WithComment(comment string) HeaderOption {
	return func(h *Header) { h.comment = comment }
}

// WithVersion sets $version.
func WithVersion(version string) HeaderOption {
	return func(h *Header) { h.version = version }
}

// NewHeader builds and validates a header. Without options the header
// carries DefaultTimescale and no date, comment or version.
func NewHeader(opts ...HeaderOption) (*Header, error) {
	h := &Header{timescale: DefaultTimescale}
	for _, opt := range opts {
		opt(h)
	}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Header) validate() error {
	if err := h.timescale.validate(); err != nil {
		return err
	}
	if h.date != "" {
		if _, err := time.Parse(DateLayout, h.date); err != nil {
			return newError(ErrCodeInvalidHeader, fmt.Sprintf("invalid date %q format", h.date))
		}
	}
	return nil
}

// defaultHeader is used when the writer is built without WithHeader.
func defaultHeader(now time.Time) *Header {
	return &Header{
		timescale: DefaultTimescale,
		date:      now.Format(DateLayout),
		version:   DefaultVersion,
	}
}

// Timescale returns the header's timescale.
func (h *Header) Timescale() Timescale { return h.timescale }

// keywords returns the header lines in output order, skipping empty values.
func (h *Header) keywords() [][2]string {
	all := [][2]string{
		{"$timescale", h.timescale.String()},
		{"$date", h.date},
		{"$comment", h.comment},
		{"$version", h.version},
	}
	out := all[:0]
	for _, kw := range all {
		if kw[1] == "" {
			continue
		}
		kw[1] = strings.ReplaceAll(kw[1], "\n", "\n\t")
		out = append(out, kw)
	}
	return out
}
