package model

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrMalformedCursor is returned when cursor string can't be decoded
var ErrMalformedCursor = errors.New("malformed cursor")

type cursorKey struct {
	CreatedAt int64  `msgpack:"c"`
	ID        string `msgpack:"i"`
}

// Cursor is opaque resume point of paginated customers listing.
// It must be obtained from Page and passed back as is.
type Cursor struct {
	key cursorKey
}

// CursorAfter builds cursor which resumes listing right after provided customer
func CursorAfter(c *Customer) *Cursor {
	return &Cursor{key: cursorKey{CreatedAt: c.CreatedAt, ID: c.ID}}
}

// ParseCursor restores cursor from its string form
func ParseCursor(s string) (*Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w - %v", ErrMalformedCursor, err)
	}

	var key cursorKey
	if err := msgpack.Unmarshal(raw, &key); err != nil {
		return nil, fmt.Errorf("%w - %v", ErrMalformedCursor, err)
	}

	if key.ID == "" {
		return nil, ErrMalformedCursor
	}
	return &Cursor{key: key}, nil
}

// CreatedAt returns creation time of the last seen customer, meant for store implementations only
func (c *Cursor) CreatedAt() int64 {
	return c.key.CreatedAt
}

// ID returns id of the last seen customer, meant for store implementations only
func (c *Cursor) ID() string {
	return c.key.ID
}

func (c *Cursor) String() string {
	raw, err := msgpack.Marshal(&c.key)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// MarshalText implements encoding.TextMarshaler
func (c *Cursor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (c *Cursor) UnmarshalText(text []byte) error {
	parsed, err := ParseCursor(string(text))
	if err != nil {
		return err
	}
	*c = *parsed
	return nil
}

// Page is single chunk of customers listing
type Page struct {
	Items []*Customer `json:"items"`
	Next  *Cursor     `json:"next"`
}

// NewPage builds page from fetched items, next cursor is set only if page is full
func NewPage(items []*Customer, size int) *Page {
	if items == nil {
		items = make([]*Customer, 0)
	}

	p := &Page{Items: items}
	if len(items) > 0 && len(items) == size {
		p.Next = CursorAfter(items[len(items)-1])
	}
	return p
}
