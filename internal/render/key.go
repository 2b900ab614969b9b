package render

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pastekeeper/internal/common"
	"github.com/dmitrijs2005/pastekeeper/internal/ident"
)

// Key addresses one rendered view of an entry.
type Key struct {
	ID  ident.ID
	Ext string
}

// NewKey returns the key of id rendered as ext. An empty ext selects
// common.DefaultExtension.
func NewKey(id ident.ID, ext string) Key {
	if ext == "" {
		ext = common.DefaultExtension
	}
	return Key{ID: id, Ext: ext}
}

// ParseKey parses "<id>" or "<id>.<ext>". Only the first dot separates the
// extension, so "<id>.tar.gz" has extension "tar.gz".
func ParseKey(s string) (Key, error) {
	raw, ext, _ := strings.Cut(s, ".")

	id, err := ident.Parse(raw)
	if err != nil {
		return Key{}, fmt.Errorf("parse key %q: %w", s, err)
	}
	// "<id>." has an empty ext, which NewKey turns into the default.
	return NewKey(id, ext), nil
}

// String returns the "<id>.<ext>" form.
func (k Key) String() string {
	return k.ID.String() + "." + k.Ext
}
