package album

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Store persists one JSON document per album under Dir, keyed by
// sanitized album title. Unknown fields in stored documents are ignored
// on load so older records stay readable.
type Store struct {
	Dir string
}

// NewStore creates the backing directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create album store directory: %w", err)
	}
	return &Store{Dir: dir}, nil
}

// Path returns the file an album with the given title is stored at.
func (s *Store) Path(title string) string {
	return filepath.Join(s.Dir, SanitizeTitle(title)+".json")
}

// Load reads the record for title. A missing record returns (nil, nil).
func (s *Store) Load(title string) (*Album, error) {
	data, err := os.ReadFile(s.Path(title))
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var alb Album
	if err := json.Unmarshal(data, &alb); err != nil {
		return nil, fmt.Errorf("corrupt album record %s: %w", s.Path(title), err)
	}
	return &alb, nil
}

// Save writes the record, replacing the previous file only once the new
// content is fully on disk.
func (s *Store) Save(alb *Album) error {
	data, err := Encode(alb)
	if err != nil {
		return err
	}
	path := s.Path(alb.Title)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Encode renders the record with stable field ordering, two-space
// indentation and unescaped non-ASCII text, ending in a newline.
func Encode(alb *Album) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(alb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SanitizeTitle turns an album title into a safe file name. Titles are
// NFC-normalized so the same album maps to the same file regardless of
// how the host composed its unicode.
func SanitizeTitle(title string) string {
	title = norm.NFC.String(strings.TrimSpace(title))
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return '_'
		}
		return r
	}, title)
	title = strings.Trim(title, ". ")
	if title == "" {
		title = "untitled"
	}
	return title
}
