// Package recipients turns pasted or uploaded text into an ordered recipient list.
package recipients

import (
	"io"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"
)

// DefaultPreviewLimit is how many addresses are shown back to the user.
const DefaultPreviewLimit = 20

// ErrInvalidEncoding is returned when an uploaded list is not UTF-8 text.
var ErrInvalidEncoding = errors.New("recipients file is not valid UTF-8 text")

// List is an ordered sequence of address tokens. Order is insertion order and
// duplicates are kept.
type List []string

// Parse splits text on commas and newlines, trims every token and drops the
// empty ones. Addresses are not validated: malformed ones surface later as
// delivery failures.
func Parse(text string) List {
	if text == "" {
		return List{}
	}

	parts := strings.Split(strings.ReplaceAll(text, ",", "\n"), "\n")
	list := make(List, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}
	return list
}

// Read parses an uploaded plain-text file, one address per line.
func Read(r io.Reader) (List, error) {
	if r == nil {
		return List{}, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read recipients file")
	}
	if !utf8.Valid(data) {
		return nil, ErrInvalidEncoding
	}

	return Parse(string(data)), nil
}

// Resolve picks the recipient source: pasted text wins when it has any
// content, otherwise the uploaded file is read. Both absent yields an empty
// list.
func Resolve(text string, file io.Reader) (List, error) {
	if strings.TrimSpace(text) != "" || file == nil {
		return Parse(text), nil
	}
	return Read(file)
}

// Preview returns at most limit leading entries together with the full count.
// A non-positive limit means DefaultPreviewLimit.
func Preview(list List, limit int) (List, int) {
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if len(list) <= limit {
		return list, len(list)
	}
	return list[:limit], len(list)
}

// Strings returns a copy of the list as a plain slice.
func (l List) Strings() []string {
	out := make([]string, len(l))
	copy(out, l)
	return out
}
