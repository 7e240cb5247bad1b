// Package location holds the toy's location URL. Only the query string is
// ever rewritten, and rewriting never adds history or reloads anything.
package location

import (
	"fmt"
	"net/url"
	"sync"
)

// Default is used when no location is given on the command line.
const Default = "camera-toy:///"

// Location is safe for concurrent use.
type Location struct {
	mu        sync.Mutex
	u         *url.URL
	observers []func(u *url.URL)
}

// Parse creates a Location from raw. An empty raw uses Default.
func Parse(raw string) (*Location, error) {
	if raw == "" {
		raw = Default
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", raw, err)
	}
	return &Location{u: u}, nil
}

// URL returns a copy of the current URL.
func (l *Location) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *l.u
	return &u
}

// String returns the current URL as text.
func (l *Location) String() string {
	return l.URL().String()
}

// Query returns the parsed query string. Malformed pairs are skipped.
func (l *Location) Query() url.Values {
	l.mu.Lock()
	raw := l.u.RawQuery
	l.mu.Unlock()
	q, _ := url.ParseQuery(raw)
	return q
}

// Replace swaps the query string in place and notifies observers with the
// new URL.
func (l *Location) Replace(q url.Values) {
	l.mu.Lock()
	u := *l.u
	u.RawQuery = q.Encode()
	l.u = &u
	observers := make([]func(*url.URL), len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, f := range observers {
		c := u
		f(&c)
	}
}

// Observe registers f to be called after every Replace. f runs on the
// goroutine that called Replace.
func (l *Location) Observe(f func(u *url.URL)) {
	l.mu.Lock()
	l.observers = append(l.observers, f)
	l.mu.Unlock()
}
