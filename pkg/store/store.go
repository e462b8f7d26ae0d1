// Package store persists record collections keyed by an opaque selector.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/astromechza/record-editor/pkg/records"
)

var ErrNotFound = errors.New("selector not found")

// IOError wraps any failure to read or write the backing storage.
type IOError struct {
	Op       string
	Selector string
	Err      error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Selector, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Revision describes one save of a selector.
type Revision struct {
	Hash      string    `json:"hash"`
	Actor     string    `json:"actor"`
	Seq       uint64    `json:"seq"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Records   int       `json:"records"`
}

type Store interface {
	// Load returns the last saved collection for the selector, or ErrNotFound.
	Load(ctx context.Context, selector string) (records.Collection, error)
	// Save replaces the collection for the selector and returns what was stored.
	Save(ctx context.Context, selector string, c records.Collection) (records.Collection, error)
	// History lists the saves of a selector, oldest first.
	History(ctx context.Context, selector string) ([]Revision, error)
	Close() error
}
