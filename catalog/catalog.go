package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/mohammad-safakhou/bookrec/models"
)

// Client looks up candidate books for a search term. Results keep the
// service's relevance ordering; each call issues a fresh lookup.
type Client interface {
	Search(ctx context.Context, term string, limit int, credential string) ([]models.BookCandidate, error)
}

type Provider string

const (
	GoogleBooksProvider Provider = "googlebooks"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported catalog provider")
	ErrEmptyTerm           = errors.New("empty search term")
	ErrInvalidLimit        = errors.New("limit must be positive")
)

// LookupFailure reports a failed catalog call for a single search term.
type LookupFailure struct {
	Term string
	Err  error
}

func (e *LookupFailure) Error() string {
	return fmt.Sprintf("catalog lookup %q failed: %v", e.Term, e.Err)
}

func (e *LookupFailure) Unwrap() error { return e.Err }

// Fail wraps err as a LookupFailure for term unless it already is one.
func Fail(term string, err error) error {
	if err == nil {
		return nil
	}
	var lf *LookupFailure
	if errors.As(err, &lf) {
		return err
	}
	return &LookupFailure{Term: term, Err: err}
}
