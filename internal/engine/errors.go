package engine

import "fmt"

// Failure taxonomy. Encrypted input is pdfdoc.ErrEncrypted, raised at the
// toolkit boundary where passwords are (not) handled. All of these are
// scoped to a single page: assembly drops the page, estimation counts 0.

// DecodeError wraps unreadable image or PDF bytes.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.Name, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError wraps a codec rejection of encode parameters.
type EncodeError struct {
	Quality int
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode at quality %d: %v", e.Quality, e.Err)
}
func (e *EncodeError) Unwrap() error { return e.Err }

// PageIndexError reports a page reference outside the document.
type PageIndexError struct {
	Index int
	Count int
}

func (e *PageIndexError) Error() string {
	return fmt.Sprintf("page %d out of range (document has %d pages)", e.Index, e.Count)
}
