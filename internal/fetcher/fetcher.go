// Package fetcher downloads dataset files over HTTP, FTP or the local
// filesystem and decodes them into a stream of raw rows.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Downloader retrieves the bytes behind a location.
type Downloader interface {
	// Download fetches the location and returns its body.
	Download(ctx context.Context, location string) (io.ReadCloser, error)

	// DownloadToFile fetches the location and writes it to path. Returns bytes written.
	DownloadToFile(ctx context.Context, location string, path string) (int64, error)
}

// RawRow is one undecoded record of a dataset.
type RawRow struct {
	// Line is 1-based and counts data rows only.
	Line int
	// Columns lists column names in file order when the format has them.
	Columns []string
	// Values maps a column name (or JSON key) to its value. JSON objects
	// keep their nested maps and slices.
	Values map[string]any
}

// Get returns the raw value at a dotted path ("properties.c_gid").
func (r RawRow) Get(path string) (any, bool) {
	var cur any = r.Values
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// String returns the value at path rendered as a trimmed string. Missing and
// null values give "".
func (r RawRow) String(path string) string {
	v, ok := r.Get(path)
	if !ok {
		return ""
	}
	return strings.TrimSpace(Stringify(v))
}

// Stringify renders a decoded scalar the way it appeared in the source.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// Source yields the rows of one dataset. Both channels are closed when the
// stream ends; at most one error is sent and it is always a *FetchError.
type Source interface {
	Rows(ctx context.Context) (<-chan RawRow, <-chan error)
}

// FetchError reports a failure to retrieve or decode a dataset. It aborts
// the whole run.
type FetchError struct {
	Location string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Location, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(location string, err error) *FetchError {
	if fe, ok := err.(*FetchError); ok {
		return fe
	}
	return &FetchError{Location: location, Err: err}
}
