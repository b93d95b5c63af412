package fetcher

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// DecodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Expects input in the form [{...},{...}].
// Both channels are closed when processing completes.
func DecodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

// DecodeJSONObject decodes a single JSON object from a reader.
func DecodeJSONObject[T any](r io.Reader) (*T, error) {
	var obj T
	if err := json.NewDecoder(r).Decode(&obj); err != nil {
		return nil, eris.Wrap(err, "json: decode object")
	}
	return &obj, nil
}

// emitJSON decodes r into RawRows numbered from line+1. With an empty path
// the document must be an array of objects and is streamed; otherwise the
// document is decoded whole and the array at the dotted path is used.
func emitJSON(ctx context.Context, r io.Reader, path string, line int, out chan<- RawRow) (int, error) {
	if path == "" {
		itemCh, errCh := DecodeJSONArray[map[string]any](ctx, r)
		for item := range itemCh {
			line++
			if err := send(ctx, out, RawRow{Line: line, Values: item}); err != nil {
				return line, err
			}
		}
		if err := <-errCh; err != nil {
			return line, err
		}
		return line, nil
	}

	doc, err := DecodeJSONObject[map[string]any](r)
	if err != nil {
		return line, err
	}
	items, err := unwrapPath(*doc, path)
	if err != nil {
		return line, err
	}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return line, eris.Errorf("json: element %d under %q is not an object", i, path)
		}
		line++
		if err := send(ctx, out, RawRow{Line: line, Values: obj}); err != nil {
			return line, err
		}
	}
	return line, nil
}

func unwrapPath(doc map[string]any, path string) ([]any, error) {
	var cur any = doc
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, eris.Errorf("json: %q is not an object", key)
		}
		cur, ok = m[key]
		if !ok {
			return nil, eris.Errorf("json: missing key %q", key)
		}
	}
	items, ok := cur.([]any)
	if !ok {
		return nil, eris.Errorf("json: %q is not an array", path)
	}
	return items, nil
}
