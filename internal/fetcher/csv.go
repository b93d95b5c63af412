package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune // default ','
	// Header pre-declares column names. When empty the first row is the header.
	Header     []string
	LazyQuotes bool
}

// StreamCSV reads delimited text and sends each record to a channel.
// Both channels are closed when processing completes.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		reader := csv.NewReader(r)
		if opts.Delimiter != 0 {
			reader.Comma = opts.Delimiter
		}
		reader.LazyQuotes = opts.LazyQuotes
		reader.FieldsPerRecord = -1

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}

			record, err := reader.Read()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "csv: read row")
				return
			}

			select {
			case rowCh <- record:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return
			}
		}
	}()

	return rowCh, errCh
}

// emitCSV decodes r into RawRows numbered from line+1 and returns the last
// line number used.
func emitCSV(ctx context.Context, r io.Reader, opts CSVOptions, line int, out chan<- RawRow) (int, error) {
	header := opts.Header
	rowCh, errCh := StreamCSV(ctx, r, opts)

	for record := range rowCh {
		if header == nil {
			header = normalizeHeader(record)
			continue
		}
		if isBlank(record) {
			continue
		}

		line++
		values := make(map[string]any, len(header))
		for i, col := range header {
			if i < len(record) {
				values[col] = strings.TrimSpace(record[i])
			}
		}
		if err := send(ctx, out, RawRow{Line: line, Columns: header, Values: values}); err != nil {
			return line, err
		}
	}

	if err := <-errCh; err != nil {
		return line, err
	}
	return line, nil
}

// normalizeHeader strips a UTF-8 byte order mark and surrounding spaces.
func normalizeHeader(record []string) []string {
	header := make([]string, len(record))
	for i, col := range record {
		if i == 0 {
			col = strings.TrimPrefix(col, "\ufeff")
		}
		header[i] = strings.TrimSpace(col)
	}
	return header
}

func isBlank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func send(ctx context.Context, out chan<- RawRow, row RawRow) error {
	select {
	case out <- row:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "fetcher: context cancelled")
	}
}
