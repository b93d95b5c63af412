package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Format names a dataset file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatZIP  Format = "zip"
	FormatXLSX Format = "xlsx"
)

// Spec describes where a dataset lives and how to decode it.
type Spec struct {
	Location string `yaml:"location"`
	Format   Format `yaml:"format"`
	// Delimiter for delimited text. Default ",".
	Delimiter string   `yaml:"delimiter,omitempty"`
	Header    []string `yaml:"header,omitempty"`
	// Path unwraps a JSON document, e.g. "features" or "data.items".
	Path string `yaml:"path,omitempty"`
	// Entries filters ZIP entries by filename substring.
	Entries     string `yaml:"entries,omitempty"`
	EntryFormat Format `yaml:"entry_format,omitempty"`
}

func (s Spec) csvOptions() CSVOptions {
	opts := CSVOptions{Header: s.Header, LazyQuotes: true}
	if s.Delimiter != "" {
		opts.Delimiter, _ = utf8.DecodeRuneInString(s.Delimiter)
	}
	return opts
}

// Validate checks that s names a supported format and a location.
func (s Spec) Validate() error {
	if s.Location == "" {
		return eris.New("fetcher: empty location")
	}
	switch s.Format {
	case FormatCSV, FormatJSON, FormatZIP, FormatXLSX:
		return nil
	default:
		return eris.Errorf("fetcher: unsupported format %q", s.Format)
	}
}

// Locator opens http(s)://, ftp:// and local locations.
type Locator struct {
	HTTP    Downloader
	FTP     Downloader
	TempDir string
}

// NewLocator returns a Locator backed by the given downloaders.
func NewLocator(httpFetcher, ftpFetcher Downloader, tempDir string) *Locator {
	return &Locator{HTTP: httpFetcher, FTP: ftpFetcher, TempDir: tempDir}
}

func (l *Locator) downloaderFor(location string) (Downloader, string) {
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" {
		return nil, location
	}
	switch u.Scheme {
	case "http", "https":
		return l.HTTP, location
	case "ftp":
		return l.FTP, location
	case "file":
		return nil, u.Path
	default:
		return nil, location
	}
}

// Open returns the content behind location.
func (l *Locator) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	d, path := l.downloaderFor(location)
	if d == nil {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrap(err, "open local file")
		}
		return f, nil
	}
	return d.Download(ctx, location)
}

// LocalPath returns a filesystem path holding the content of location,
// downloading remote content to a temporary file. cleanup removes it.
func (l *Locator) LocalPath(ctx context.Context, location string) (path string, cleanup func(), err error) {
	d, local := l.downloaderFor(location)
	if d == nil {
		return local, func() {}, nil
	}

	dir := l.TempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, eris.Wrap(err, "create temp dir")
	}
	path = filepath.Join(dir, uuid.NewString()+filepath.Ext(strings.SplitN(location, "?", 2)[0]))

	n, err := d.DownloadToFile(ctx, location, path)
	if err != nil {
		_ = os.Remove(path)
		return "", nil, err
	}
	zap.L().Debug("fetcher: downloaded", zap.String("location", location), zap.Int64("bytes", n))
	return path, func() { _ = os.Remove(path) }, nil
}

// Source returns the row stream described by spec.
func (l *Locator) Source(spec Spec) (Source, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return &source{loc: l, spec: spec}, nil
}

type source struct {
	loc  *Locator
	spec Spec
}

func (s *source) Rows(ctx context.Context) (<-chan RawRow, <-chan error) {
	out := make(chan RawRow, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)
		if err := s.emit(ctx, out); err != nil {
			errCh <- fetchErr(s.spec.Location, err)
		}
	}()

	return out, errCh
}

func (s *source) emit(ctx context.Context, out chan<- RawRow) error {
	switch s.spec.Format {
	case FormatCSV, FormatJSON:
		rc, err := s.loc.Open(ctx, s.spec.Location)
		if err != nil {
			return err
		}
		defer rc.Close() //nolint:errcheck
		if s.spec.Format == FormatCSV {
			_, err = emitCSV(ctx, rc, s.spec.csvOptions(), 0, out)
		} else {
			_, err = emitJSON(ctx, rc, s.spec.Path, 0, out)
		}
		return err

	case FormatZIP, FormatXLSX:
		path, cleanup, err := s.loc.LocalPath(ctx, s.spec.Location)
		if err != nil {
			return err
		}
		defer cleanup()
		if s.spec.Format == FormatZIP {
			return emitZIP(ctx, path, s.spec, out)
		}
		_, err = emitXLSX(ctx, path, 0, out)
		return err
	}
	return eris.Errorf("fetcher: unsupported format %q", s.spec.Format)
}
