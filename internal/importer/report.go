package importer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/model"
)

// Failure is a rejected row.
type Failure struct {
	Line int
	Name string
	Kind model.FailureKind
	Err  error
	Data map[string]any
}

func (f Failure) String() string {
	if f.Name == "" {
		return fmt.Sprintf("ligne %d: %v", f.Line, f.Err)
	}
	return fmt.Sprintf("ligne %d: %s: %v", f.Line, f.Name, f.Err)
}

// Report is the outcome of a run.
type Report struct {
	Dataset string
	Counts  model.RunCounts
	// Validated counts rows that passed validation in validate-only runs.
	Validated int

	Imported    []string
	Skipped     []string
	Unpublished []string
	Failures    []Failure

	StartedAt  time.Time
	FinishedAt time.Time
}

func (r *Report) progress(w io.Writer, c byte) {
	if w != nil {
		w.Write([]byte{c}) //nolint:errcheck
	}
}

// Summary renders the counters. Verbose adds duplicates and validated rows.
func (r *Report) Summary(verbose bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Statistiques d'import %s:\n\n", r.Dataset)
	fmt.Fprintf(&b, "- Importés: %d\n", r.Counts.Imported)
	fmt.Fprintf(&b, "- Écartés: %d\n", r.Counts.Skipped)
	fmt.Fprintf(&b, "- Dépubliés: %d\n", r.Counts.Unpublished)
	fmt.Fprintf(&b, "- Erreurs: %d", r.Counts.Errors)
	if verbose {
		fmt.Fprintf(&b, "\n- Doublons: %d", r.Counts.Duplicated)
		fmt.Fprintf(&b, "\n- Validés: %d", r.Validated)
	}
	return b.String()
}

// ErrorLines renders one line per failure.
func (r *Report) ErrorLines() []string {
	lines := make([]string, len(r.Failures))
	for i, f := range r.Failures {
		lines[i] = f.String()
	}
	return lines
}

// DetailedReport lists every row by outcome.
func (r *Report) DetailedReport() string {
	sections := []struct {
		title string
		items []string
	}{
		{"Établissements importés ou mis à jour", r.Imported},
		{"Établissements écartés", r.Skipped},
		{"Établissements dépubliés", r.Unpublished},
		{"Erreurs rencontrées", r.ErrorLines()},
	}
	var b strings.Builder
	for i, s := range sections {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s.title)
		b.WriteString(":\n")
		if len(s.items) == 0 {
			b.WriteString("Aucun")
			continue
		}
		for j, it := range s.items {
			if j > 0 {
				b.WriteByte('\n')
			}
			b.WriteString("- ")
			b.WriteString(it)
		}
	}
	return b.String()
}

// WriteErrorsFile writes the failures as a ';' separated file named after
// now in dir and returns its path. Nothing is written when the run had no
// failure, and the path is then empty.
func (r *Report) WriteErrorsFile(dir string, now time.Time) (string, error) {
	if len(r.Failures) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "importer: create %s", dir)
	}
	path := filepath.Join(dir, "errors_"+now.Format("2006-01-02_15h04m05")+".csv")

	f, err := os.Create(path)
	if err != nil {
		return "", eris.Wrapf(err, "importer: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	w := csv.NewWriter(f)
	w.Comma = ';'
	if err := w.Write([]string{"line", "name", "error", "data"}); err != nil {
		return "", eris.Wrap(err, "importer: write errors header")
	}
	for _, fl := range r.Failures {
		data, err := json.Marshal(fl.Data)
		if err != nil {
			return "", eris.Wrapf(err, "importer: encode line %d", fl.Line)
		}
		if err := w.Write([]string{strconv.Itoa(fl.Line), fl.Name, fl.Err.Error(), string(data)}); err != nil {
			return "", eris.Wrap(err, "importer: write errors row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", eris.Wrap(err, "importer: flush errors file")
	}
	return path, nil
}
