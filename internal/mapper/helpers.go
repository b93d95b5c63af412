package mapper

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/model"
)

var hoursRe = regexp.MustCompile(`[A-Z][^A-Z]*`)

// SplitHours cuts an opening-hours blob at each capital letter:
// "Lundi : 8h-12hMardi : 14h-18h" gives two entries.
func SplitHours(s string) []string {
	var out []string
	for _, part := range hoursRe.FindAllString(strings.TrimSpace(s), -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SplitStreet separates a leading street number, with its bis/ter suffix,
// from the street name.
func SplitStreet(s string) (numero, voie string) {
	s = strings.TrimSpace(s)
	parts := strings.Fields(s)
	if len(parts) < 2 || !unicode.IsDigit([]rune(parts[0])[0]) {
		return "", s
	}
	numero, rest := parts[0], parts[1:]
	if suffix := strings.ToLower(rest[0]); (suffix == "bis" || suffix == "ter") && len(rest) > 1 {
		numero += " " + rest[0]
		rest = rest[1:]
	}
	return numero, strings.Join(rest, " ")
}

// padInsee left-pads 4-character INSEE codes with a zero. Corsican codes
// carry a letter ("2A004").
func padInsee(s string) (string, bool) {
	switch len(s) {
	case 4:
		return "0" + s, true
	case 5:
		return s, true
	default:
		return "", false
	}
}

// ImportComment is the accessibility comment left on imported records.
func ImportComment(updated bool, today time.Time, url string) string {
	verb := "importées"
	if updated {
		verb = "mises à jour"
	}
	c := "Ces informations ont été " + verb + " depuis data.gouv.fr le " + today.Format("02/01/2006")
	if url != "" {
		c += " " + url
	}
	return c
}

// parseFloat reads a JSON number or a numeric string, accepting a decimal comma.
func parseFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		f, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(t), ",", "."), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// setCoordinates stores raw coordinates on rec when both parse.
func setCoordinates(rec *model.Record, lat, lon any) bool {
	la, ok1 := parseFloat(lat)
	lo, ok2 := parseFloat(lon)
	if !ok1 || !ok2 {
		return false
	}
	rec.Latitude, rec.Longitude = &la, &lo
	return true
}

// first returns the first element of a JSON array value, or nil.
func first(v any, _ bool) map[string]any {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		return nil
	}
	m, _ := items[0].(map[string]any)
	return m
}

// str renders a nested JSON value as a trimmed string.
func str(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	return strings.TrimSpace(fetcher.Stringify(m[key]))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
