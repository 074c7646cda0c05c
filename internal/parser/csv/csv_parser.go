// Package csv implements the CSV parser used by the ingestion loader. It
// wraps encoding/csv with header canonicalization (BOM stripping, diacritic
// folding, snake_casing) and two failure modes: strict, where any malformed
// row aborts the parse with the offending line number, and lenient, where bad
// rows are skipped and counted.
package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Options configures the CSV parser. All fields are optional; sensible
// defaults are applied when a field is zero.
type Options struct {
	// Comma specifies the field delimiter. When zero, ',' is used.
	Comma rune

	// TrimSpace trims leading/trailing ASCII spaces from each field value.
	TrimSpace bool

	// Strict makes any unparseable row or field-count mismatch a hard error
	// carrying the 1-based line number. When false, such rows are skipped and
	// counted instead.
	Strict bool

	// HeaderMap maps source header names to canonical column names. Entries
	// win over the default normalization.
	HeaderMap map[string]string
}

// Table is the fully parsed content of one delimited file: canonical column
// names in file order plus the body rows as raw strings.
type Table struct {
	Columns []string
	Rows    [][]string

	// Skipped counts rows dropped in lenient mode. Always zero in strict mode.
	Skipped int
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs, but Parser itself is not concurrency-safe.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// skippedLogLimit caps per-row skip logging in lenient mode.
const skippedLogLimit = 50

// Parse consumes the entire input and returns the parsed table. The first
// row is always treated as a header; a header read failure is fatal in both
// modes.
func (p *Parser) Parse(r io.Reader) (Table, error) {
	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	// Width is enforced below so that mismatches can carry a line number.
	cr.FieldsPerRecord = -1

	head, err := cr.Read()
	if err != nil {
		return Table{}, fmt.Errorf("read csv header: %w", err)
	}
	columns := normalizeHeaders(head, p.opt)

	t := Table{Columns: columns}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if p.opt.Strict {
				return Table{}, fmt.Errorf("line %d: %w", line, err)
			}
			if t.Skipped < skippedLogLimit {
				log.Printf("csv: skipping line %d: %v", line, err)
			}
			t.Skipped++
			continue
		}
		if len(row) != len(columns) {
			if p.opt.Strict {
				return Table{}, fmt.Errorf("line %d: expected %d fields, got %d", line, len(columns), len(row))
			}
			if t.Skipped < skippedLogLimit {
				log.Printf("csv: skipping line %d: expected %d fields, got %d", line, len(columns), len(row))
			}
			t.Skipped++
			continue
		}
		if p.opt.TrimSpace {
			for i := range row {
				row[i] = strings.TrimSpace(row[i])
			}
		}
		out := make([]string, len(row))
		copy(out, row)
		t.Rows = append(t.Rows, out)
	}

	return t, nil
}

// foldDiacritics removes combining marks so that accented headers (the Olist
// dataset ships Portuguese column names) become plain ASCII identifiers.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalizeHeaders produces canonical column names: HeaderMap entries win;
// otherwise the header is BOM/space-stripped, diacritic-folded, lowercased,
// and non-alphanumeric runs become single underscores.
func normalizeHeaders(h []string, opt Options) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := strings.TrimSpace(col)
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		if opt.HeaderMap != nil {
			if m, ok := opt.HeaderMap[c]; ok && m != "" {
				res[i] = m
				continue
			}
		}
		res[i] = CanonicalName(c)
	}
	return res
}

// CanonicalName converts an arbitrary header into a safe snake_case column
// name. Empty input yields "col".
func CanonicalName(s string) string {
	if folded, _, err := transform.String(foldDiacritics, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)

	var b strings.Builder
	lastUnderscore := true // swallow leading separators
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "col"
	}
	return out
}
