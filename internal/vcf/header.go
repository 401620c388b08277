// internal/vcf/header.go
package vcf

import (
	"strings"

	"github.com/pkg/errors"
)

// Categories of structured meta lines.
const (
	CategoryInfo   = "INFO"
	CategoryFormat = "FORMAT"
	CategoryFilter = "FILTER"
	CategoryContig = "contig"
)

// Declaration is one structured "##CATEGORY=<ID=..,...>" line.
type Declaration struct {
	Category    string
	ID          string
	Number      string
	Type        string
	Description string
}

// String renders the declaration as a meta line. Empty Number/Type are omitted.
func (d Declaration) String() string {
	var b strings.Builder
	b.WriteString("##")
	b.WriteString(d.Category)
	b.WriteString("=<ID=")
	b.WriteString(d.ID)
	if d.Number != "" {
		b.WriteString(",Number=")
		b.WriteString(d.Number)
	}
	if d.Type != "" {
		b.WriteString(",Type=")
		b.WriteString(d.Type)
	}
	b.WriteString(`,Description="`)
	b.WriteString(strings.ReplaceAll(d.Description, `"`, `\"`))
	b.WriteString(`">`)
	return b.String()
}

type metaLine struct {
	raw  string // original text; empty for declarations added during the run
	decl *Declaration
}

// Header holds the meta lines and the column line of a VCF, in input order.
// Declarations may be appended; nothing is ever removed.
type Header struct {
	meta    []metaLine
	index   map[string]map[string]struct{}
	contigs []string
	columns []string
}

func NewHeader() *Header {
	return &Header{index: map[string]map[string]struct{}{}}
}

// ParseMeta records a "##" line. Structured lines are indexed, everything
// else is kept verbatim.
func (h *Header) ParseMeta(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "##") {
		return errors.Errorf("meta line must start with ##: %q", line)
	}
	ml := metaLine{raw: line}
	if d, ok := parseDeclaration(line); ok {
		if d.Category == CategoryContig {
			h.contigs = append(h.contigs, d.ID)
		}
		h.markDeclared(d)
		ml.decl = &d
	}
	h.meta = append(h.meta, ml)
	return nil
}

// ParseColumns records the "#CHROM ..." line.
func (h *Header) ParseColumns(line string) error {
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, "#") || strings.HasPrefix(line, "##") {
		return errors.Errorf("column line must start with a single #: %q", line)
	}
	cols := strings.Split(line[1:], "\t")
	if len(cols) < MinFields {
		return errors.Errorf("column line has %d columns, want at least %d", len(cols), MinFields)
	}
	h.columns = cols
	return nil
}

// Declare appends d unless a declaration with the same category and ID exists.
// It reports whether d was added.
func (h *Header) Declare(d Declaration) bool {
	if h.HasDeclaration(d.Category, d.ID) {
		return false
	}
	h.markDeclared(d)
	h.meta = append(h.meta, metaLine{decl: &d})
	return true
}

func (h *Header) markDeclared(d Declaration) {
	ids, ok := h.index[d.Category]
	if !ok {
		ids = map[string]struct{}{}
		h.index[d.Category] = ids
	}
	ids[d.ID] = struct{}{}
}

func (h *Header) HasDeclaration(category, id string) bool {
	_, ok := h.index[category][id]
	return ok
}

// Declarations returns every structured declaration in header order.
func (h *Header) Declarations() []Declaration {
	var out []Declaration
	for _, m := range h.meta {
		if m.decl != nil {
			out = append(out, *m.decl)
		}
	}
	return out
}

// Contigs returns the contig IDs in ##contig order.
func (h *Header) Contigs() []string { return append([]string(nil), h.contigs...) }

// Columns returns the column names without the leading '#'.
func (h *Header) Columns() []string { return append([]string(nil), h.columns...) }

// Samples returns the sample column names (everything after FORMAT).
func (h *Header) Samples() []string {
	if len(h.columns) <= MinFields+1 {
		return nil
	}
	return append([]string(nil), h.columns[MinFields+1:]...)
}

// Lines renders the header: meta lines then the column line (when known).
func (h *Header) Lines() []string {
	out := make([]string, 0, len(h.meta)+1)
	for _, m := range h.meta {
		if m.raw != "" {
			out = append(out, m.raw)
		} else {
			out = append(out, m.decl.String())
		}
	}
	if len(h.columns) > 0 {
		out = append(out, "#"+strings.Join(h.columns, "\t"))
	}
	return out
}

// parseDeclaration handles "##KEY=<k=v,k="quoted, value",...>".
func parseDeclaration(line string) (Declaration, bool) {
	body := strings.TrimPrefix(line, "##")
	cat, rest, ok := strings.Cut(body, "=")
	if !ok || !strings.HasPrefix(rest, "<") || !strings.HasSuffix(rest, ">") {
		return Declaration{}, false
	}
	fields := splitStructured(rest[1 : len(rest)-1])
	d := Declaration{Category: cat}
	for _, f := range fields {
		k, v, _ := strings.Cut(f, "=")
		switch k {
		case "ID":
			d.ID = v
		case "Number":
			d.Number = v
		case "Type":
			d.Type = v
		case "Description":
			d.Description = unquote(v)
		}
	}
	if d.ID == "" {
		return Declaration{}, false
	}
	return d, true
}

func splitStructured(s string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && inQuote:
			escaped = true
		case r == '"':
			inQuote = !inQuote
		case r == ',' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
			continue
		}
		cur.WriteRune(r)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func unquote(v string) string {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	return strings.ReplaceAll(v, `\"`, `"`)
}
