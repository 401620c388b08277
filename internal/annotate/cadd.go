package annotate

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"

	"annovcf/internal/vcf"
)

// CADD table columns: Chrom Pos Ref Alt RawScore PHRED.
const caddColumns = 6

type caddScore struct {
	raw, phred string
}

// CADDTable is an in-memory index of one CADD score file.
type CADDTable struct {
	Name   string
	scores map[string]caddScore
}

func (t *CADDTable) Len() int { return len(t.scores) }

// LoadCADD reads a CADD table. Lines starting with '#' are comments.
func LoadCADD(name string, r io.Reader) (*CADDTable, error) {
	t := &CADDTable{Name: name, scores: map[string]caddScore{}}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		f := strings.Split(line, "\t")
		if len(f) < caddColumns {
			return nil, errors.Errorf("%s line %d: want %d columns, got %d", name, n, caddColumns, len(f))
		}
		t.scores[variantKey(f[0], f[1], f[2], f[3])] = caddScore{raw: f[4], phred: f[5]}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", name)
	}
	return t, nil
}

// LoadCADDFile opens a plain or bgzipped CADD table.
func LoadCADDFile(path string) (*CADDTable, error) {
	rc, err := vcf.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadCADD(path, rc)
}

// CADD adds the PHRED score (and optionally the raw score) per ALT.
// Tables are consulted in order; the first hit wins.
type CADD struct {
	Tables []*CADDTable
	Raw    bool
}

func (c *CADD) lookup(key string) (caddScore, bool) {
	for _, t := range c.Tables {
		if s, ok := t.scores[key]; ok {
			return s, true
		}
	}
	return caddScore{}, false
}

func (c *CADD) Annotate(rec vcf.Record) (vcf.Record, error) {
	phred, ok := perAlt(rec, func(k string) (string, bool) {
		s, found := c.lookup(k)
		return s.phred, found
	})
	if !ok {
		return rec, nil
	}
	info := rec.Info()
	info.Set(KeyCADD, phred)
	if c.Raw {
		raw, _ := perAlt(rec, func(k string) (string, bool) {
			s, found := c.lookup(k)
			return s.raw, found
		})
		info.Set(KeyCADDRaw, raw)
	}
	return rec.WithInfo(info), nil
}
