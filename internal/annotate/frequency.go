package annotate

import (
	"io"
	"strings"

	"github.com/pkg/errors"

	"annovcf/internal/vcf"
)

// FrequencyTable maps alleles of a population VCF to their AF values.
type FrequencyTable struct {
	Name string
	af   map[string]string
}

func (t *FrequencyTable) Len() int { return len(t.af) }

// LoadFrequencies indexes the per-ALT AF INFO values of a VCF.
// Records without AF are ignored.
func LoadFrequencies(name string, r io.Reader) (*FrequencyTable, error) {
	vr, err := vcf.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", name)
	}
	t := &FrequencyTable{Name: name, af: map[string]string{}}
	for {
		line, err := vr.Next()
		if err == io.EOF {
			return t, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", name)
		}
		rec, err := vcf.ParseRecord(line)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", name)
		}
		af, ok := rec.Info().Get("AF")
		if !ok || af == "" {
			continue
		}
		freqs := strings.Split(af, ",")
		for i, alt := range rec.Alts() {
			if i >= len(freqs) {
				break
			}
			if freqs[i] == "." {
				continue
			}
			t.af[variantKey(rec.Chrom(), rec.Fields[vcf.ColPos], rec.Ref(), alt)] = freqs[i]
		}
	}
}

// LoadFrequencyFile opens a plain or bgzipped VCF.
func LoadFrequencyFile(path string) (*FrequencyTable, error) {
	rc, err := vcf.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return LoadFrequencies(path, rc)
}

// Frequency stores the matching AF values under Key.
type Frequency struct {
	Key   string
	Table *FrequencyTable
}

func (f *Frequency) Annotate(rec vcf.Record) (vcf.Record, error) {
	v, ok := perAlt(rec, func(k string) (string, bool) {
		af, found := f.Table.af[k]
		return af, found
	})
	if !ok {
		return rec, nil
	}
	info := rec.Info()
	info.Set(f.Key, v)
	return rec.WithInfo(info), nil
}
