// internal/annotate/sources.go
package annotate

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"annovcf/internal/vcf"
)

// INFO keys written by the built-in sources.
const (
	KeyAnnotation = "Annotation"
	KeyExonic     = "Exonic"
	KeyExACAF     = "ExACAF"
	Key1000GAF    = "1000GAF"
	KeyCADD       = "CADD"
	KeyCADDRaw    = "CADD_raw"
)

// Header declarations, in the order they are added.
var (
	DeclAnnotation = vcf.Declaration{Category: vcf.CategoryInfo, ID: KeyAnnotation, Number: ".", Type: "String",
		Description: "Annotates what feature(s) this variant belongs to."}
	DeclExonic = vcf.Declaration{Category: vcf.CategoryInfo, ID: KeyExonic, Number: "0", Type: "Flag",
		Description: "Indicates if the variant is exonic."}
	DeclExACAF = vcf.Declaration{Category: vcf.CategoryInfo, ID: KeyExACAF, Number: "A", Type: "Float",
		Description: "Frequency in the ExAC database."}
	Decl1000GAF = vcf.Declaration{Category: vcf.CategoryInfo, ID: Key1000GAF, Number: "A", Type: "Float",
		Description: "Frequency in the 1000G database."}
	DeclCADD = vcf.Declaration{Category: vcf.CategoryInfo, ID: KeyCADD, Number: "A", Type: "Float",
		Description: "The CADD relative score for this alternative."}
	DeclCADDRaw = vcf.Declaration{Category: vcf.CategoryInfo, ID: KeyCADDRaw, Number: "A", Type: "Float",
		Description: "The CADD raw score(s) for this alternative(s)."}
)

// Sources lists the reference files to annotate from. Empty paths are unused.
type Sources struct {
	CADDFiles       []string // consulted in order
	CADDRaw         bool
	ThousandG       string
	ExAC            string
	AnnotateRegions bool
	AnnotationDir   string
}

// AnyCADD reports whether a CADD table is configured.
func (s Sources) AnyCADD() bool {
	for _, f := range s.CADDFiles {
		if f != "" {
			return true
		}
	}
	return false
}

// Declare appends the header declarations for the configured sources.
// Calling it more than once adds nothing new.
func (s Sources) Declare(hdr *vcf.Header) {
	if s.AnnotateRegions {
		hdr.Declare(DeclAnnotation)
		hdr.Declare(DeclExonic)
	}
	if s.ExAC != "" {
		hdr.Declare(DeclExACAF)
	}
	if s.ThousandG != "" {
		hdr.Declare(Decl1000GAF)
	}
	if s.AnyCADD() {
		hdr.Declare(DeclCADD)
		if s.CADDRaw {
			hdr.Declare(DeclCADDRaw)
		}
	}
}

// Build loads every configured source, declares its INFO fields on hdr and
// returns the annotators chained in declaration order. It must run before any
// worker starts; the header is read-only afterwards.
func Build(s Sources, hdr *vcf.Header, log logrus.FieldLogger) (Annotator, error) {
	var chain Chain

	if s.AnnotateRegions {
		log.WithField("dir", s.AnnotationDir).Info("Loading annotations")
		g, err := LoadRegions(s.AnnotationDir)
		if err != nil {
			return nil, err
		}
		chain = append(chain, g)
	}

	for _, f := range []struct{ path, key string }{{s.ExAC, KeyExACAF}, {s.ThousandG, Key1000GAF}} {
		if f.path == "" {
			continue
		}
		t, err := LoadFrequencyFile(f.path)
		if err != nil {
			return nil, errors.Wrapf(err, "load %s", f.key)
		}
		log.WithFields(logrus.Fields{"file": f.path, "alleles": t.Len()}).Debugf("Loaded %s source", f.key)
		chain = append(chain, &Frequency{Key: f.key, Table: t})
	}

	if s.AnyCADD() {
		c := &CADD{Raw: s.CADDRaw}
		for _, path := range s.CADDFiles {
			if path == "" {
				continue
			}
			t, err := LoadCADDFile(path)
			if err != nil {
				return nil, errors.Wrap(err, "load CADD")
			}
			log.WithFields(logrus.Fields{"file": path, "alleles": t.Len()}).Debug("Loaded CADD table")
			c.Tables = append(c.Tables, t)
		}
		chain = append(chain, c)
	}

	s.Declare(hdr)
	if len(chain) == 0 {
		return Identity, nil
	}
	return chain, nil
}
