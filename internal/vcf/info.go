package vcf

import "strings"

// Info is the INFO column as an insertion-ordered key/value list.
// Flag keys carry no value and render without '='.
type Info struct {
	keys []string
	vals map[string]infoValue
}

type infoValue struct {
	val  string
	flag bool
}

// ParseInfo parses "k=v;flag;k2=v2". "." and "" yield an empty Info.
// A repeated key keeps its first position and its last value.
func ParseInfo(s string) *Info {
	in := &Info{vals: map[string]infoValue{}}
	if s == "" || s == "." {
		return in
	}
	for _, part := range strings.Split(s, ";") {
		if part == "" {
			continue
		}
		k, v, hasVal := strings.Cut(part, "=")
		in.put(k, infoValue{val: v, flag: !hasVal})
	}
	return in
}

func (in *Info) put(k string, v infoValue) {
	if _, ok := in.vals[k]; !ok {
		in.keys = append(in.keys, k)
	}
	in.vals[k] = v
}

// Get returns the value for key and whether the key is present.
func (in *Info) Get(key string) (string, bool) {
	v, ok := in.vals[key]
	return v.val, ok
}

func (in *Info) Has(key string) bool {
	_, ok := in.vals[key]
	return ok
}

// Set stores key=value. An existing key is updated in place, a new one is appended.
func (in *Info) Set(key, value string) { in.put(key, infoValue{val: value}) }

// SetFlag stores a value-less flag key.
func (in *Info) SetFlag(key string) { in.put(key, infoValue{flag: true}) }

func (in *Info) Keys() []string { return append([]string(nil), in.keys...) }
func (in *Info) Len() int       { return len(in.keys) }

// String renders the column; an empty Info renders as ".".
func (in *Info) String() string {
	if len(in.keys) == 0 {
		return "."
	}
	var b strings.Builder
	for i, k := range in.keys {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(k)
		if v := in.vals[k]; !v.flag {
			b.WriteByte('=')
			b.WriteString(v.val)
		}
	}
	return b.String()
}
