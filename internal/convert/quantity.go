package convert

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Quantity kinds reported in a ParseWarning.
const (
	KindCPU     = "cpu"
	KindMemory  = "memory"
	KindInteger = "integer"
)

// ParseWarning reports a quantity string that could not be parsed. The
// accompanying value is always 0.
type ParseWarning struct {
	Kind  string
	Input string
}

func (w *ParseWarning) Error() string {
	return fmt.Sprintf("cannot parse %s quantity %q", w.Kind, w.Input)
}

// suffix scales a parsed number by mul/div. Dividing keeps nano and micro
// conversions exact for whole inputs.
type suffix struct {
	text string
	mul  float64
	div  float64
}

// CPU suffixes map to millicores.
var cpuSuffixes = []suffix{
	{"n", 1, 1e6},
	{"u", 1, 1e3},
	{"m", 1, 1},
}

// Memory suffixes map to bytes.
var memorySuffixes = []suffix{
	{"Ki", 1 << 10, 1},
	{"Mi", 1 << 20, 1},
	{"Gi", 1 << 30, 1},
}

// ParseCPU converts a CPU quantity string to millicores. Unsuffixed values
// are whole cores. Forms outside n/u/m/none fall back to resource.ParseQuantity.
func ParseCPU(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, ok := parseSuffixed(s, cpuSuffixes); ok {
		return v, nil
	}
	if v, ok := parseFinite(s); ok {
		return v * 1000, nil
	}
	if q, err := resource.ParseQuantity(s); err == nil {
		return q.AsApproximateFloat64() * 1000, nil
	}
	return 0, &ParseWarning{Kind: KindCPU, Input: s}
}

// ParseMemory converts a memory or storage quantity string to bytes.
// Ki/Mi/Gi and plain bytes are handled directly; other suffixes (Ti, k, M, G,
// exponents) fall back to resource.ParseQuantity.
func ParseMemory(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, ok := parseSuffixed(s, memorySuffixes); ok {
		return v, nil
	}
	if v, ok := parseFinite(s); ok {
		return v, nil
	}
	if q, err := resource.ParseQuantity(s); err == nil {
		return q.AsApproximateFloat64(), nil
	}
	return 0, &ParseWarning{Kind: KindMemory, Input: s}
}

// ParseInteger converts a count quantity (e.g. pod slots) to an integer.
func ParseInteger(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	if q, err := resource.ParseQuantity(s); err == nil {
		return q.Value(), nil
	}
	return 0, &ParseWarning{Kind: KindInteger, Input: s}
}

func parseSuffixed(s string, suffixes []suffix) (float64, bool) {
	for _, sf := range suffixes {
		if !strings.HasSuffix(s, sf.text) {
			continue
		}
		v, ok := parseFinite(strings.TrimSuffix(s, sf.text))
		if !ok {
			return 0, false
		}
		return v * sf.mul / sf.div, true
	}
	return 0, false
}

func parseFinite(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Tally parses quantities for one aggregation pass and keeps the warnings.
// A nil *Tally parses and discards warnings.
type Tally struct {
	mu       sync.Mutex
	warnings []*ParseWarning
}

// CPU parses s as millicores.
func (t *Tally) CPU(s string) float64 {
	v, err := ParseCPU(s)
	t.record(err)
	return v
}

// Memory parses s as bytes.
func (t *Tally) Memory(s string) float64 {
	v, err := ParseMemory(s)
	t.record(err)
	return v
}

// Integer parses s as a count.
func (t *Tally) Integer(s string) int64 {
	v, err := ParseInteger(s)
	t.record(err)
	return v
}

// Warnings returns the warnings recorded so far.
func (t *Tally) Warnings() []*ParseWarning {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*ParseWarning, len(t.warnings))
	copy(out, t.warnings)
	return out
}

func (t *Tally) record(err error) {
	if t == nil || err == nil {
		return
	}
	w, ok := err.(*ParseWarning)
	if !ok {
		return
	}
	t.mu.Lock()
	t.warnings = append(t.warnings, w)
	t.mu.Unlock()
}

// CPUMillis normalizes a typed CPU quantity through ParseCPU.
func CPUMillis(q resource.Quantity, t *Tally) float64 {
	return t.CPU(q.String())
}

// Bytes normalizes a typed memory or storage quantity through ParseMemory.
func Bytes(q resource.Quantity, t *Tally) float64 {
	return t.Memory(q.String())
}
