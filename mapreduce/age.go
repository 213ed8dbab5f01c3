package mapreduce

import (
	"strconv"
	"strings"
)

const (
	DefaultReferenceYear = 2025
	DefaultDOBColumn     = 3
)

// AgeMapper emits "<age>\t1" for every PATIENTS row with a parseable DOB.
// Age is ReferenceYear minus the birth year. The header row (first field
// "row_id") and lines without a usable DOB are skipped.
type AgeMapper struct {
	ReferenceYear int
	DOBColumn     int
}

// NewAgeMapper returns a mapper with the default year and DOB column.
func NewAgeMapper() AgeMapper {
	return AgeMapper{ReferenceYear: DefaultReferenceYear, DOBColumn: DefaultDOBColumn}
}

func (m AgeMapper) Map(line string) []KeyValue {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if strings.EqualFold(unquote(fields[0]), "row_id") {
		return nil
	}
	if m.DOBColumn < 0 || m.DOBColumn >= len(fields) {
		return nil
	}

	dob := unquote(fields[m.DOBColumn])
	year, _, _ := strings.Cut(dob, "-")
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return nil
	}
	return []KeyValue{{Key: strconv.Itoa(m.ReferenceYear - y), Value: "1"}}
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"`)
}

// AverageReducer adds up ages and counts from "<age>\t<count>" pairs.
type AverageReducer struct {
	total int64
	count int64
}

// Reduce adds one age key and its counts. Unparseable keys or counts are
// skipped.
func (r *AverageReducer) Reduce(key string, values []string) {
	age, err := strconv.ParseInt(strings.TrimSpace(key), 10, 64)
	if err != nil {
		return
	}
	for _, v := range values {
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			continue
		}
		r.total += age
		r.count += n
	}
}

// Add consumes one "<age>\t<count>" line.
func (r *AverageReducer) Add(line string) {
	kv, ok := splitPair(strings.TrimSpace(line))
	if !ok || strings.Contains(kv.Value, "\t") {
		return
	}
	r.Reduce(kv.Key, []string{kv.Value})
}

// Count returns the number of ages seen.
func (r *AverageReducer) Count() int64 { return r.count }

// Average returns total/count, or false when nothing was counted.
func (r *AverageReducer) Average() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	return float64(r.total) / float64(r.count), true
}

// Result renders "Average Age: <value>" or "No valid data".
func (r *AverageReducer) Result() string {
	avg, ok := r.Average()
	if !ok {
		return "No valid data"
	}
	return "Average Age: " + formatAverage(avg)
}

// formatAverage prints the shortest decimal form, keeping ".0" on whole
// numbers.
func formatAverage(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
