package hive

import (
	"fmt"
	"strings"
)

// Query is one of the fixed analytical queries. The SQL avoids
// engine-specific functions so it runs unchanged on Hive and PostgreSQL.
type Query struct {
	Name  string
	Title string
	SQL   string
}

// DefaultTopN is the number of diagnosis codes returned by los-by-diagnosis.
const DefaultTopN = 10

// Queries returns the fixed queries in report order. topN <= 0 uses
// DefaultTopN.
func Queries(topN int) []Query {
	if topN <= 0 {
		topN = DefaultTopN
	}
	return []Query{
		{
			Name:  "los-by-careunit",
			Title: "Average ICU length of stay by first care unit",
			SQL: `SELECT first_careunit, AVG(los) AS avg_los, COUNT(*) AS stays
FROM icustays
WHERE los IS NOT NULL
GROUP BY first_careunit
ORDER BY avg_los DESC, first_careunit`,
		},
		{
			Name:  "readmissions",
			Title: "ICU readmissions per patient",
			SQL: `SELECT readmissions, COUNT(*) AS patients
FROM (
  SELECT subject_id, COUNT(*) - 1 AS readmissions
  FROM icustays
  GROUP BY subject_id
) stays
GROUP BY readmissions
ORDER BY readmissions`,
		},
		{
			Name:  "los-by-diagnosis",
			Title: fmt.Sprintf("Top %d ICD-9 codes by average ICU length of stay", topN),
			SQL: fmt.Sprintf(`SELECT d.icd9_code, AVG(i.los) AS avg_los, COUNT(*) AS stays
FROM diagnoses_icd d
JOIN icustays i ON d.hadm_id = i.hadm_id
WHERE i.los IS NOT NULL AND d.icd9_code IS NOT NULL
GROUP BY d.icd9_code
ORDER BY avg_los DESC, icd9_code
LIMIT %d`, topN),
		},
	}
}

// LookupQuery finds a query by name.
func LookupQuery(name string, topN int) (Query, error) {
	var names []string
	for _, q := range Queries(topN) {
		if q.Name == name {
			return q, nil
		}
		names = append(names, q.Name)
	}
	return Query{}, fmt.Errorf("unknown query %q (want one of %s)", name, strings.Join(names, ", "))
}
