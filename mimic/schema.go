package mimic

import (
	"encoding/json"
)

// AvroNamespace is the namespace of every record schema.
const AvroNamespace = "mimic"

type avroField struct {
	Name string `json:"name"`
	Type any    `json:"type"`
}

// avroNullableField always serializes "default": null; the default of a
// union must match its first branch, here "null".
type avroNullableField struct {
	Name    string   `json:"name"`
	Type    []string `json:"type"`
	Default any      `json:"default"`
}

type avroRecord struct {
	Type      string `json:"type"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	Fields    []any  `json:"fields"`
}

// AvroSchema renders the record schema for t. Nullable columns become
// ["null", T] unions.
func (t *Table) AvroSchema() string {
	rec := avroRecord{
		Type:      "record",
		Name:      t.Name,
		Namespace: AvroNamespace,
		Fields:    make([]any, 0, len(t.Columns)),
	}
	for _, c := range t.Columns {
		if c.Nullable {
			rec.Fields = append(rec.Fields, avroNullableField{
				Name: c.Name,
				Type: []string{"null", c.Kind.AvroType()},
			})
			continue
		}
		rec.Fields = append(rec.Fields, avroField{Name: c.Name, Type: c.Kind.AvroType()})
	}
	b, err := json.Marshal(rec)
	if err != nil {
		// Only static strings go in; Marshal cannot fail.
		panic(err)
	}
	return string(b)
}
