package snapshot

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Well-known field names from the upstream daily-report schema. The
// stored header is authoritative; these are only the fields this
// service interprets.
const (
	FieldProvince   = "Province/State"
	FieldCountry    = "Country/Region"
	FieldLastUpdate = "Last Update"
	FieldConfirmed  = "Confirmed"
	FieldDeaths     = "Deaths"
	FieldRecovered  = "Recovered"
)

// Record is one row of per-region data within a snapshot: a flat
// mapping of field names to string values.
type Record map[string]string

// Snapshot is the full record set for one calendar date. Fields holds
// the header in stored order so a rewrite preserves it byte-for-byte.
type Snapshot struct {
	Fields  []string
	Records []Record
}

// Country returns the record's Country/Region field.
func (r Record) Country() string {
	return r[FieldCountry]
}

// Province returns the record's Province/State field, possibly empty.
func (r Record) Province() string {
	return r[FieldProvince]
}

// Confirmed returns the record's confirmed counter.
func (r Record) Confirmed() Count {
	return ParseCount(r[FieldConfirmed])
}

// Deaths returns the record's deaths counter.
func (r Record) Deaths() Count {
	return ParseCount(r[FieldDeaths])
}

// Recovered returns the record's recovered counter.
func (r Record) Recovered() Count {
	return ParseCount(r[FieldRecovered])
}

// Count is an optional non-negative integer counter. A blank or
// unparseable source value is "unknown", which aggregates as zero and
// is never an error.
type Count struct {
	Value int64
	Known bool
}

// ParseCount parses a counter field value.
func ParseCount(s string) Count {
	s = strings.TrimSpace(s)
	if s == "" {
		return Count{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return Count{}
	}
	return Count{Value: n, Known: true}
}

// OrZero returns the counter value, treating unknown as the additive
// identity.
func (c Count) OrZero() int64 {
	if !c.Known {
		return 0
	}
	return c.Value
}

// Decode parses a stored snapshot: a header row of field names and one
// row per record, every row sharing the header's field count.
func Decode(r io.Reader) (*Snapshot, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	// The upstream files carry a UTF-8 BOM on the first field name.
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	snap := &Snapshot{Fields: header}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Includes csv.ErrFieldCount: a row not matching the
			// header means the file is not a uniform table.
			return nil, fmt.Errorf("read row: %w", err)
		}

		rec := make(Record, len(header))
		for i, field := range header {
			rec[field] = row[i]
		}
		snap.Records = append(snap.Records, rec)
	}

	return snap, nil
}

// Encode writes the snapshot back in the same tabular format, field
// order preserved.
func (s *Snapshot) Encode(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(s.Fields); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(s.Fields))
	for _, rec := range s.Records {
		for i, field := range s.Fields {
			row[i] = rec[field]
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Clone returns a deep copy. The reconciler mutates a copy of
// yesterday's records, never the decoded originals.
func (s *Snapshot) Clone() *Snapshot {
	out := &Snapshot{
		Fields:  append([]string(nil), s.Fields...),
		Records: make([]Record, len(s.Records)),
	}
	for i, rec := range s.Records {
		cp := make(Record, len(rec))
		for k, v := range rec {
			cp[k] = v
		}
		out.Records[i] = cp
	}
	return out
}
