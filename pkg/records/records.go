// Package records holds the value types edited by a session: a record is a system-assigned id plus a map of named
// string fields, and a collection is an ordered list of records whose order is the display order.
package records

import (
	"fmt"
	"sort"
	"strings"
)

type Record struct {
	ID     int64             `json:"id" automerge:"id"`
	Fields map[string]string `json:"fields" automerge:"fields"`
}

// Clone returns a deep copy so the two records never share a field map.
func (r Record) Clone() Record {
	out := Record{ID: r.ID, Fields: make(map[string]string, len(r.Fields))}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	return out
}

// Equal compares id and fields. A nil field map equals an empty one.
func (r Record) Equal(other Record) bool {
	if r.ID != other.ID || len(r.Fields) != len(other.Fields) {
		return false
	}
	for k, v := range r.Fields {
		if ov, ok := other.Fields[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

func (r Record) String() string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%q", k, r.Fields[k]))
	}
	return fmt.Sprintf("{%d %s}", r.ID, strings.Join(parts, " "))
}

type Collection []Record

// Clone deep copies every record. The clone of a nil collection is an empty, non-nil collection.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i, r := range c {
		out[i] = r.Clone()
	}
	return out
}

// Equal is order sensitive: the same records in a different order are a different collection.
func (c Collection) Equal(other Collection) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if !c[i].Equal(other[i]) {
			return false
		}
	}
	return true
}

// NextID is one more than the highest id present, or 1 for an empty collection.
func (c Collection) NextID() int64 {
	var highest int64
	for _, r := range c {
		if r.ID > highest {
			highest = r.ID
		}
	}
	return highest + 1
}

// Append returns a copy with a new record added at the end. The named fields start out as empty strings.
func (c Collection) Append(fields ...string) (Collection, Record) {
	r := Record{ID: c.NextID(), Fields: make(map[string]string, len(fields))}
	for _, f := range fields {
		r.Fields[f] = ""
	}
	out := append(c.Clone(), r)
	return out, r.Clone()
}

// RemoveAt returns a copy without the record at the 1-based slot.
func (c Collection) RemoveAt(slot int) (Collection, error) {
	if err := c.checkSlot(slot); err != nil {
		return nil, err
	}
	out := make(Collection, 0, len(c)-1)
	for i, r := range c {
		if i != slot-1 {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// SetField returns a copy with one field of the record at the 1-based slot replaced.
func (c Collection) SetField(slot int, field, value string) (Collection, error) {
	if err := c.checkSlot(slot); err != nil {
		return nil, err
	}
	out := c.Clone()
	out[slot-1].Fields[field] = value
	return out, nil
}

// At returns the record in the 1-based slot.
func (c Collection) At(slot int) (Record, bool) {
	if slot < 1 || slot > len(c) {
		return Record{}, false
	}
	return c[slot-1], true
}

// FieldNames is the sorted union of the field names of every record.
func (c Collection) FieldNames() []string {
	seen := make(map[string]struct{})
	for _, r := range c {
		for k := range r.Fields {
			seen[k] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks that ids are positive and unique.
func (c Collection) Validate() error {
	seen := make(map[int64]int, len(c))
	for i, r := range c {
		if r.ID < 1 {
			return fmt.Errorf("record in slot %d has invalid id %d", i+1, r.ID)
		}
		if prev, ok := seen[r.ID]; ok {
			return fmt.Errorf("records in slots %d and %d share id %d", prev, i+1, r.ID)
		}
		seen[r.ID] = i + 1
	}
	return nil
}

func (c Collection) checkSlot(slot int) error {
	if slot < 1 || slot > len(c) {
		return &SlotError{Slot: slot, Len: len(c)}
	}
	return nil
}
