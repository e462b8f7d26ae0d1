package editor

import (
	"fmt"
	"sort"

	"github.com/astromechza/record-editor/pkg/records"
)

// Binder is the part of the slot binder a composer needs.
type Binder interface {
	EnsureBound(slot int) error
}

// Composer turns a collection into a widget tree. It must call EnsureBound for every slot 1..len(c), in order, on
// every pass, and tag the widgets it emits with the same slots.
type Composer interface {
	Compose(c records.Collection, b Binder) (View, error)
}

type WidgetKind string

const (
	WidgetInput  WidgetKind = "input"
	WidgetButton WidgetKind = "button"
)

type Widget struct {
	ID    string     `json:"id"`
	Kind  WidgetKind `json:"kind"`
	Slot  int        `json:"slot"`
	Field string     `json:"field,omitempty"`
	Value string     `json:"value,omitempty"`
	Label string     `json:"label,omitempty"`
}

type Row struct {
	Slot     int      `json:"slot"`
	RecordID int64    `json:"record_id"`
	Widgets  []Widget `json:"widgets"`
}

type View struct {
	Selector string   `json:"selector"`
	Epoch    int      `json:"epoch"`
	Columns  []string `json:"columns"`
	Rows     []Row    `json:"rows"`
}

type Controls struct {
	SaveVisible   bool `json:"save_visible"`
	CancelVisible bool `json:"cancel_visible"`
}

// TableComposer renders one row per record with an input per column and a delete button. Columns are the
// configured defaults followed by any other field present in the collection.
type TableComposer struct {
	Columns []string
}

func (t TableComposer) columns(c records.Collection) []string {
	out := make([]string, 0, len(t.Columns))
	seen := make(map[string]struct{})
	for _, col := range t.Columns {
		if _, ok := seen[col]; !ok {
			seen[col] = struct{}{}
			out = append(out, col)
		}
	}
	extra := make([]string, 0)
	for _, name := range c.FieldNames() {
		if _, ok := seen[name]; !ok {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(out, extra...)
}

func (t TableComposer) Compose(c records.Collection, b Binder) (View, error) {
	cols := t.columns(c)
	v := View{Columns: cols, Rows: make([]Row, 0, len(c))}
	for i, r := range c {
		slot := i + 1
		if err := b.EnsureBound(slot); err != nil {
			return View{}, fmt.Errorf("failed to bind slot %d: %w", slot, err)
		}
		row := Row{Slot: slot, RecordID: r.ID, Widgets: make([]Widget, 0, len(cols)+1)}
		for _, col := range cols {
			row.Widgets = append(row.Widgets, Widget{
				ID:    fmt.Sprintf("%s_%d", col, slot),
				Kind:  WidgetInput,
				Slot:  slot,
				Field: col,
				Value: r.Fields[col],
			})
		}
		row.Widgets = append(row.Widgets, Widget{
			ID:    fmt.Sprintf("delete_%d", slot),
			Kind:  WidgetButton,
			Slot:  slot,
			Label: "Delete",
		})
		v.Rows = append(v.Rows, row)
	}
	return v, nil
}
