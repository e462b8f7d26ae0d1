package store

import (
	"fmt"

	"github.com/automerge/automerge-go"

	"github.com/astromechza/record-editor/pkg/records"
)

const recordsKey = "records"

// WriteRecords replaces the records list of the document. The change is left uncommitted.
func WriteRecords(doc *automerge.Doc, c records.Collection) error {
	items := make([]interface{}, 0, len(c))
	for _, r := range c {
		fields := make(map[string]interface{}, len(r.Fields))
		for k, v := range r.Fields {
			fields[k] = v
		}
		items = append(items, map[string]interface{}{"id": r.ID, "fields": fields})
	}
	if err := doc.Path(recordsKey).Set(items); err != nil {
		return fmt.Errorf("failed to set records: %w", err)
	}
	return nil
}

// ReadRecords decodes the records list of the document. A document without one holds an empty collection.
func ReadRecords(doc *automerge.Doc) (records.Collection, error) {
	value, err := doc.Path(recordsKey).Get()
	if err != nil {
		return nil, fmt.Errorf("failed to get records: %w", err)
	}
	if value.Kind() == automerge.KindVoid {
		return records.Collection{}, nil
	}
	if value.Kind() != automerge.KindList {
		return nil, fmt.Errorf("records is a %v, not a list", value.Kind())
	}
	list := value.List()
	out := make(records.Collection, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		item, err := list.Get(i)
		if err != nil {
			return nil, fmt.Errorf("failed to get record %d: %w", i, err)
		}
		if item.Kind() != automerge.KindMap {
			return nil, fmt.Errorf("record %d is a %v, not a map", i, item.Kind())
		}
		m := item.Map()
		id, err := automerge.As[int64](m.Get("id"))
		if err != nil {
			return nil, fmt.Errorf("failed to read id of record %d: %w", i, err)
		}
		fields, err := automerge.As[map[string]string](m.Get("fields"))
		if err != nil {
			return nil, fmt.Errorf("failed to read fields of record %d: %w", i, err)
		}
		if fields == nil {
			fields = map[string]string{}
		}
		out = append(out, records.Record{ID: id, Fields: fields})
	}
	return out, nil
}

// Revisions walks the change log of the document, counting the records present after each change.
func Revisions(doc *automerge.Doc) ([]Revision, error) {
	changes, err := doc.Changes()
	if err != nil {
		return nil, fmt.Errorf("failed to generate changes: %w", err)
	}
	out := make([]Revision, 0, len(changes))
	for _, change := range changes {
		docAt, err := doc.Fork(change.Hash())
		if err != nil {
			return nil, fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
		}
		c, err := ReadRecords(docAt)
		if err != nil {
			return nil, fmt.Errorf("failed to read records at %s: %w", change.Hash(), err)
		}
		out = append(out, Revision{
			Hash:      change.Hash().String(),
			Actor:     change.ActorID(),
			Seq:       change.ActorSeq(),
			Message:   change.Message(),
			Timestamp: change.Timestamp(),
			Records:   len(c),
		})
	}
	return out, nil
}
