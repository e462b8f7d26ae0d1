package viz

import (
	"bytes"
	"testing"

	"github.com/automerge/automerge-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/record-editor/pkg/records"
	"github.com/astromechza/record-editor/pkg/store"
)

func historyDoc(t *testing.T) *automerge.Doc {
	t.Helper()
	doc := automerge.New()
	require.NoError(t, store.WriteRecords(doc, records.Collection{{ID: 1, Fields: map[string]string{"role": "Eng"}}}))
	_, err := doc.Commit("save 1 records", automerge.CommitOptions{AllowEmpty: true})
	require.NoError(t, err)
	require.NoError(t, store.WriteRecords(doc, records.Collection{
		{ID: 1, Fields: map[string]string{"role": "Eng"}},
		{ID: 2, Fields: map[string]string{"role": "Lead"}},
	}))
	_, err = doc.Commit("save 2 records", automerge.CommitOptions{AllowEmpty: true})
	require.NoError(t, err)
	return doc
}

func TestLabel(t *testing.T) {
	doc := historyDoc(t)
	changes, err := doc.Changes()
	require.NoError(t, err)
	require.Len(t, changes, 2)

	label, err := Label(doc, changes[1])
	require.NoError(t, err)
	assert.Contains(t, label, "save 2 records")
	assert.Contains(t, label, "[1,2]")
}

func TestRenderHistory(t *testing.T) {
	var buff bytes.Buffer
	require.NoError(t, RenderHistory(historyDoc(t), &buff))
	assert.Contains(t, buff.String(), "<svg")
}
