package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astromechza/record-editor/pkg/records"
	"github.com/astromechza/record-editor/pkg/store"
	"github.com/astromechza/record-editor/pkg/wire"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	m := store.NewMemoryStore()
	m.Seed("A", records.Collection{{ID: 1, Fields: map[string]string{"role": "Eng"}}})
	ts := httptest.NewServer(New(m, []string{"role"}).Router())
	t.Cleanup(ts.Close)
	return ts, m
}

func dial(t *testing.T, ts *httptest.Server, selector string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/selectors/" + selector + "/edit"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func expect(t *testing.T, conn *websocket.Conn, kind wire.Kind) wire.Update {
	t.Helper()
	u, err := wire.ReadUpdate(conn)
	require.NoError(t, err)
	require.Equal(t, kind, u.Kind, "update %+v", u)
	return u
}

func send(t *testing.T, conn *websocket.Conn, line string) {
	t.Helper()
	c, err := wire.ParseCommand(line)
	require.NoError(t, err)
	require.NoError(t, wire.WriteCommand(conn, c))
}

func TestEditOverWebsocket(t *testing.T) {
	ts, m := newTestServer(t)
	conn := dial(t, ts, "A")

	u := expect(t, conn, wire.KindView)
	require.Len(t, u.View.Rows, 1)
	assert.Equal(t, "A", u.View.Selector)

	send(t, conn, "add")
	u = expect(t, conn, wire.KindView)
	assert.Len(t, u.View.Rows, 2)
	u = expect(t, conn, wire.KindControls)
	assert.True(t, u.Controls.SaveVisible)

	send(t, conn, "edit 2 role Lead")
	send(t, conn, "save")
	// the edit produced nothing to send; the save rebuilds and hides the controls
	u = expect(t, conn, wire.KindView)
	assert.Equal(t, "Lead", u.View.Rows[1].Widgets[0].Value)
	u = expect(t, conn, wire.KindControls)
	assert.False(t, u.Controls.SaveVisible)

	saved, err := m.Load(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, saved.Equal(records.Collection{
		{ID: 1, Fields: map[string]string{"role": "Eng"}},
		{ID: 2, Fields: map[string]string{"role": "Lead"}},
	}))

	send(t, conn, "delete 7")
	u = expect(t, conn, wire.KindError)
	assert.Contains(t, u.Error, "no handler bound")
}

func TestNewSelectorReportsNotFoundButStaysUsable(t *testing.T) {
	ts, m := newTestServer(t)
	conn := dial(t, ts, "fresh")

	expect(t, conn, wire.KindView)
	u := expect(t, conn, wire.KindError)
	assert.Contains(t, u.Error, "not found")

	send(t, conn, "add")
	expect(t, conn, wire.KindView)
	expect(t, conn, wire.KindControls)
	send(t, conn, "save")
	expect(t, conn, wire.KindView)
	expect(t, conn, wire.KindControls)

	c, err := m.Load(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Len(t, c, 1)
}

func TestGetRecordsAndHistory(t *testing.T) {
	ts, m := newTestServer(t)
	_, err := m.Save(context.Background(), "A", records.Collection{{ID: 4, Fields: map[string]string{"role": "Ops"}}})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/selectors/A/records")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var c records.Collection
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&c))
	assert.Equal(t, int64(4), c[0].ID)

	resp2, err := http.Get(ts.URL + "/selectors/A/history")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var revs []store.Revision
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&revs))
	assert.Len(t, revs, 1)

	resp3, err := http.Get(ts.URL + "/selectors/nobody/records")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestSessionsAreListedWhileOpen(t *testing.T) {
	ts, _ := newTestServer(t)
	conn := dial(t, ts, "A")
	expect(t, conn, wire.KindView)

	resp, err := http.Get(ts.URL + "/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()
	var sessions []sessionInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, "A", sessions[0].Selector)
}
