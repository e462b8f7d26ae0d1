// Package server exposes the persisted collections over HTTP and hosts one editing session per websocket
// connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/astromechza/record-editor/pkg/binder"
	"github.com/astromechza/record-editor/pkg/editor"
	"github.com/astromechza/record-editor/pkg/store"
	"github.com/astromechza/record-editor/pkg/wire"
)

type Server struct {
	store    store.Store
	columns  []string
	upgrader websocket.Upgrader
	sessions *sync.Map
}

func New(s store.Store, columns []string) *Server {
	return &Server{
		store:   s,
		columns: columns,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		sessions: new(sync.Map),
	}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/selectors/{selector}/records").HandlerFunc(s.getRecords)
	r.Methods(http.MethodGet).Path("/selectors/{selector}/history").HandlerFunc(s.getHistory)
	r.Methods(http.MethodGet).Path("/selectors/{selector}/edit").HandlerFunc(s.edit)
	r.Methods(http.MethodGet).Path("/sessions").HandlerFunc(s.listSessions)
	return r
}

func writeJSON(writer http.ResponseWriter, v interface{}) {
	writer.Header().Add("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) getRecords(writer http.ResponseWriter, request *http.Request) {
	selector := mux.Vars(request)["selector"]
	c, err := s.store.Load(request.Context(), selector)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("failed to load", "selector", selector, "err", err)
		}
		writer.WriteHeader(statusFor(err))
		return
	}
	writeJSON(writer, c)
}

func (s *Server) getHistory(writer http.ResponseWriter, request *http.Request) {
	selector := mux.Vars(request)["selector"]
	revs, err := s.store.History(request.Context(), selector)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Error("failed to load history", "selector", selector, "err", err)
		}
		writer.WriteHeader(statusFor(err))
		return
	}
	writeJSON(writer, revs)
}

// sessionInfo names the selector a session was opened for; later selects within the session are not reflected.
type sessionInfo struct {
	ID       string `json:"id"`
	Selector string `json:"selector"`
}

func (s *Server) listSessions(writer http.ResponseWriter, _ *http.Request) {
	out := make([]sessionInfo, 0)
	s.sessions.Range(func(id, raw any) bool {
		out = append(out, sessionInfo{ID: id.(string), Selector: raw.(string)})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(writer, out)
}

func (s *Server) edit(writer http.ResponseWriter, request *http.Request) {
	selector := mux.Vars(request)["selector"]
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}
	defer conn.Close()

	sess := editor.NewSession(s.store, editor.Options{Columns: s.columns})
	defer sess.Close()
	s.sessions.Store(sess.ID(), selector)
	defer s.sessions.Delete(sess.ID())

	if err := Serve(request.Context(), conn, sess, selector); err != nil {
		slog.Info("session ended", "session", sess.ID(), "err", err)
	}
}

// Serve runs the session for one connection. Commands are applied strictly one after another and the updates each
// one produced are written before the next command is read.
func Serve(ctx context.Context, conn *websocket.Conn, sess *editor.Session, selector string) error {
	var pending []wire.Update
	sess.OnView(func(v editor.View) {
		pending = append(pending, wire.Update{Kind: wire.KindView, View: &v})
	})
	sess.OnControls(func(c editor.Controls) {
		pending = append(pending, wire.Update{Kind: wire.KindControls, Controls: &c})
	})
	flush := func(cmdErr error) error {
		if cmdErr != nil {
			pending = append(pending, wire.Update{Kind: wire.KindError, Error: cmdErr.Error()})
		}
		for _, u := range pending {
			if err := wire.WriteUpdate(conn, u); err != nil {
				return err
			}
		}
		pending = pending[:0]
		return nil
	}

	if err := flush(sess.Select(ctx, selector)); err != nil {
		return err
	}
	for {
		cmd, err := wire.ReadCommand(conn)
		if err != nil {
			return err
		}
		if err := flush(Apply(ctx, sess, cmd)); err != nil {
			return err
		}
	}
}

// Apply runs one command. Edits and deletes arrive as widget events and go through the slot handlers.
func Apply(ctx context.Context, sess *editor.Session, cmd wire.Command) error {
	switch cmd.Op {
	case wire.OpSelect:
		return sess.Select(ctx, cmd.Selector)
	case wire.OpAdd:
		return sess.Add()
	case wire.OpDelete:
		return sess.Dispatch(binder.Event{Kind: binder.KindDelete, Slot: cmd.Slot})
	case wire.OpEdit:
		return sess.Dispatch(binder.Event{Kind: binder.KindEdit, Slot: cmd.Slot, Field: cmd.Field, Value: cmd.Value})
	case wire.OpCancel:
		return sess.Cancel()
	case wire.OpSave:
		return sess.Save(ctx)
	default:
		return fmt.Errorf("unknown op %q", cmd.Op)
	}
}
