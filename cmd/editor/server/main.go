package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/astromechza/record-editor/pkg/server"
	"github.com/astromechza/record-editor/pkg/store"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "localhost:8080", "the address to listen on")
	dbVar := flag.String("db", "editor.sqlite3", "the sqlite database file, or :memory: for a non persistent store")
	columnsVar := flag.String("columns", "role", "comma separated list of columns shown before any other fields")
	levelVar := flag.String("log-level", "info", "the minimum log level")
	pruneVar := flag.Duration("prune-after", 24*time.Hour, "delete superseded snapshots older than this, 0 disables pruning")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*levelVar)); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	var columns []string
	for _, c := range strings.Split(*columnsVar, ",") {
		if c = strings.TrimSpace(c); c != "" {
			columns = append(columns, c)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	var st store.Store
	if *dbVar == ":memory:" {
		slog.Info("Using in-memory store")
		st = store.NewMemoryStore()
	} else {
		slog.Info("Opening database", "path", *dbVar)
		sq, err := store.OpenSQLite(*dbVar, fmt.Sprintf("server-%d", os.Getpid()))
		if err != nil {
			return err
		}
		st = sq
		if *pruneVar > 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				pruneContinuously(ctx, sq, *pruneVar)
			}()
		}
	}
	defer st.Close()

	httpServer := &http.Server{Addr: *addrVar, Handler: server.New(st, columns).Router()}

	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("Listening", "addr", *addrVar, "columns", columns)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
		}
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-exit
	slog.Info("Signal caught", "sig", sig)
	cancel()
	_ = httpServer.Close()

	wg.Wait()
	return nil
}

func pruneContinuously(ctx context.Context, s *store.SQLiteStore, olderThan time.Duration) {
	t := time.NewTicker(time.Minute)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if n, err := s.Prune(ctx, olderThan); err != nil {
				slog.Error("failed to prune snapshots", "err", err)
			} else if n > 0 {
				slog.Info("pruned snapshots", "count", n)
			}
		case <-ctx.Done():
			return
		}
	}
}
