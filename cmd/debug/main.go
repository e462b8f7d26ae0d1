package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/astromechza/record-editor/pkg/store"
	"github.com/astromechza/record-editor/pkg/viz"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	dbVar := flag.String("db", "editor.sqlite3", "the sqlite database file to read")
	svgVar := flag.String("svg", "", "write the save history as an svg graph to this path")
	flag.Parse()
	if flag.NArg() != 1 {
		return fmt.Errorf("expected one position argument: the selector to read")
	}
	selector := flag.Arg(0)

	s, err := store.OpenSQLite(*dbVar, "debug")
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := context.Background()
	doc, err := s.Doc(ctx, selector)
	if err != nil {
		return err
	}
	c, err := store.ReadRecords(doc)
	if err != nil {
		return err
	}
	slog.Info("loaded selector", "selector", selector, "heads", doc.Heads(), "records", len(c))
	for i, r := range c {
		slog.Info("record", "slot", i+1, "record", r.String())
	}

	revisions, err := store.Revisions(doc)
	if err != nil {
		return err
	}
	for i, rev := range revisions {
		slog.Info("revision", "i", fmt.Sprintf("%4d", i), "hash", rev.Hash, "actor", fmt.Sprintf("%s@%d", rev.Actor, rev.Seq), "message", rev.Message, "records", rev.Records)
	}

	if *svgVar != "" {
		if err := viz.RenderHistoryToSvg(doc, *svgVar); err != nil {
			return err
		}
		slog.Info("rendered", "path", "file://"+*svgVar)
	}
	return nil
}
