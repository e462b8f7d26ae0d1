// Package viz draws the save history of a stored selector document as a graph of automerge changes.
package viz

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/automerge/automerge-go"
	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"

	"github.com/astromechza/record-editor/pkg/store"
)

// Label describes one change: short hash, actor@seq, commit message and the records present after it.
func Label(doc *automerge.Doc, change *automerge.Change) (string, error) {
	docAt, err := doc.Fork(change.Hash())
	if err != nil {
		return "", fmt.Errorf("failed to checkout %s: %w", change.Hash(), err)
	}
	c, err := store.ReadRecords(docAt)
	if err != nil {
		return "", fmt.Errorf("failed to read records at %s: %w", change.Hash(), err)
	}
	ids := make([]string, 0, len(c))
	for _, r := range c {
		ids = append(ids, strconv.FormatInt(r.ID, 10))
	}
	return fmt.Sprintf(
		"%s %s@%d\n%s\n[%s]",
		change.Hash().String()[:8], change.ActorID(), change.ActorSeq(), change.Message(), strings.Join(ids, ","),
	), nil
}

func RenderHistoryToSvg(doc *automerge.Doc, outputPath string) error {
	var buff bytes.Buffer
	if err := RenderHistory(doc, &buff); err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, buff.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	return nil
}

func RenderHistory(doc *automerge.Doc, buff *bytes.Buffer) error {
	g := graphviz.New()
	defer g.Close()

	graph, err := g.Graph()
	if err != nil {
		return fmt.Errorf("failed to setup graph: %w", err)
	}
	defer graph.Close()

	changes, err := doc.Changes()
	if err != nil {
		return fmt.Errorf("failed to generate changes: %w", err)
	}

	nodeMap := make(map[string]*cgraph.Node)
	var edgeCounter uint64
	for _, change := range changes {
		label, err := Label(doc, change)
		if err != nil {
			return err
		}
		n, err := graph.CreateNode(change.Hash().String())
		if err != nil {
			return fmt.Errorf("failed to create node: %w", err)
		}
		n.SetLabel(label)
		nodeMap[n.Name()] = n

		for _, hash := range change.Dependencies() {
			_, err := graph.CreateEdge(strconv.Itoa(int(atomic.AddUint64(&edgeCounter, 1))), nodeMap[hash.String()], n)
			if err != nil {
				return fmt.Errorf("failed to create edge: %w", err)
			}
		}
	}

	if err := g.Render(graph, graphviz.SVG, buff); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	return nil
}

func RenderToTemp(doc *automerge.Doc) (string, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("%d%d.svg", time.Now().UnixNano(), rand.Int()))
	if err := RenderHistoryToSvg(doc, tf); err != nil {
		return "", err
	}
	return tf, nil
}
