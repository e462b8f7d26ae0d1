package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gorilla/websocket"

	"github.com/astromechza/record-editor/pkg/editor"
	"github.com/astromechza/record-editor/pkg/wire"
)

func main() {
	if err := mainInner(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func mainInner() error {
	addrVar := flag.String("addr", "127.0.0.1:8080", "the address to request on")
	selectorVar := flag.String("selector", "default", "the selector to open")
	flag.Parse()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{})))

	u := &url.URL{Scheme: "ws", Host: *addrVar}
	u = u.JoinPath("selectors", *selectorVar, "edit")
	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to dial: %w", err)
	}
	defer conn.Close()
	slog.Info("connected", "url", u.String())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := new(sync.WaitGroup)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		printUpdates(conn)
	}()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	exit := make(chan os.Signal, 1) // we need to reserve to buffer size 1, so the notifier are not blocked
	signal.Notify(exit, syscall.SIGINT, syscall.SIGTERM)

loop:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			c, err := wire.ParseCommand(line)
			if err != nil {
				slog.Error("invalid command", "err", err)
				continue
			}
			if err := wire.WriteCommand(conn, c); err != nil {
				return err
			}
		case sig := <-exit:
			slog.Info("Signal caught", "sig", sig)
			break loop
		case <-ctx.Done():
			break loop
		}
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()
	wg.Wait()
	return nil
}

func printUpdates(conn *websocket.Conn) {
	for {
		u, err := wire.ReadUpdate(conn)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) && !websocket.IsCloseError(errors.Unwrap(err), websocket.CloseNormalClosure) {
				slog.Error("connection closed", "err", err)
			}
			return
		}
		switch u.Kind {
		case wire.KindView:
			if u.View != nil {
				printView(*u.View)
			}
		case wire.KindControls:
			if u.Controls != nil {
				fmt.Printf("controls: save=%t cancel=%t\n", u.Controls.SaveVisible, u.Controls.CancelVisible)
			}
		case wire.KindError:
			fmt.Printf("error: %s\n", u.Error)
		}
	}
}

func printView(v editor.View) {
	fmt.Printf("%s (epoch %d)\n", v.Selector, v.Epoch)
	fmt.Printf("  %-4s %-6s", "slot", "id")
	for _, c := range v.Columns {
		fmt.Printf(" %-16s", c)
	}
	fmt.Println()
	for _, row := range v.Rows {
		fmt.Printf("  %-4d %-6d", row.Slot, row.RecordID)
		for _, w := range row.Widgets {
			if w.Kind == editor.WidgetInput {
				fmt.Printf(" %-16q", w.Value)
			}
		}
		fmt.Println()
	}
}
