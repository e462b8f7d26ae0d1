// Package wire is the websocket protocol between the editor server and its clients: clients send commands, the
// server pushes views, control visibility and errors.
package wire

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/astromechza/record-editor/pkg/editor"
)

type Op string

const (
	OpSelect Op = "select"
	OpAdd    Op = "add"
	OpDelete Op = "delete"
	OpEdit   Op = "edit"
	OpCancel Op = "cancel"
	OpSave   Op = "save"
)

type Command struct {
	Op       Op     `json:"op"`
	Selector string `json:"selector,omitempty"`
	Slot     int    `json:"slot,omitempty"`
	Field    string `json:"field,omitempty"`
	Value    string `json:"value,omitempty"`
}

type Kind string

const (
	KindView     Kind = "view"
	KindControls Kind = "controls"
	KindError    Kind = "error"
)

type Update struct {
	Kind     Kind             `json:"kind"`
	View     *editor.View     `json:"view,omitempty"`
	Controls *editor.Controls `json:"controls,omitempty"`
	Error    string           `json:"error,omitempty"`
}

func ReadCommand(conn *websocket.Conn) (Command, error) {
	var c Command
	mt, p, err := conn.ReadMessage()
	if err != nil {
		return c, fmt.Errorf("failed to read message: %w", err)
	}
	if mt != websocket.TextMessage {
		return c, fmt.Errorf("unexpected message type %d", mt)
	}
	if err := json.Unmarshal(p, &c); err != nil {
		return c, fmt.Errorf("failed to decode command: %w", err)
	}
	return c, nil
}

func WriteCommand(conn *websocket.Conn, c Command) error {
	if err := conn.WriteJSON(c); err != nil {
		return fmt.Errorf("failed to write command: %w", err)
	}
	return nil
}

func ReadUpdate(conn *websocket.Conn) (Update, error) {
	var u Update
	if err := conn.ReadJSON(&u); err != nil {
		return u, fmt.Errorf("failed to read update: %w", err)
	}
	return u, nil
}

func WriteUpdate(conn *websocket.Conn, u Update) error {
	if err := conn.WriteJSON(u); err != nil {
		return fmt.Errorf("failed to write update: %w", err)
	}
	return nil
}

// ParseCommand reads the terminal form of a command:
//
//	select <selector> | add | delete <slot> | edit <slot> <field> <value...> | cancel | save
func ParseCommand(line string) (Command, error) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}
	c := Command{Op: Op(strings.ToLower(parts[0]))}
	args := parts[1:]
	slot := func() (int, error) {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return 0, fmt.Errorf("invalid slot %q: %w", args[0], err)
		}
		return v, nil
	}
	var err error
	switch c.Op {
	case OpAdd, OpCancel, OpSave:
		if len(args) != 0 {
			return Command{}, fmt.Errorf("%s takes no arguments", c.Op)
		}
	case OpSelect:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: select <selector>")
		}
		c.Selector = args[0]
	case OpDelete:
		if len(args) != 1 {
			return Command{}, fmt.Errorf("usage: delete <slot>")
		}
		if c.Slot, err = slot(); err != nil {
			return Command{}, err
		}
	case OpEdit:
		if len(args) < 2 {
			return Command{}, fmt.Errorf("usage: edit <slot> <field> [value]")
		}
		if c.Slot, err = slot(); err != nil {
			return Command{}, err
		}
		c.Field = args[1]
		c.Value = strings.Join(args[2:], " ")
	default:
		return Command{}, fmt.Errorf("unknown command %q", parts[0])
	}
	return c, nil
}
