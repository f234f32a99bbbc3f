// Command forgectl sends actions to a running server over the websocket
// protocol and prints each RESULT.
//
//	forgectl CREATE_WORLD world=Eldemoor
//	forgectl PLACE_CHARACTER world=Eldemoor region=2-3 name=Ayla race=Elf class=Ranger
//	forgectl -out bundle.zip EXPORT world=Eldemoor
//
// Without arguments, actions are read from stdin as JSON lines.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"manaforge.ai/internal/protocol"
)

func main() {
	var (
		url  = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name = flag.String("name", "forgectl", "client name")
		out  = flag.String("out", "", "write EXPORT bundles to this path")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[forgectl] ", log.LstdFlags|log.Lmicroseconds)

	var actions []protocol.Action
	if flag.NArg() > 0 {
		a, err := parseAction(flag.Args())
		if err != nil {
			logger.Fatalf("%v", err)
		}
		actions = append(actions, a)
	} else {
		var err error
		if actions, err = readActions(os.Stdin); err != nil {
			logger.Fatalf("read actions: %v", err)
		}
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: *name}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		logger.Fatalf("read WELCOME: %v", err)
	}
	logger.Printf("WELCOME session=%s worlds=%v active=%q day=%d", welcome.SessionID, welcome.Worlds, welcome.ActiveWorld, welcome.Day)

	failed := false
	for i, a := range actions {
		act := protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			ID:              fmt.Sprintf("A_%d_%d", time.Now().Unix(), i),
			Action:          a,
		}
		if err := conn.WriteJSON(act); err != nil {
			logger.Fatalf("send ACT: %v", err)
		}
		var res protocol.ResultMsg
		if err := conn.ReadJSON(&res); err != nil {
			logger.Fatalf("read RESULT: %v", err)
		}
		if !res.OK {
			failed = true
			fmt.Printf("%s %s: %s\n", a.Type, res.Code, res.Message)
			continue
		}
		if a.Type == protocol.ActExport && *out != "" {
			if err := writeExport(*out, res.Data); err != nil {
				logger.Fatalf("write export: %v", err)
			}
			fmt.Printf("%s ok: wrote %s\n", a.Type, *out)
			continue
		}
		fmt.Printf("%s ok\n%s\n", a.Type, indent(res.Data))
	}
	if failed {
		os.Exit(1)
	}
}

var intFields = map[string]bool{"days": true}
var boolFields = map[string]bool{"capital": true}

// parseAction turns "TYPE key=value ..." into an Action. Keys are the JSON
// field names of protocol.Action.
func parseAction(args []string) (protocol.Action, error) {
	if len(args) == 0 {
		return protocol.Action{}, errors.New("missing action type")
	}
	fields := map[string]any{"type": strings.ToUpper(args[0])}
	for _, kv := range args[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return protocol.Action{}, fmt.Errorf("bad argument %q (want key=value)", kv)
		}
		switch {
		case intFields[k]:
			n, err := strconv.Atoi(v)
			if err != nil {
				return protocol.Action{}, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = n
		case boolFields[k]:
			b, err := strconv.ParseBool(v)
			if err != nil {
				return protocol.Action{}, fmt.Errorf("%s: %w", k, err)
			}
			fields[k] = b
		default:
			fields[k] = v
		}
	}
	b, err := json.Marshal(fields)
	if err != nil {
		return protocol.Action{}, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var a protocol.Action
	if err := dec.Decode(&a); err != nil {
		return protocol.Action{}, err
	}
	return a, nil
}

func readActions(r io.Reader) ([]protocol.Action, error) {
	var out []protocol.Action
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var a protocol.Action
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return nil, fmt.Errorf("line %q: %w", line, err)
		}
		out = append(out, a)
	}
	return out, sc.Err()
}

func writeExport(path string, data json.RawMessage) error {
	var v struct {
		Data []byte `json:"data"`
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return os.WriteFile(path, v.Data, 0o644)
}

func indent(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(b)
}
