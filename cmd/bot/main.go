package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"buildgrid.ai/internal/protocol"
)

// bot joins a world and places one definition at each listed position,
// logging every RESULT it gets back.
func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "player name")
		defID  = flag.Int("def", 1, "definition id to place")
		at     = flag.String("at", "3,0;6,0;3,3", "semicolon separated x,z world positions")
		remove = flag.Bool("remove", false, "remove at the positions instead of placing")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)

	targets, err := parsePositions(*at)
	if err != nil {
		logger.Fatalf("bad -at: %v", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: *name}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	results := make(chan protocol.ResultMsg, 16)
	go readLoop(conn, logger, results)

	seq := int64(0)
	send := func(in protocol.InputMsg) protocol.ResultMsg {
		seq++
		in.Type = protocol.TypeInput
		in.ProtocolVersion = protocol.Version
		in.Seq = seq
		if err := conn.WriteJSON(in); err != nil {
			logger.Fatalf("send %s: %v", in.Kind, err)
		}
		select {
		case r := <-results:
			return r
		case <-time.After(5 * time.Second):
			logger.Fatalf("no RESULT for seq=%d", seq)
		}
		return protocol.ResultMsg{}
	}

	for _, pos := range targets {
		p := pos
		if *remove {
			send(protocol.InputMsg{Kind: protocol.InputStartRemoving})
		} else {
			r := send(protocol.InputMsg{Kind: protocol.InputStartPlacement, DefinitionID: defID})
			if !r.OK {
				logger.Printf("start placement def=%d: %s %s", *defID, r.Code, r.Message)
				return
			}
		}
		r := send(protocol.InputMsg{Kind: protocol.InputClick, Pos: &p})
		if r.OK {
			logger.Printf("at %v: placed=%d removed=%d resources=%v zone=%d", p, len(r.Placed), len(r.Removed), r.Resources, r.ZoneCount)
		} else {
			logger.Printf("at %v: %s %s", p, r.Code, r.Message)
		}
	}
	send(protocol.InputMsg{Kind: protocol.InputExit})
}

func readLoop(conn *websocket.Conn, logger *log.Logger, results chan<- protocol.ResultMsg) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			continue
		}
		switch base.Type {
		case protocol.TypeWelcome:
			var w protocol.WelcomeMsg
			if err := json.Unmarshal(msg, &w); err != nil {
				continue
			}
			logger.Printf("WELCOME session=%s world=%s tick_rate=%d resources=%v", w.SessionID, w.WorldID, w.WorldParams.TickRateHz, w.Resources)
		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			results <- r
		}
	}
}

func parsePositions(s string) ([][3]float64, error) {
	var out [][3]float64
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		xz := strings.Split(part, ",")
		if len(xz) != 2 {
			return nil, fmt.Errorf("want x,z got %q", part)
		}
		x, err := strconv.ParseFloat(strings.TrimSpace(xz[0]), 64)
		if err != nil {
			return nil, err
		}
		z, err := strconv.ParseFloat(strings.TrimSpace(xz[1]), 64)
		if err != nil {
			return nil, err
		}
		out = append(out, [3]float64{x, 0, z})
	}
	return out, nil
}
