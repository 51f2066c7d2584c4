// Package main implements roverctl, an interactive teleop shell speaking
// the rover's WebSocket command channel.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/chzyer/readline"
	"github.com/gorilla/websocket"
)

type command struct {
	ID     string   `json:"id,omitempty"`
	Type   string   `json:"type"`
	Left   *float64 `json:"left,omitempty"`
	Right  *float64 `json:"right,omitempty"`
	Value  *float64 `json:"value,omitempty"`
	Side   string   `json:"side,omitempty"`
	Angle  *float64 `json:"angle,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`
	TrimUS *int     `json:"trim_us,omitempty"`
}

func main() {
	addr := flag.String("addr", "localhost:8080", "rover daemon host:port")
	token := flag.String("token", "", "bearer token (when the daemon has auth enabled)")
	flag.Parse()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/api/v1/ws"}
	if *token != "" {
		u.RawQuery = "access_token=" + url.QueryEscape(*token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("connect to %s: %v", u.String(), err)
	}
	defer conn.Close()

	fmt.Printf("connected to %s\n", *addr)
	fmt.Println("commands: drive L R | stop | limit V | trim L|R V | servo A|+D|-D | status | watch | quit")

	// Periodic status events are suppressed unless watch mode is on.
	var watch atomic.Bool

	// Reader: print acks and status events, discard binary video frames.
	go func() {
		for {
			msgType, payload, err := conn.ReadMessage()
			if err != nil {
				fmt.Println("\nconnection closed:", err)
				os.Exit(0)
			}
			if msgType != websocket.TextMessage {
				continue
			}
			printServerMessage(payload, watch.Load())
		}
	}()

	rl, err := readline.New("rover> ")
	if err != nil {
		log.Fatalf("readline: %v", err)
	}
	defer rl.Close()

	seq := 0
	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF or readline.ErrInterrupt
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return
		}
		if line == "watch" {
			on := !watch.Load()
			watch.Store(on)
			fmt.Println("watch:", on)
			continue
		}

		seq++
		cmd, err := parseCommand(line, seq)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}

		if err := conn.WriteJSON(cmd); err != nil {
			log.Fatalf("send: %v", err)
		}
	}
}

// parseCommand turns one shell line into a wire command.
func parseCommand(line string, seq int) (*command, error) {
	fields := strings.Fields(line)
	cmd := &command{ID: strconv.Itoa(seq)}

	switch fields[0] {
	case "drive":
		if len(fields) != 3 {
			return nil, fmt.Errorf("usage: drive LEFT RIGHT (each in [-1,1])")
		}
		left, err1 := strconv.ParseFloat(fields[1], 64)
		right, err2 := strconv.ParseFloat(fields[2], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("drive values must be numbers")
		}
		cmd.Type = "drive"
		cmd.Left, cmd.Right = &left, &right

	case "stop":
		cmd.Type = "stop"

	case "limit":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: limit VALUE (in [0,1])")
		}
		v, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("limit value must be a number")
		}
		cmd.Type = "set_speed_limit"
		cmd.Value = &v

	case "trim":
		if len(fields) != 3 || (fields[1] != "L" && fields[1] != "R") {
			return nil, fmt.Errorf("usage: trim L|R VALUE (in [0,2])")
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("trim value must be a number")
		}
		cmd.Type = "set_trim"
		cmd.Side = fields[1]
		cmd.Value = &v

	case "servo":
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: servo ANGLE | +DELTA | -DELTA")
		}
		cmd.Type = "servo_set"
		arg := fields[1]
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return nil, fmt.Errorf("servo argument must be a number")
		}
		if strings.HasPrefix(arg, "+") || strings.HasPrefix(arg, "-") {
			cmd.Delta = &v
		} else {
			cmd.Angle = &v
		}

	case "status":
		cmd.Type = "get_status"

	default:
		return nil, fmt.Errorf("unknown command %q", fields[0])
	}

	return cmd, nil
}

// printServerMessage renders one text message from the daemon.
func printServerMessage(payload []byte, watch bool) {
	var msg struct {
		Type  string          `json:"type"`
		ID    string          `json:"id"`
		OK    *bool           `json:"ok"`
		Data  json.RawMessage `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		fmt.Printf("\r<< %s\n", payload)
		return
	}

	switch {
	case msg.Error != nil:
		fmt.Printf("\r<< [%s] %s: %s\n", msg.ID, msg.Error.Code, msg.Error.Message)
	case msg.Type == "ack":
		if len(msg.Data) > 0 {
			fmt.Printf("\r<< [%s] ok %s\n", msg.ID, msg.Data)
		} else {
			fmt.Printf("\r<< [%s] ok\n", msg.ID)
		}
	case msg.Type == "status":
		if watch {
			fmt.Printf("\r<< status %s\n", msg.Data)
		}
	default:
		fmt.Printf("\r<< %s\n", payload)
	}
}
