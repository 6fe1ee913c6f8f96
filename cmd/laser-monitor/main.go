// laser-monitor - prints the live status stream of a running go-laser
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-laser/internal/log"
	"github.com/teslashibe/go-laser/pkg/hub"
)

func main() {
	addr := flag.String("addr", "localhost:7080", "go-laser address")
	raw := flag.Bool("raw", false, "Print raw JSON events")
	flag.Parse()

	log.Init(os.Getenv("LOG_LEVEL"))

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws/status"}
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		log.Error("connect failed", "url", u.String(), "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	log.Info("connected", "url", u.String())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.Close()
	}()

	// The server pings; answering keeps the connection alive.
	conn.SetPingHandler(func(data string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				log.Warn("connection closed", "error", err)
			}
			return
		}
		if *raw {
			fmt.Println(string(data))
			continue
		}
		printEvent(data)
	}
}

func printEvent(data []byte) {
	var ev struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		log.Warn("bad event", "error", err)
		return
	}

	ts := time.Now().Format("15:04:05.000")
	switch ev.Type {
	case hub.EventState:
		var u struct {
			Label string `json:"label"`
			State struct {
				Pan  float64 `json:"pan"`
				Tilt float64 `json:"tilt"`
			} `json:"state"`
			Duty struct {
				Pan  float64 `json:"pan"`
				Tilt float64 `json:"tilt"`
			} `json:"duty"`
		}
		if err := json.Unmarshal(ev.Data, &u); err != nil {
			log.Warn("bad state event", "error", err)
			return
		}
		label := u.Label
		if label == "" {
			label = "object"
		}
		fmt.Printf("%s  %-12s pan=%+.3f tilt=%+.3f  duty=%.2f%%/%.2f%%\n",
			ts, label, u.State.Pan, u.State.Tilt, u.Duty.Pan, u.Duty.Tilt)
	case hub.EventActuationError:
		fmt.Printf("%s  actuation error: %s\n", ts, ev.Data)
	default:
		fmt.Printf("%s  %s: %s\n", ts, ev.Type, ev.Data)
	}
}
