package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"os/signal"

	"github.com/gorilla/websocket"

	"econcraft.ai/internal/protocol"
)

func main() {
	var (
		url    = flag.String("url", "ws://localhost:8080/v1/ws", "ws url")
		name   = flag.String("name", "bot", "player name")
		token  = flag.String("resume", "", "resume token from a previous session")
		target = flag.Uint("build", 1, "building id to expand")
		every  = flag.Uint64("probe_every", 25, "ticks between build probes")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[bot] ", log.LstdFlags|log.Lmicroseconds)
	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		logger.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      *name,
	}
	if *token != "" {
		hello.Auth = &protocol.HelloAuth{ResumeToken: *token}
	}
	if err := conn.WriteJSON(hello); err != nil {
		logger.Fatalf("send HELLO: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	go func() {
		<-stop
		_ = conn.Close()
	}()

	s := newStrategy(uint8(*target), *every)
	send := func(cmds []protocol.CmdMsg) {
		for _, c := range cmds {
			if err := conn.WriteJSON(c); err != nil {
				logger.Printf("send %s: %v", c.Cmd, err)
				return
			}
		}
	}

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
			if w.PlayerID == "" {
				logger.Fatalf("rejected: %s %s", w.Code, w.Message)
			}
			logger.Printf("WELCOME player_id=%s resume_token=%s tick_rate=%d seed=%d", w.PlayerID, w.ResumeToken, w.WorldParams.TickRateHz, w.WorldParams.Seed)

		case protocol.TypeState:
			var st protocol.StateMsg
			if err := json.Unmarshal(msg, &st); err != nil {
				continue
			}
			for _, e := range st.Events {
				logger.Printf("tick %d event %v", st.Tick, e)
			}
			send(s.onState(st))

		case protocol.TypeResult:
			var r protocol.ResultMsg
			if err := json.Unmarshal(msg, &r); err != nil {
				continue
			}
			if !r.OK {
				logger.Printf("tick %d %s: %s %s", r.Tick, r.ReqID, r.Code, r.Message)
			}
			send(s.onResult(r))
		}
	}
}
