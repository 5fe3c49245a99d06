/*
Package main is a terminal client for the room chat server.

It keeps one session alive through the reconnection shell, persists the last joined
identity and room in a local badger store, and reads commands from stdin:

	/join <name> <room>   join a room under a display name
	/leave                leave the current room
	/who                  show the roster of the current room
	/rooms                show the room catalog
	/quit                 exit

Any other line is sent as a chat message.
*/
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"

	"roomchat/internal/app/protocol"
	"roomchat/internal/app/shell"
	"roomchat/internal/pkg/logx"
)

// Config is read from CHAT_* environment variables.
type Config struct {
	ServerURL          string        `envconfig:"SERVER_URL" default:"ws://localhost:3000/ws"`
	StateDir           string        `envconfig:"STATE_DIR" default:".chat-state"`
	LogFile            string        `envconfig:"LOG_FILE"`
	LogLevel           string        `envconfig:"LOG_LEVEL" default:"info"`
	HeartbeatInterval  time.Duration `envconfig:"HEARTBEAT_INTERVAL" default:"25s"`
	ReconnectAttempts  uint64        `envconfig:"RECONNECT_ATTEMPTS" default:"5"`
	ReconnectBaseDelay time.Duration `envconfig:"RECONNECT_BASE_DELAY" default:"1s"`
	ReconnectMaxDelay  time.Duration `envconfig:"RECONNECT_MAX_DELAY" default:"30s"`
}

// view holds what the terminal shows about the current room.
type view struct {
	mu       sync.Mutex
	room     string
	roster   []string
	catalog  []string
	identity string
}

func main() {
	var cfg Config
	if err := envconfig.Process("CHAT", &cfg); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logOutput := io.Discard
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: Failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer file.Close()
		logOutput = file
	}
	if err := logx.Init(logx.Options{Output: logOutput, Level: cfg.LogLevel}); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	store, err := shell.OpenBadgerStore(cfg.StateDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	v := &view{}
	if state, err := store.Load(); err == nil && !state.Empty() {
		v.identity = state.Identity
		color.Info.Printf("Rejoining %s as %s after connect.\n", state.Room, state.Identity)
	}

	s := shell.New(shell.NewWebSocketTransport(cfg.ServerURL), store, shell.Options{
		HeartbeatInterval: cfg.HeartbeatInterval,
		MaxAttempts:       cfg.ReconnectAttempts,
		BaseDelay:         cfg.ReconnectBaseDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		OnEvent:           v.render,
		OnStatus: func(status shell.Status) {
			color.Comment.Printf("[%s]\n", status)
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := make(chan error, 1)
	start := func() { go func() { runErr <- s.Run(ctx) }() }
	start()
	running := true

	lines := make(chan string)
	go readLines(os.Stdin, lines)

	for {
		select {
		case <-ctx.Done():
			s.Close()
			return

		case err := <-runErr:
			running = false
			switch {
			case errors.Is(err, shell.ErrSessionKicked):
				color.Warn.Println("You were signed out because your name was used from another connection.")
				color.Info.Println("Use /join <name> <room> to sign in again.")
			case err != nil:
				color.Error.Printf("Connection lost: %v\n", err)
				color.Info.Println("Use /join <name> <room> to reconnect.")
			}

		case line, ok := <-lines:
			if !ok {
				s.Close()
				return
			}
			joined, quit := v.handle(s, line)
			if quit {
				s.Close()
				return
			}
			// a join while signed out or offline starts a new connection cycle
			if joined && !running {
				start()
				running = true
			}
		}
	}
}

func readLines(r io.Reader, out chan<- string) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		out <- scanner.Text()
	}
}

// handle runs one input line. It reports whether a join intention was recorded and whether
// the user asked to quit.
func (v *view) handle(s *shell.Shell, line string) (joined, quit bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, false
	}

	fields := strings.Fields(line)
	var err error

	switch fields[0] {
	case "/quit":
		return false, true

	case "/join":
		if len(fields) != 3 {
			color.Warn.Println("usage: /join <name> <room>")
			return false, false
		}
		v.mu.Lock()
		v.identity = fields[1]
		v.mu.Unlock()
		err = s.Join(fields[1], fields[2])
		joined = err == nil

	case "/leave":
		err = s.Leave()

	case "/who":
		v.printRoster(os.Stdout)

	case "/rooms":
		v.mu.Lock()
		color.Info.Println(strings.Join(v.catalog, ", "))
		v.mu.Unlock()

	default:
		err = s.Send(line)
	}

	if err != nil {
		color.Error.Printf("%v\n", err)
	}
	return joined, false
}

// render prints one server event.
func (v *view) render(ev protocol.Event) {
	v.mu.Lock()
	defer v.mu.Unlock()

	switch ev.Type {
	case protocol.TypeRooms:
		var payload protocol.RoomsPayload
		if ev.Decode(&payload) == nil {
			v.catalog = payload.Rooms
			color.Info.Printf("Rooms: %s\n", strings.Join(payload.Rooms, ", "))
		}

	case protocol.TypeJoined:
		var payload protocol.JoinedPayload
		if ev.Decode(&payload) == nil {
			v.room = payload.Room
			color.Success.Println(payload.WelcomeText)
		}

	case protocol.TypeLeft:
		var payload protocol.LeftPayload
		if ev.Decode(&payload) == nil {
			v.room = ""
			v.roster = nil
			color.Info.Println(payload.ConfirmationText)
		}

	case protocol.TypeRoster:
		var payload protocol.RosterPayload
		if ev.Decode(&payload) == nil && payload.Room == v.room {
			v.roster = payload.Identities
		}

	case protocol.TypeMemberJoined:
		var payload protocol.MemberPayload
		if ev.Decode(&payload) == nil {
			color.Comment.Printf("%s joined %s\n", payload.Identity, payload.Room)
		}

	case protocol.TypeMemberLeft:
		var payload protocol.MemberPayload
		if ev.Decode(&payload) == nil {
			color.Comment.Printf("%s left %s\n", payload.Identity, payload.Room)
		}

	case protocol.TypeMessage:
		var payload protocol.MessagePayload
		if ev.Decode(&payload) == nil {
			sender := color.Cyan.Sprint(payload.SenderIdentity)
			if payload.SenderIdentity == v.identity {
				sender = color.Green.Sprint(payload.SenderIdentity)
			}
			fmt.Printf("%s %s: %s\n", color.Gray.Sprint(payload.SentAt.Local().Format("15:04")), sender, payload.Text)
		}

	case protocol.TypeError:
		var payload protocol.ErrorPayload
		if ev.Decode(&payload) == nil {
			color.Error.Println(payload.Message)
		}

	case protocol.TypeKicked:
		var payload protocol.KickedPayload
		if ev.Decode(&payload) == nil {
			color.Warn.Println(payload.Reason)
		}
		v.room = ""
		v.roster = nil
	}
}

func (v *view) printRoster(w io.Writer) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.room == "" {
		color.Warn.Println("Not in a room.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", v.room})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for i, identity := range v.roster {
		table.Append([]string{fmt.Sprint(i + 1), identity})
	}
	table.Render()
}
