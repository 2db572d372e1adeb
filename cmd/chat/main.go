package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"pairchat/internal/api"
	"pairchat/internal/config"
	"pairchat/internal/history"
	"pairchat/internal/models"
	"pairchat/internal/session"
	"pairchat/internal/transport"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	server := flag.String("server", cfg.ServerURL, "chat server base URL")
	username := flag.String("user", "", "username to log in as")
	password := flag.String("pass", "", "password")
	peer := flag.String("peer", "", "username to chat with (empty lists users)")
	flag.Parse()

	if *username == "" || *password == "" {
		log.Fatal("both -user and -pass are required")
	}

	ctx := context.Background()
	rest := api.NewClient(*server)

	login, err := rest.Login(ctx, *username, *password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	users, err := rest.ListUsers(ctx, login.Token)
	if err != nil {
		log.Fatalf("list users: %v", err)
	}

	if *peer == "" {
		fmt.Println("users:")
		for _, u := range users {
			fmt.Printf("  %s (%s)\n", u.Username, u.DisplayName)
		}
		return
	}

	var peerUser models.User
	for _, u := range users {
		if u.Username == *peer {
			peerUser = u
			break
		}
	}
	if peerUser.ID == "" {
		log.Fatalf("no such user: %s", *peer)
	}

	gateway := transport.NewWebSocketGateway(wsURL(*server), login.Token)
	fetcher := history.NewClient(*server, login.Token)

	printer := &printer{self: login.User.ID, seen: make(map[string]models.Status)}

	var coord *session.Coordinator
	coord = session.NewCoordinator(session.Config{
		SelfID:         login.User.ID,
		PeerID:         peerUser.ID,
		DisplayName:    login.User.DisplayName,
		PendingTimeout: cfg.PendingTimeout,
		OnUpdate: func() {
			printer.render(coord.Snapshot())
		},
	}, gateway, fetcher)

	if err := coord.Start(ctx); err != nil {
		log.Fatalf("session start: %v", err)
	}
	defer coord.Stop()

	fmt.Printf("chatting with %s (type a message, /quit to exit)\n", peerUser.DisplayName)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "/quit" {
			return
		}
		if _, err := coord.Send(line); err != nil {
			fmt.Printf("! %v (state: %s)\n", err, coord.State())
		}
	}
}

// printer renders timeline changes incrementally: new entries once, then
// status transitions as the server echo promotes them.
type printer struct {
	mu   sync.Mutex
	self string
	seen map[string]models.Status
}

func (p *printer) render(msgs []models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range msgs {
		prev, ok := p.seen[m.ID]
		if ok && prev == m.Status {
			continue
		}
		p.seen[m.ID] = m.Status
		who := "them"
		if m.SenderID == p.self {
			who = "you"
		}
		if !ok {
			fmt.Printf("[%s] %s: %s (%s)\n", m.Timestamp.Format("15:04:05"), who, m.Text, m.Status)
		} else {
			fmt.Printf("  * %q is now %s\n", m.Text, m.Status)
		}
	}
}

func wsURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://") + "/ws"
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://") + "/ws"
	default:
		return base + "/ws"
	}
}
