package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/parley-chat/parley/internal/client"
	"github.com/parley-chat/parley/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:65432", "chat server address")
	username := flag.String("user", "", "username to authenticate as")
	password := flag.String("pass", "", "password (falls back to PARLEY_PASSWORD)")
	flag.Parse()

	if *username == "" {
		log.Fatal("a username is required (-user)")
	}
	secret := *password
	if secret == "" {
		secret = os.Getenv("PARLEY_PASSWORD")
	}
	if secret == "" {
		log.Fatal("a password is required (-pass or PARLEY_PASSWORD)")
	}

	c, err := client.Dial(*addr, *username, secret)
	if err != nil {
		log.Fatalf("Connecting: %v", err)
	}

	fmt.Printf("Connected to %s as %s. Type /quit to leave.\n", *addr, *username)

	// The read loop and the terminal are decoupled: frames arrive on the
	// client's channel and only this goroutine renders them.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for frame := range c.Incoming() {
			render(frame)
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			_ = c.Quit()
			break
		}
		if err := c.Send(line); err != nil {
			log.Printf("Send failed: %v", err)
			break
		}
	}

	_ = c.Close()
	<-done
	fmt.Println("Disconnected.")
}

func render(frame *protocol.Frame) {
	switch frame.Type {
	case protocol.TypeChat:
		fmt.Printf("[%s] %s: %s\n", frame.Body["timestamp"], frame.Body["from"], frame.Body["text"])
	case protocol.TypeSystem:
		fmt.Printf("* %s\n", frame.Body["text"])
	case protocol.TypeUserList:
		fmt.Printf("* online: %s\n", frame.Body["users"])
	case protocol.TypeDisconnect:
		reason := frame.Body["reason"]
		if reason == "" {
			reason = "closed by server"
		}
		fmt.Printf("* disconnected: %s\n", reason)
	}
}
