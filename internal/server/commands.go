package server

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parley-chat/parley/internal/protocol"
	"github.com/parley-chat/parley/internal/store"
)

// command is one entry of the closed admin command set. Adding a command
// means adding a table entry and a handler, nothing else.
type command struct {
	usage     string
	help      string
	minArgs   int
	adminOnly bool
	// targeted commands name a user in their first argument; the issuer may
	// not target themselves or another admin.
	targeted bool
	run      func(s *Server, issuer *Session, args []string)
}

// commandTable is populated in init: cmdHelp renders the table, so a direct
// package-level literal would form an initialization cycle.
var commandTable map[string]command

func init() {
	commandTable = map[string]command{
		"/kick": {
			usage:     "/kick <username>",
			help:      "Kick a user from the chat.",
			minArgs:   1,
			adminOnly: true,
			targeted:  true,
			run:       (*Server).cmdKick,
		},
		"/ban": {
			usage:     "/ban <username> [reason]",
			help:      "Ban a user from reconnecting.",
			minArgs:   1,
			adminOnly: true,
			targeted:  true,
			run:       (*Server).cmdBan,
		},
		"/unban": {
			usage:     "/unban <username>",
			help:      "Unban a user.",
			minArgs:   1,
			adminOnly: true,
			targeted:  true,
			run:       (*Server).cmdUnban,
		},
		"/mute": {
			usage:     "/mute <username> <duration>",
			help:      "Temporarily mute a user (e.g. 60, 90s, 2m, 1h).",
			minArgs:   2,
			adminOnly: true,
			targeted:  true,
			run:       (*Server).cmdMute,
		},
		"/help": {
			usage: "/help",
			help:  "Show available commands.",
			run:   (*Server).cmdHelp,
		},
	}
}

// handleCommand dispatches one slash command line. Every outcome, including
// rejection, is reported to the issuer only; moderation announcements are
// made by the individual handlers.
func (s *Server) handleCommand(issuer *Session, line string) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return
	}

	name := strings.ToLower(parts[0])
	cmd, ok := commandTable[name]
	if !ok {
		s.systemTo(issuer, "Unknown command. Use /help.")
		return
	}

	if cmd.adminOnly && !issuer.IsAdmin() {
		s.systemTo(issuer, "You are not authorized to use "+name+".")
		return
	}

	args := parts[1:]
	if len(args) < cmd.minArgs {
		s.systemTo(issuer, "Usage: "+cmd.usage)
		return
	}

	if cmd.targeted {
		verb := strings.TrimPrefix(name, "/")
		target := args[0]
		if target == issuer.Username {
			s.systemTo(issuer, fmt.Sprintf("You cannot %s yourself.", verb))
			return
		}
		if rec, err := s.users.Lookup(target); err == nil && store.NormalizeRole(rec.Role) == store.RoleAdmin {
			s.systemTo(issuer, fmt.Sprintf("You cannot %s another admin.", verb))
			return
		}
	}

	cmd.run(s, issuer, args)
}

func (s *Server) cmdKick(issuer *Session, args []string) {
	target := args[0]
	sess, ok := s.registry.FindByUsername(target)
	if !ok {
		s.systemTo(issuer, fmt.Sprintf("User %q is not online.", target))
		return
	}

	s.broadcaster.SendTo(sess.ID, protocol.Disconnect("kicked by "+issuer.Username))
	s.broadcastSystem(fmt.Sprintf("%s was kicked by [ADMIN] %s", target, issuer.Username))

	// Deregistering closes the send queue; the write pump drains the queued
	// notices and then releases the socket.
	s.registry.Deregister(sess.ID)
	s.moderation.ClearMute(sess.ID)
	s.broadcastUserList()

	log.Printf("[ADMIN] %s kicked %s", issuer.Username, target)
}

func (s *Server) cmdBan(issuer *Session, args []string) {
	target := args[0]
	reason := strings.Join(args[1:], " ")

	if _, err := s.users.Lookup(target); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.systemTo(issuer, fmt.Sprintf("Cannot ban %q: user does not exist.", target))
		} else {
			s.systemTo(issuer, "Ban failed: user store unavailable.")
			log.Printf("[ADMIN] ban %s: user lookup: %v", target, err)
		}
		return
	}

	if err := s.moderation.Ban(target, reason); err != nil {
		s.systemTo(issuer, fmt.Sprintf("Cannot ban %q: persistence failed.", target))
		log.Printf("[ADMIN] ban %s: %v", target, err)
		return
	}

	if sess, ok := s.registry.FindByUsername(target); ok {
		s.broadcaster.SendTo(sess.ID, protocol.Disconnect("banned by "+issuer.Username))
		s.registry.Deregister(sess.ID)
		s.moderation.ClearMute(sess.ID)
	}

	s.broadcastSystem(fmt.Sprintf("%q was banned by [ADMIN] %s", target, issuer.Username))
	s.broadcastUserList()

	log.Printf("[ADMIN] %s banned %s (reason: %s)", issuer.Username, target, reason)
}

func (s *Server) cmdUnban(issuer *Session, args []string) {
	target := args[0]

	was, err := s.moderation.Unban(target)
	if err != nil {
		s.systemTo(issuer, fmt.Sprintf("Cannot unban %q: persistence failed.", target))
		log.Printf("[ADMIN] unban %s: %v", target, err)
		return
	}
	if !was {
		s.systemTo(issuer, fmt.Sprintf("Cannot unban %q: user is not banned.", target))
		return
	}

	s.broadcastSystem(fmt.Sprintf("%q has been unbanned by [ADMIN] %s.", target, issuer.Username))
	log.Printf("[ADMIN] %s unbanned %s", issuer.Username, target)
}

func (s *Server) cmdMute(issuer *Session, args []string) {
	target := args[0]
	sess, ok := s.registry.FindByUsername(target)
	if !ok {
		s.systemTo(issuer, fmt.Sprintf("Cannot mute %q: user is not online.", target))
		return
	}

	d, err := parseMuteDuration(args[1])
	if err != nil {
		s.systemTo(issuer, "Invalid duration. Use seconds or 90s, 2m, 1h.")
		return
	}

	s.moderation.Mute(sess.ID, d)
	s.broadcaster.SendTo(sess.ID, protocol.System(fmt.Sprintf("You have been muted for %s.", d)))
	s.broadcastSystem(fmt.Sprintf("%q has been muted by [ADMIN] %s for %s.", target, issuer.Username, d))

	log.Printf("[ADMIN] %s muted %s for %s", issuer.Username, target, d)
}

func (s *Server) cmdHelp(issuer *Session, _ []string) {
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names)+1)
	lines = append(lines, "Available commands:")
	for _, name := range names {
		cmd := commandTable[name]
		lines = append(lines, fmt.Sprintf("%s: %s Usage: %s", name, cmd.help, cmd.usage))
	}
	s.systemTo(issuer, strings.Join(lines, "\n"))
}

// parseMuteDuration accepts a bare number of seconds or a Go duration
// string. The result is always positive.
func parseMuteDuration(value string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, fmt.Errorf("non-positive duration %d", seconds)
		}
		return time.Duration(seconds) * time.Second, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %s", d)
	}
	return d, nil
}
