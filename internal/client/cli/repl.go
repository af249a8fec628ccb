package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Sync(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Users(ctx context.Context) error
	UpdateProfile(ctx context.Context) error
	UpdateUser(ctx context.Context) error
	Export(ctx context.Context, args []string) error
	Queue(ctx context.Context) error
	DeadLetters(ctx context.Context) error
	Drain(ctx context.Context, args []string) error
	Retry(ctx context.Context, args []string) error
	Requeue(ctx context.Context, args []string) error
	Metrics(ctx context.Context, args []string) error
	Purge(ctx context.Context, args []string) error
	PurgeLogs(ctx context.Context) error
}

const (
	helpLoggedOut = "Available commands: login, queue, dead, drain, retry <id>, requeue <id>, purge-logs, exit"
	helpLoggedIn  = "Available commands: sync [user], show [user], users, update-profile, update-user, export [user], " +
		"queue, dead, drain [high], retry <id>, requeue <id>, metrics [user], purge [user], purge-logs, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the offlinekit CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and the rest as its arguments, and dispatches to methods on 'a'.
// Errors returned by handlers are printed and the loop continues. The loop
// exits on scanner EOF or when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("offlinekit %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpLoggedIn)
			} else {
				printlnFn(helpLoggedOut)
			}

		case "login":
			err = a.Login(ctx)
		case "logout":
			err = a.Logout(ctx)

		case "sync":
			err = a.Sync(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "users":
			err = a.Users(ctx)
		case "update-profile":
			err = a.UpdateProfile(ctx)
		case "update-user":
			err = a.UpdateUser(ctx)
		case "export":
			err = a.Export(ctx, args)

		case "queue":
			err = a.Queue(ctx)
		case "dead":
			err = a.DeadLetters(ctx)
		case "drain":
			err = a.Drain(ctx, args)
		case "retry":
			err = a.Retry(ctx, args)
		case "requeue":
			err = a.Requeue(ctx, args)

		case "metrics":
			err = a.Metrics(ctx, args)
		case "purge":
			err = a.Purge(ctx, args)
		case "purge-logs":
			err = a.PurgeLogs(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("error:", err)
		}
	}
}
