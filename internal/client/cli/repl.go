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
	Status(ctx context.Context) error
	Checkout(ctx context.Context, args []string) error
	Checkin(ctx context.Context) error
	Discard(ctx context.Context) error
	Sync(ctx context.Context) error
	Queue(ctx context.Context) error
	Retry(ctx context.Context, args []string) error
	List(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Notes(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
}

// runREPL starts a simple read-eval-print loop.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF or when the user
// types "exit" or "quit".
//
//	Not logged in:
//	  - help             show available commands
//	  - login            authenticate
//	  - status           show connectivity and checkout state
//	  - exit | quit      leave the program
//
//	Logged in, additionally:
//	  - checkout [rig]   enter offline mode for a rig
//	  - checkin          sync everything and leave offline mode
//	  - discard          leave offline mode dropping unsynced changes
//	  - sync             drain the sync queue once
//	  - queue            show sync queue counts and failed operations
//	  - retry <id|all>   retry a failed operation
//	  - (l)ist           list checked-out DWRs
//	  - show <id>        show a DWR with its children
//	  - notes <id>       edit a DWR's notes
//	  - delete <id>      delete a DWR
//	  - logout           log out
//
// Errors returned by command handlers are ignored here; handlers report
// their own errors.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("dwr %s > ", statusFn()))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		if !a.isLoggedIn() {
			switch cmd {
			case "help":
				printlnFn("Available commands: login, status, exit")
			case "login":
				_ = a.Login(ctx)
			case "status":
				_ = a.Status(ctx)
			case "exit", "quit":
				printlnFn("Bye!")
				return
			default:
				printlnFn("Please log in first (unknown or restricted command:", cmd+")")
			}
			continue
		}

		switch cmd {
		case "help":
			printlnFn("Available commands: status, checkout [rig], checkin, discard, sync, queue, retry <id|all>, (l)ist, show <id>, notes <id>, delete <id>, logout, exit")

		case "login":
			_ = a.Login(ctx)

		case "status":
			_ = a.Status(ctx)

		case "checkout":
			_ = a.Checkout(ctx, args)

		case "checkin":
			_ = a.Checkin(ctx)

		case "discard":
			_ = a.Discard(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "queue":
			_ = a.Queue(ctx)

		case "retry":
			_ = a.Retry(ctx, args)

		case "l", "list":
			_ = a.List(ctx)

		case "show":
			_ = a.Show(ctx, args)

		case "notes":
			_ = a.Notes(ctx, args)

		case "delete":
			_ = a.Delete(ctx, args)

		case "logout":
			_ = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
