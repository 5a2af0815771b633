package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/backup"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/server"
)

var ErrUsage = errors.New("usage error")

const usage = `usage: vosctl [config flags] <command> [args]

commands:
  set-password <user>      set a user's app password (prompted)
  set-api-key <user>       set or clear a user's AssemblyAI key (prompted)
  migrate                  upgrade stored records and legacy passwords
  sessions                 list live sessions
  end-session <user>       end a user's session
  reset-usage              force the daily quota reset
  health                   print quota ledger health
  backup                   upload every document to the S3 bucket
  pg-import                copy the file documents into PostgreSQL
  lock [holder]            enter maintenance mode (store becomes read-only)
  unlock                   leave maintenance mode`

// newPutter is a test seam for the S3 client.
var newPutter = func(ctx context.Context, c backup.Config) (backup.Putter, error) {
	return backup.NewS3Client(ctx, c)
}

type App struct {
	core   *server.Core
	logger logging.Logger
	in     *bufio.Reader
	out    io.Writer
}

func NewApp(core *server.Core, l logging.Logger, in io.Reader, out io.Writer) *App {
	return &App{
		core:   core,
		logger: l.With("module", "vosctl"),
		in:     bufio.NewReader(in),
		out:    out,
	}
}

// Run executes one command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "set-password":
		return a.withUser(rest, func(u string) error { return a.setPassword(ctx, u) })
	case "set-api-key":
		return a.withUser(rest, func(u string) error { return a.setAPIKey(ctx, u) })
	case "migrate":
		return a.migrate(ctx)
	case "sessions":
		return a.sessions(ctx)
	case "end-session":
		return a.withUser(rest, func(u string) error { return a.endSession(ctx, u) })
	case "reset-usage":
		return a.resetUsage(ctx)
	case "health":
		return a.health(ctx)
	case "backup":
		return a.backup(ctx)
	case "pg-import":
		return a.pgImport(ctx)
	case "lock":
		holder := "vosctl"
		if len(rest) > 0 {
			holder = strings.Join(rest, " ")
		}
		return a.lock(ctx, holder)
	case "unlock":
		return a.unlock(ctx)
	case "help", "-h", "--help":
		fmt.Fprintln(a.out, usage)
		return nil
	default:
		fmt.Fprintln(a.out, "Unknown command:", cmd)
		fmt.Fprintln(a.out, usage)
		return ErrUsage
	}
}

// withUser runs fn with the single username operand. Usernames may contain
// spaces, so all operands are joined.
func (a *App) withUser(rest []string, fn func(string) error) error {
	username := strings.TrimSpace(strings.Join(rest, " "))
	if username == "" {
		fmt.Fprintln(a.out, "a username is required")
		return ErrUsage
	}
	return fn(username)
}
