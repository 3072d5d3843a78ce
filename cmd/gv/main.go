// Command gv is a local-first password vault replicated across a local file,
// a hosted git repository and an S3 bucket.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/goph-vault/internal/config"
	"github.com/and161185/goph-vault/internal/logging"
	"github.com/and161185/goph-vault/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

var errUsage = errors.New("usage")

// app carries process wiring so commands stay testable.
type app struct {
	cfgPath string
	in      io.Reader
	lines   *bufio.Reader // wraps in; shared by every prompt of one run
	out     io.Writer
	errOut  io.Writer
	log     *zap.Logger

	// interactive reports whether secrets can be prompted for without echo.
	interactive func() bool
	// open builds the vault service; replaced in tests.
	open func(ctx context.Context, cfg config.Config, log *zap.Logger) (service.VaultService, error)
}

func newApp() *app {
	return &app{
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		interactive: stdinIsTerminal,
		open: func(ctx context.Context, cfg config.Config, log *zap.Logger) (service.VaultService, error) {
			return service.NewManager(ctx, cfg, service.WithLogger(log))
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	a := newApp()
	err := a.run(ctx, os.Args[1:])
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		a.usage()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) usage() {
	fmt.Fprint(a.errOut, `gv - password vault
Usage:
  gv [-config file] <cmd> [args]

Commands:
  version
  init     [-key K] [-force]                      set the master passphrase
  add      -title T [-desc D] [-tags a,b] [-user U] [-url URL]
           [-password P | -gen [-len N]] [-key K]
  edit     -id ID [-title T] [-desc D] [-tags a,b] [-user U] [-url URL] [-password P -key K]
  rm       -id ID
  search   [-q QUERY] [-target all|local|remote|object]
  list     [-target all|local|remote|object]
  show     -id ID [-target T] [-key K]            decrypt and print one password
  gen      [-len N] [-no-upper] [-no-lower] [-no-digits] [-no-symbols] [-exclude CHARS]
  status
  resync   -target T
  copy     -from T -to T
  purge    -target T -yes
`)
}

// run parses global flags and dispatches one subcommand.
func (a *app) run(ctx context.Context, args []string) error {
	a.lines = bufio.NewReader(a.in)
	fs := flag.NewFlagSet("gv", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	fs.StringVar(&a.cfgPath, "config", config.DefaultPath(), "config file")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	cmd, rest := fs.Arg(0), fs.Args()[1:]

	if cmd == "version" {
		fmt.Fprintf(a.out, "gv %s (%s)\n", version, buildDate)
		return nil
	}

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.log == nil {
		log, err := logging.New(cfg.Settings.LogLevel)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()
		a.log = log
	}
	a.log.Debug("command", zap.String("cmd", cmd), zap.String("config", a.cfgPath))

	handlers := map[string]func(context.Context, service.VaultService, []string) error{
		"init":   a.cmdInit,
		"add":    a.cmdAdd,
		"edit":   a.cmdEdit,
		"rm":     a.cmdRemove,
		"search": a.cmdSearch,
		"list":   a.cmdList,
		"show":   a.cmdShow,
		"gen":    a.cmdGenerate,
		"status": a.cmdStatus,
		"resync": a.cmdResync,
		"copy":   a.cmdCopy,
		"purge":  a.cmdPurge,
	}
	h, ok := handlers[cmd]
	if !ok {
		return errUsage
	}
	svc, err := a.open(ctx, cfg, a.log)
	if err != nil {
		return err
	}
	return h(ctx, svc, rest)
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
