package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/example/rkvm-client/internal/config"
	"github.com/example/rkvm-client/internal/ipc"
	"github.com/example/rkvm-client/internal/logging"
	"github.com/example/rkvm-client/internal/service"
)

const usage = `Usage:
  rkvm-client [--config PATH] [--debug]
  rkvm-client watch [--socket PATH]
`

type options struct {
	command    string
	configPath string
	socket     string
	debug      bool
	help       bool
}

func main() {
	log.SetFlags(0)

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprint(os.Stderr, usage)
		log.Fatalf("%v", err)
	}
	if opts.help {
		fmt.Fprint(os.Stdout, usage)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.command {
	case "watch":
		err = watch(ctx, ipc.UnixEndpoint(opts.socket), os.Stdout)
	default:
		err = runClient(ctx, opts)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("%v", err)
	}
}

func parseArgs(args []string) (options, error) {
	opts := options{configPath: config.Path(), socket: ipc.DefaultEndpoint().Address}

	if len(args) > 0 && args[0] == "watch" {
		opts.command = "watch"
		fs := newFlagSet("watch")
		fs.StringVar(&opts.socket, "socket", opts.socket, "active state socket to observe")
		fs.BoolVarP(&opts.help, "help", "h", false, "show help")
		if err := fs.Parse(args[1:]); err != nil {
			return options{}, err
		}
		if fs.NArg() > 0 {
			return options{}, fmt.Errorf("unexpected argument: %s", fs.Arg(0))
		}
		return opts, nil
	}

	opts.command = "run"
	fs := newFlagSet("rkvm-client")
	fs.StringVar(&opts.configPath, "config", opts.configPath, "configuration file")
	fs.BoolVar(&opts.debug, "debug", false, "enable verbose logging")
	fs.BoolVarP(&opts.help, "help", "h", false, "show help")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unknown command: %s", fs.Arg(0))
	}
	return opts, nil
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func runClient(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.debug || cfg.Debug {
		logging.EnableDebug()
	}
	logging.Debugf("configuration loaded from %s", opts.configPath)

	svc, err := service.New(cfg)
	if err != nil {
		return err
	}
	return svc.Run(ctx)
}

// watch prints every line published on endpoint until the socket closes
// or ctx is cancelled.
func watch(ctx context.Context, endpoint ipc.Endpoint, out io.Writer) error {
	conn, err := endpoint.DialContext(ctx)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", endpoint.String(), err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(out, scanner.Text()); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scanner.Err()
}
