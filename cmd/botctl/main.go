// Command botctl administers bots registered with botforge: bots, command
// tables, economy settings, the shop and webhook registration.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/botforge/botforge/internal/registry"
	"github.com/botforge/botforge/internal/repository"
	"github.com/botforge/botforge/internal/repository/postgres"
	"github.com/botforge/botforge/internal/repository/sqlite"
	"github.com/botforge/botforge/internal/telegram"
	"github.com/botforge/botforge/pkg/config"
	"github.com/botforge/botforge/pkg/logger"
)

// env is what every subcommand runs against.
type env struct {
	cfg      *config.Config
	registry *registry.Service
	log      *slog.Logger
	out      io.Writer
}

type subcommand struct {
	name  string
	usage string
	run   func(ctx context.Context, e *env, args []string) error
}

var subcommands = []subcommand{
	{"add-bot", "register a bot", addBot},
	{"list-bots", "list registered bots", listBots},
	{"add-command", "add a command to a bot", addCommand},
	{"delete-command", "delete a command", deleteCommand},
	{"set-mining", "save mining settings", setMining},
	{"add-item", "add a shop item", addItem},
	{"remove-item", "deactivate a shop item", removeItem},
	{"toggle-ai", "flip the AI fallback", toggleAI},
	{"set-gemini-key", "set the bot's Gemini API key", setGeminiKey},
	{"set-ton-wallet", "set the bot's TON wallet", setTONWallet},
	{"set-webhook", "register the webhook with Telegram", setWebhook},
	{"stats", "show analytics counts", stats},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "botctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(os.Stderr)
		return nil
	}

	cmd, ok := findSubcommand(args[0])
	if !ok {
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, _, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.NewWithWriter(*cfg, os.Stderr)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	e := &env{
		cfg:      cfg,
		registry: registry.NewService(store, nil, log),
		log:      log,
		out:      os.Stdout,
	}

	return cmd.run(ctx, e, args[1:])
}

func findSubcommand(name string) (subcommand, bool) {
	for _, c := range subcommands {
		if c.name == name {
			return c, true
		}
	}
	return subcommand{}, false
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: botctl <command> [flags]")
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, c := range subcommands {
		fmt.Fprintf(tw, "  %s\t%s\n", c.name, c.usage)
	}
	_ = tw.Flush()
}

func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (repository.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.DriverSQLite, "":
		store, err := sqlite.Open(cfg.Storage.SQLitePath, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SortFlags = false
	return fs
}

func requireBot(fs *pflag.FlagSet, botID int64) error {
	if botID <= 0 {
		return fmt.Errorf("%s: --bot is required", fs.Name())
	}
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func webhookClient(cfg config.TelegramConfig, token string, log *slog.Logger) (*telegram.Client, error) {
	return telegram.NewClient(cfg, strings.TrimSpace(token), log)
}
