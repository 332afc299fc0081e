package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mattjoyce/octox/internal/app"
	"github.com/mattjoyce/octox/internal/config"
	"github.com/mattjoyce/octox/internal/credential"
	"github.com/mattjoyce/octox/internal/delivery"
	"github.com/mattjoyce/octox/internal/github"
	"github.com/mattjoyce/octox/internal/log"
	"github.com/mattjoyce/octox/internal/storage"
	"github.com/mattjoyce/octox/internal/workflow/helloworld"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage(os.Stderr)
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	// --- NOUNS ---
	case "system":
		return runSystemNoun(args)
	case "delivery":
		return runDeliveryNoun(args)

	// --- ROOT ACTIONS ---
	case "start":
		return runStart(args)
	case "token":
		return runToken(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage(os.Stderr)
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `octox - GitHub App webhook workflow runner

Usage:
  octox <noun> <action> [flags]

System Commands:
  system start      Start the webhook server in foreground
  system health     Check that GitHub accepts the app credentials

Delivery Commands:
  delivery list     Show recent webhook deliveries

General:
  start             Alias for system start
  token             Print a fresh app JWT
  version           Show version information
  help              Show this help message

Settings come from flags, then the environment (OCTOX_APP_ID,
OCTOX_PRIVATE_KEY, OCTOX_PRIVATE_KEY_PATH, OCTOX_WEBHOOK_SECRET,
OCTOX_GITHUB_HOST, OCTOX_ADDRESS, OCTOX_LOG_LEVEL, OCTOX_DB).
Use --config to load a YAML file; flags override its values.
`)
}

func isHelpToken(token string) bool {
	return token == "help" || token == "--help" || token == "-h"
}

// --- NOUN DISPATCHERS ---

func runSystemNoun(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: octox system <action>")
		fmt.Fprintln(os.Stderr, "Actions: start, health")
		return 1
	}
	if isHelpToken(args[0]) {
		fmt.Println("Usage: octox system <action>")
		fmt.Println("Actions: start, health")
		return 0
	}

	switch args[0] {
	case "start":
		return runStart(args[1:])
	case "health":
		return runHealth(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown system action: %s\n", args[0])
		return 1
	}
}

func runDeliveryNoun(args []string) int {
	if len(args) < 1 || isHelpToken(args[0]) {
		fmt.Println("Usage: octox delivery list [--db PATH] [--limit N] [--json]")
		if len(args) < 1 {
			return 1
		}
		return 0
	}

	switch args[0] {
	case "list":
		return runDeliveryList(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown delivery action: %s\n", args[0])
		return 1
	}
}

// --- SETTINGS ---

// settingsFlags are the flags shared by every command that talks to GitHub.
type settingsFlags struct {
	configPath string
	explicit   config.File
}

func bindSettingsFlags(fs *flag.FlagSet) *settingsFlags {
	f := &settingsFlags{}
	fs.StringVar(&f.configPath, "config", "", "Path to a YAML configuration file")
	fs.StringVar(&f.explicit.GitHub.Host, "github-host", "", "GitHub API base URL")
	fs.StringVar(&f.explicit.GitHub.AppID, "app-id", "", "GitHub App id")
	fs.StringVar(&f.explicit.GitHub.PrivateKey, "private-key", "", "App private key (PEM text)")
	fs.StringVar(&f.explicit.GitHub.PrivateKeyPath, "private-key-path", "", "Path to the app private key")
	fs.StringVar(&f.explicit.GitHub.WebhookSecret, "webhook-secret", "", "Webhook shared secret")
	fs.StringVar(&f.explicit.Server.Listen, "listen", "", "Listen address (host:port)")
	fs.StringVar(&f.explicit.Log.Level, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.explicit.State.Path, "db", "", "SQLite delivery log path")
	return f
}

func (f *settingsFlags) resolver() (*config.Resolver, error) {
	explicit := f.explicit
	if f.configPath != "" {
		file, err := config.Load(f.configPath)
		if err != nil {
			return nil, err
		}
		explicit = file.Merge(f.explicit)
	}
	return config.NewResolver(explicit, nil), nil
}

// reportSettingsError separates a missing or invalid setting from a config
// file that could not be read.
func reportSettingsError(err error) {
	if config.IsConfigurationError(err) {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		return
	}
	fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
}

// --- ACTIONS ---

func runStart(args []string) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	sf := bindSettingsFlags(fs)
	if err := fs.Parse(args); err != nil {
		return flagErrorCode(err)
	}

	r, err := sf.resolver()
	if err != nil {
		reportSettingsError(err)
		return 1
	}
	settings, err := r.Resolve()
	if err != nil {
		reportSettingsError(err)
		return 1
	}

	log.Setup(settings.LogLevel, settings.LogFormat)
	logger := log.WithComponent("main")
	logger.Info("octox starting", "version", version, "listen", settings.Listen)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, settings, helloworld.New)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		return 1
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server stopped", "error", err)
		return 1
	}
	logger.Info("octox stopped")
	return 0
}

func appClient(sf *settingsFlags) (*credential.Store, *github.Client, error) {
	r, err := sf.resolver()
	if err != nil {
		return nil, nil, err
	}
	host, id, key, err := r.AppCredentials()
	if err != nil {
		return nil, nil, err
	}
	store := credential.NewStore(host, id, key)
	client := github.NewClient(host, store, github.WithUserAgent("octox/"+currentVersionInfo().Version))
	return store, client, nil
}

func runHealth(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	sf := bindSettingsFlags(fs)
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return flagErrorCode(err)
	}

	_, client, err := appClient(sf)
	if err != nil {
		reportSettingsError(err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	status := map[string]string{"github": "ok"}
	code := 0
	ghApp, err := client.App(ctx)
	if err != nil {
		status["github"] = err.Error()
		code = 1
	} else {
		status["app"] = ghApp.Slug
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(data))
		return code
	}
	if code != 0 {
		fmt.Fprintf(os.Stderr, "github: %s\n", status["github"])
		return code
	}
	fmt.Printf("github: ok (app %s)\n", status["app"])
	return 0
}

func runToken(args []string) int {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	sf := bindSettingsFlags(fs)
	jsonOut := fs.Bool("json", false, "Output token and expiry as JSON")
	if err := fs.Parse(args); err != nil {
		return flagErrorCode(err)
	}

	store, _, err := appClient(sf)
	if err != nil {
		reportSettingsError(err)
		return 1
	}
	tok, err := store.CurrentToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to mint token: %v\n", err)
		return 1
	}

	if *jsonOut {
		data, _ := json.MarshalIndent(map[string]string{
			"token":      tok.Value,
			"expires_at": tok.ExpiresAt.UTC().Format(time.RFC3339),
		}, "", "  ")
		fmt.Println(string(data))
		return 0
	}
	fmt.Println(tok.Value)
	return 0
}

type deliveryView struct {
	ID         string `json:"id"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Event      string `json:"event"`
	Status     string `json:"status"`
	HTTPStatus int    `json:"http_status"`
	Error      string `json:"error,omitempty"`
	Digest     string `json:"payload_digest"`
	CreatedAt  string `json:"created_at"`
	DurationMS int64  `json:"duration_ms"`
}

func runDeliveryList(args []string) int {
	fs := flag.NewFlagSet("delivery list", flag.ContinueOnError)
	sf := bindSettingsFlags(fs)
	limit := fs.Int("limit", 20, "Number of deliveries to show")
	jsonOut := fs.Bool("json", false, "Output as JSON")
	if err := fs.Parse(args); err != nil {
		return flagErrorCode(err)
	}

	r, err := sf.resolver()
	if err != nil {
		reportSettingsError(err)
		return 1
	}
	path := r.DBPath()
	if path == "" {
		fmt.Fprintf(os.Stderr, "No delivery log configured (use --db or %s)\n", config.EnvDB)
		return 1
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open delivery log: %v\n", err)
		return 1
	}
	defer db.Close()

	recs, err := delivery.New(db).Recent(ctx, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list deliveries: %v\n", err)
		return 1
	}

	views := make([]deliveryView, 0, len(recs))
	for _, rec := range recs {
		views = append(views, deliveryView{
			ID:         rec.ID,
			DeliveryID: rec.DeliveryID,
			Event:      rec.Event,
			Status:     string(rec.Status),
			HTTPStatus: rec.HTTPStatus,
			Error:      rec.Error,
			Digest:     rec.PayloadDigest,
			CreatedAt:  rec.CreatedAt.UTC().Format(time.RFC3339),
			DurationMS: rec.Duration.Milliseconds(),
		})
	}

	if *jsonOut {
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	if len(views) == 0 {
		fmt.Println("No deliveries recorded.")
		return 0
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CREATED\tEVENT\tSTATUS\tHTTP\tDELIVERY\tERROR")
	for _, v := range views {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", v.CreatedAt, v.Event, v.Status, v.HTTPStatus, v.DeliveryID, v.Error)
	}
	_ = tw.Flush()
	return 0
}

func flagErrorCode(err error) int {
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	return 1
}

// --- VERSION ---

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		return flagErrorCode(err)
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("octox %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    "unknown",
		BuildTime: "unknown",
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	commit := strings.TrimSpace(gitCommit)
	if commit == "" || commit == "unknown" {
		commit = readBuildSetting("vcs.revision")
	}
	if commit != "" {
		if len(commit) > 12 {
			commit = commit[:12]
		}
		info.Commit = commit
	}

	built := strings.TrimSpace(buildDate)
	if built == "" || built == "unknown" {
		built = readBuildSetting("vcs.time")
	}
	if t, err := time.Parse(time.RFC3339Nano, built); err == nil {
		info.BuildTime = t.UTC().Format(time.RFC3339)
	}
	return info
}

func readBuildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return strings.TrimSpace(setting.Value)
		}
	}
	return ""
}
