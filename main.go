package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/invopop/jsonschema"
	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/time/rate"

	"mapembed/pkg/game"
	"mapembed/pkg/notify"
	"mapembed/pkg/refresh"
	"mapembed/pkg/source"
	"mapembed/pkg/store"
	"mapembed/pkg/types"
)

func main() {
	setupLogging()

	if len(os.Args) > 1 {
		if err := handleCLI(os.Args[1:], os.Stdout); err != nil {
			ErrorLog.Fatal(err)
		}
		return
	}

	if err := runServer(); err != nil && !errors.Is(err, context.Canceled) {
		ErrorLog.Fatal(err)
	}
}

// --- CLI Logic ---

func handleCLI(args []string, out io.Writer) error {
	switch args[0] {
	case "battle":
		return runBattle(args[1:], out)
	case "schema":
		if len(args) > 1 {
			return writeSchemaFile(args[1])
		}
		return writeSchema(out)
	case "wipe":
		return runWipe(out)
	default:
		return fmt.Errorf("unknown command %q. Available commands: battle, schema, wipe", args[0])
	}
}

func runBattle(args []string, out io.Writer) error {
	if len(args) != 4 {
		return errors.New("usage: battle <attacker ships> <attacker weapons> <defender ships> <defender weapons>")
	}
	var n [4]int
	for i, arg := range args {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("invalid number %q", arg)
		}
		n[i] = v
	}

	battle, err := game.GuessBattle(n[0], n[1], n[2], n[3])
	if err != nil {
		return err
	}
	if battle.AttackerWins {
		fmt.Fprintf(out, "Attacker wins with %d ships left after %d ticks\n", battle.AttackerShipsRemaining, battle.LowestTicks)
	} else {
		fmt.Fprintf(out, "Defender wins with %d ships left after %d ticks\n", battle.DefenderShipsRemaining, battle.LowestTicks)
	}
	fmt.Fprintf(out, "Defender weapons with bonus: %d, extra defenders needed: %d\n", battle.DefenderWeaponsWithBonus, battle.DefenderShipsNeeded)
	return nil
}

func buildSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(new(types.APIResponse))
	schema.Title = "NP-Scanner merged snapshot"
	schema.Description = "Scanning data document served by the scanner and the game API"
	return schema
}

func writeSchema(out io.Writer) error {
	data, err := json.MarshalIndent(buildSchema(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	_, err = out.Write(append(data, '\n'))
	return err
}

func writeSchemaFile(outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create schema file: %w", err)
	}
	defer f.Close()
	return writeSchema(f)
}

func runWipe(out io.Writer) error {
	c, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openArchive(c.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := wipeMatch(st, c.GameNumber); err != nil {
		return err
	}
	fmt.Fprintf(out, "Match %s will ask again on next start.\n", c.GameNumber)
	return nil
}

func openArchive(path string) (*store.Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	st, err := store.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	os.Chmod(path, 0600)
	return st, nil
}

// --- Server ---

func runServer() error {
	var err error
	if cfg, err = loadConfig(); err != nil {
		return err
	}
	if cfg.APIKey == "" {
		return errors.New("MAPEMBED_API_KEY is required to load the host galaxy")
	}

	if archive, err = openArchive(cfg.DBPath); err != nil {
		return err
	}
	defer archive.Close()

	match, err := promptMatch(os.Stdin, os.Stdout, archive, cfg.GameNumber)
	if err != nil {
		return err
	}

	InfoLog.Println("MAPEMBED BOOT SEQUENCE")
	InfoLog.Printf("Game: %s | Scanner: %v", cfg.GameNumber, match.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer shutdownTracing(context.Background())

	httpClient := &http.Client{Timeout: 30 * time.Second}
	gameClient := source.NewGameClient(cfg.GameAPI, httpClient)
	hostRequest := &source.Request{GameNumber: cfg.GameNumber, APIKey: cfg.APIKey}

	hub = NewHub(galaxyExport)
	go hub.Run(ctx)

	if err := reloadHost(ctx, gameClient, hostRequest); err != nil {
		ErrorLog.Printf("Initial host load failed: %v", err)
	}
	go runHostFeed(ctx, gameClient, hostRequest, cfg.HostPoll)

	if match.Enabled {
		m := newMerger(
			source.NewScannerClient(match.URL, httpClient),
			&source.Request{GameNumber: cfg.GameNumber, APIKey: match.Code},
		)
		if cfg.DiscordWebhook != "" {
			m.notifier = &notify.Notifier{
				Guard:   archive,
				Sinks:   []notify.Sink{notify.NewDiscordSink(cfg.DiscordWebhook, httpClient)},
				Limiter: rate.NewLimiter(rate.Every(time.Second), 1),
			}
			InfoLog.Println("Threat notifications go to Discord")
		}
		loop := &refresh.Loop{
			Clock:    galaxy.Now,
			Pass:     m.pass,
			Interval: cfg.Poll,
			Logger:   ErrorLog,
		}
		go loop.Run(ctx)
	} else {
		InfoLog.Println("Scanner disabled for this match; run 'wipe' to be asked again.")
	}

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	InfoLog.Printf("Listening on %s", cfg.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return ctx.Err()
}
