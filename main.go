package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"draftling/internal/agent"
	"draftling/internal/applog"
	"draftling/internal/bridge"
	"draftling/internal/export"
	"draftling/internal/page"
	"draftling/internal/storage"
	"draftling/internal/tui"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "status":
			runStatus(os.Args[2:])
			return
		case "generate":
			runGenerate(os.Args[2:])
			return
		case "unload":
			runServiceAction(os.Args[2:], "unload", (*bridge.Client).UnloadModel)
			return
		case "cleanup":
			runServiceAction(os.Args[2:], "cleanup", (*bridge.Client).CleanupStorage)
			return
		case "shutdown":
			runServiceAction(os.Args[2:], "shutdown", (*bridge.Client).Shutdown)
			return
		case "history":
			runHistory(os.Args[2:])
			return
		case "export":
			runExport(os.Args[2:])
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}

	runAttach(os.Args[1:])
}

func printHelp() {
	fmt.Print(`draftling — AI reply suggestions for webmail pages

Usage:
  draftling                                Attach to the browser and start the dashboard
    --cdp <url>          Browser DevTools address (env: DRAFTLING_CDP, default: ws://127.0.0.1:9222)
    --service <url>      Reply service URL (env: DRAFTLING_SERVICE, default: http://127.0.0.1:8765)
    --tone <name>        Reply tone hint (env: DRAFTLING_TONE)
    --length <name>      Reply length hint (env: DRAFTLING_LENGTH)
    --headless           Run without the dashboard

  draftling status                         Print service health and memory use
  draftling generate                       Read an email from stdin, print suggestions
    --tone <name>        Reply tone hint
    --length <name>      Reply length hint

  draftling unload                         Ask the service to unload its model now
  draftling cleanup                        Ask the service to prune its stored data
  draftling shutdown                       Stop the reply service

  draftling history                        Show recent insertions
    --limit <n>          Number of entries (default: 20)
  draftling export                         Export the insert history
    --json               Export as JSON instead of markdown
    --out <file>         Output file path (default: stdout)

Environment:
  DRAFTLING_SERVICE     Reply service URL (overridden by --service flag)
  DRAFTLING_CDP         Browser DevTools address (overridden by --cdp flag)
  DRAFTLING_DATA_DIR    Data directory (default: ~/.local/share/draftling)
  DRAFTLING_TONE        Default reply tone (overridden by --tone flag)
  DRAFTLING_LENGTH      Default reply length (overridden by --length flag)
`)
}

// resolve returns the flag value if set, otherwise the environment
// variable, otherwise the default.
func resolve(flagValue, envVar, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return def
}

func serviceFlags(fs *flag.FlagSet) *string {
	return fs.String("service", "", "Reply service URL (env: DRAFTLING_SERVICE)")
}

func newClient(serviceFlag string) *bridge.Client {
	return bridge.New(resolve(serviceFlag, "DRAFTLING_SERVICE", "http://127.0.0.1:8765"))
}

func openDB() (*sql.DB, error) {
	dbPath, err := storage.DefaultDBPath()
	if err != nil {
		return nil, err
	}
	return storage.OpenDB(dbPath)
}

func runAttach(args []string) {
	fs := flag.NewFlagSet("draftling", flag.ExitOnError)
	cdpURL := fs.String("cdp", "", "Browser DevTools address (env: DRAFTLING_CDP)")
	service := serviceFlags(fs)
	tone := fs.String("tone", "", "Reply tone hint (env: DRAFTLING_TONE)")
	length := fs.String("length", "", "Reply length hint (env: DRAFTLING_LENGTH)")
	headless := fs.Bool("headless", false, "Run without the dashboard")
	fs.Parse(args)

	dataDir, err := storage.DefaultDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := applog.Init(dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer applog.Close()

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	browser, err := page.Connect(ctx, resolve(*cdpURL, "DRAFTLING_CDP", "ws://127.0.0.1:9222"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintln(os.Stderr, "Start the browser with --remote-debugging-port=9222 first.")
		os.Exit(1)
	}
	defer browser.Close()

	client := newClient(*service)
	mgr := agent.NewManager(browser, client, agent.Options{
		Tone:    resolve(*tone, "DRAFTLING_TONE", ""),
		Length:  resolve(*length, "DRAFTLING_LENGTH", ""),
		DB:      db,
		DataDir: dataDir,
	})

	go func() {
		if err := mgr.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			stop()
		}
	}()

	if *headless {
		<-ctx.Done()
		return
	}

	p := tea.NewProgram(tui.NewModel(mgr, client), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	service := serviceFlags(fs)
	fs.Parse(args)

	client := newClient(*service)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	h, err := client.Health(ctx)
	if err != nil {
		fmt.Println("service: offline")
		fmt.Fprintf(os.Stderr, "  %v\n", err)
		os.Exit(1)
	}

	fmt.Println("service: online")
	fmt.Printf("model installed: %v\n", h.HasModel)

	mem, err := client.MemoryStatus(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading memory status: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("model loaded: %v\n", mem.ModelLoaded)
	if mem.ModelLoaded {
		fmt.Printf("memory: %.0f MB\n", mem.MemoryMB)
		if mem.WillUnloadIn > 0 {
			fmt.Printf("unloads in: %s\n", (time.Duration(mem.WillUnloadIn) * time.Second).Round(time.Second))
		}
	}
}

func runGenerate(args []string) {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	service := serviceFlags(fs)
	tone := fs.String("tone", "", "Reply tone hint")
	length := fs.String("length", "", "Reply length hint")
	fs.Parse(args)

	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading stdin: %v\n", err)
		os.Exit(1)
	}
	text := strings.TrimSpace(string(input))
	if text == "" {
		fmt.Fprintln(os.Stderr, "Usage: draftling generate < email.txt")
		os.Exit(1)
	}

	client := newClient(*service)
	set := client.RequestSuggestions(context.Background(), text,
		resolve(*tone, "DRAFTLING_TONE", ""),
		resolve(*length, "DRAFTLING_LENGTH", ""))

	if !set.FromModel {
		fmt.Fprintln(os.Stderr, "(service unavailable, showing fallback suggestions)")
	}
	for i, item := range set.Items {
		fmt.Printf("%d. %s\n", i+1, item)
	}
}

func runServiceAction(args []string, name string, fn func(*bridge.Client, context.Context) error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	service := serviceFlags(fs)
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := fn(newClient(*service), ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("%s: ok\n", name)
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of entries")
	fs.Parse(args)

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	items, err := storage.History(db, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}
	if len(items) == 0 {
		fmt.Println("No insertions recorded.")
		return
	}

	for _, ins := range items {
		text := strings.Join(strings.Fields(ins.Text), " ")
		if len(text) > 60 {
			text = text[:60] + "…"
		}
		fmt.Printf("%s  %-9s  %-20s  %s\n",
			ins.CreatedAt.Format("2006-01-02 15:04"),
			ins.Delivery,
			ins.Host,
			text,
		)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "Export as JSON instead of markdown")
	outFile := fs.String("out", "", "Output file path (default: stdout)")
	limit := fs.Int("limit", 1000, "Number of entries")
	fs.Parse(args)

	db, err := openDB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	items, err := storage.History(db, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading history: %v\n", err)
		os.Exit(1)
	}

	var output string
	if *jsonFlag {
		output, err = export.JSON(items)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating JSON: %v\n", err)
			os.Exit(1)
		}
	} else {
		output = export.Markdown(items)
	}

	if *outFile != "" {
		if err := os.WriteFile(*outFile, []byte(output), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Print(output)
	}
}
