package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lotas/tabgruppen/internal/ai"
	"github.com/lotas/tabgruppen/internal/applog"
	"github.com/lotas/tabgruppen/internal/config"
	"github.com/lotas/tabgruppen/internal/dispatch"
	"github.com/lotas/tabgruppen/internal/engine"
	"github.com/lotas/tabgruppen/internal/firefox"
	"github.com/lotas/tabgruppen/internal/grouping"
	"github.com/lotas/tabgruppen/internal/ledger"
	"github.com/lotas/tabgruppen/internal/pageinfo"
	"github.com/lotas/tabgruppen/internal/server"
	"github.com/lotas/tabgruppen/internal/storage"
	"github.com/lotas/tabgruppen/internal/tui"
	"github.com/lotas/tabgruppen/internal/types"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "plan":
			runPlan(os.Args[2:])
			return
		case "history":
			runHistory(os.Args[2:])
			return
		case "config":
			runConfig(os.Args[2:])
			return
		case "profiles":
			runProfiles()
			return
		case "help", "--help", "-h":
			printHelp()
			return
		}
	}
	runDaemon(os.Args[1:])
}

func printHelp() {
	fmt.Print(`tabgruppen - groups browser tabs with a language model

Usage:
  tabgruppen                                   Run the daemon with the terminal view
    --port <n>             WebSocket port for the extension (default: 19191)
    --headless             Log activity to stdout instead of the terminal view
    --db <path>            Database path (default: ~/.local/share/tabgruppen/tabgruppen.db)

  tabgruppen plan                              Plan grouping of a saved Firefox session
    --profile <name>       Firefox profile name
    --window <n>           Only plan this window (default: all)
    --mode <mode>          auto, direct or titles (default: from settings)
    --json                 Print the plan as JSON

  tabgruppen history                           Print the undo history
  tabgruppen config show                       Print the current settings
  tabgruppen config set <key> <value>          Change a setting
  tabgruppen config reset <key>                Restore a setting's default
  tabgruppen config import [file]              Import a YAML settings file
  tabgruppen config keys                       List setting names
  tabgruppen profiles                          List Firefox profiles
  tabgruppen help                              Show this help

Environment:
  TABGRUPPEN_PORT          Default for --port
  TABGRUPPEN_PROFILE       Default for --profile
  TABGRUPPEN_PROVIDER      Override the model provider
  TABGRUPPEN_MODEL         Override the model name
  TABGRUPPEN_API_KEY       Override the API key
  TABGRUPPEN_BASE_URL      Override the provider base URL
  OLLAMA_HOST              Base URL of the ollama provider
`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// backend is what the terminal view controls.
type backend struct {
	*ledger.Ledger
	*server.Server
}

func runDaemon(args []string) {
	fs := flag.NewFlagSet("tabgruppen", flag.ExitOnError)
	port := fs.Int("port", defaultPort(), "WebSocket port for the extension")
	headless := fs.Bool("headless", false, "Log activity to stdout instead of the terminal view")
	dbPath := fs.String("db", "", "Database path")
	fs.Parse(args)

	if dir, err := storage.DataDir(); err == nil {
		if err := applog.Init(dir); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
		}
	}
	defer applog.Close()

	db, err := openDB(*dbPath)
	if err != nil {
		fail(err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	settings := config.NewStore(db)
	if n, err := importDefaultFile(ctx, settings); err != nil {
		fail(err)
	} else if n > 0 {
		applog.Info("config.import", "keys", n)
	}
	s, err := settings.Settings(ctx)
	if err != nil {
		fail(err)
	}

	srv := server.New(*port)
	bridge := server.NewBridge(srv)
	requester := ai.NewRequester(config.AISource(settings), ai.WithBackoff(s.Delays.Backoff()))
	l := ledger.New(ledger.NewSQLRepository(db), bridge, settings)
	eng := engine.New(bridge, requester, l, settings, engine.Options{Titles: pageinfo.New(nil)})
	defer eng.Close()
	d := dispatch.New(srv, eng, l, settings)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe(ctx) }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Run(ctx, srv.Messages())
	}()

	if *headless {
		fmt.Printf("Listening on 127.0.0.1:%d\n", *port)
		err = logEvents(ctx, d.Events(), serveErr)
	} else {
		p := tea.NewProgram(tui.NewModel(backend{l, srv}, d.Events(), *port), tea.WithAltScreen())
		go func() {
			if err := <-serveErr; err != nil && ctx.Err() == nil {
				applog.Error("server.stop", err)
				p.Quit()
			}
		}()
		_, err = p.Run()
	}
	stop()
	<-done
	if err != nil {
		fail(err)
	}
}

func logEvents(ctx context.Context, events <-chan dispatch.Event, serveErr <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-serveErr:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case ev := <-events:
			fmt.Printf("%s %-8s %s\n", ev.Time.Format("15:04:05"), ev.Kind, ev.Detail)
		}
	}
}

func defaultPort() int {
	if v := os.Getenv("TABGRUPPEN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return server.DefaultPort
}

func importDefaultFile(ctx context.Context, settings *config.Store) (int, error) {
	path, err := config.DefaultFilePath()
	if err != nil {
		return 0, nil
	}
	return config.Import(ctx, settings, path)
}

func runPlan(args []string) {
	fs := flag.NewFlagSet("plan", flag.ExitOnError)
	profileName := fs.String("profile", "", "Firefox profile name")
	windowID := fs.Int("window", 0, "Only plan this window")
	mode := fs.String("mode", "", "auto, direct or titles")
	asJSON := fs.Bool("json", false, "Print the plan as JSON")
	fs.Parse(reorderArgs(args))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	session, err := resolveSession(resolveProfileName(*profileName))
	if err != nil {
		fail(err)
	}

	s := loadSettings(ctx)
	if *mode != "" {
		s.BatchMode = string(grouping.ParseMode(*mode))
	}
	// Plans are applied to an in-memory copy of the session, never to the
	// browser.
	src := config.Static(s)
	store := firefox.Store(session)
	requester := ai.NewRequester(config.AISource(src), ai.WithBackoff(s.Delays.Backoff()))
	eng := engine.New(store, requester, nil, src, engine.Options{})
	defer eng.Close()

	plans := make(map[int]*grouping.Plan)
	for _, w := range windowIDs(session.Tabs, *windowID) {
		plan, err := eng.GroupWindow(ctx, w)
		if err != nil {
			fail(fmt.Errorf("window %d: %w", w, err))
		}
		plans[w] = plan
	}

	if *asJSON {
		out := make(map[string][]grouping.PlannedGroup, len(plans))
		for w, p := range plans {
			out[strconv.Itoa(w)] = p.NonEmpty()
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			fail(err)
		}
		return
	}

	fmt.Printf("Profile %s, %d tabs\n\n", session.Profile.Name, len(session.Tabs))
	for _, w := range windowIDs(session.Tabs, *windowID) {
		fmt.Printf("Window %d\n", w)
		fmt.Println(tui.RenderPlan(plans[w], session.Tabs, 100))
	}
}

// windowIDs returns the sorted windows that hold tabs, or just only when set.
func windowIDs(tabs []*types.Tab, only int) []int {
	if only > 0 {
		return []int{only}
	}
	seen := make(map[int]bool)
	var ids []int
	for _, t := range tabs {
		if !seen[t.WindowID] {
			seen[t.WindowID] = true
			ids = append(ids, t.WindowID)
		}
	}
	sort.Ints(ids)
	return ids
}

// loadSettings reads stored settings, falling back to defaults when the
// database is unavailable.
func loadSettings(ctx context.Context) config.Settings {
	db, err := openDB("")
	if err != nil {
		return config.Defaults()
	}
	defer db.Close()
	s, err := config.NewStore(db).Settings(ctx)
	if err != nil {
		return config.Defaults()
	}
	return s
}

func runHistory(args []string) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	dbPath := fs.String("db", "", "Database path")
	fs.Parse(args)

	db, err := openDB(*dbPath)
	if err != nil {
		fail(err)
	}
	defer db.Close()

	ctx := context.Background()
	l := ledger.New(ledger.NewSQLRepository(db), nil, config.NewStore(db))
	actions, err := l.List(ctx)
	if err != nil {
		fail(err)
	}
	if len(actions) == 0 {
		fmt.Println("No undoable actions.")
		return
	}

	fmt.Printf("%-19s  %-6s  %-16s  %-24s  %s\n", "TIME", "TAB", "MOVE", "GROUP", "REASONING")
	for _, a := range actions {
		fmt.Println(formatAction(a))
	}

	last, err := storage.LastAction(ctx, db)
	if err != nil {
		fail(err)
	}
	if last != nil {
		fmt.Printf("\nLast: %s\n", formatAction(*last))
	}
}

func formatAction(a types.GroupingAction) string {
	move := fmt.Sprintf("%s -> %s", groupRef(a.FromGroupID), groupRef(a.ToGroupID))
	title := a.GroupTitle
	if a.CreatedNewGroup {
		title += " (new)"
	}
	return fmt.Sprintf("%-19s  %-6d  %-16s  %-24s  %s",
		a.Timestamp.Local().Format(time.DateTime), a.TabID, move, title, a.Reasoning)
}

func groupRef(id int) string {
	if id == types.NoGroup {
		return "-"
	}
	return strconv.Itoa(id)
}

func runConfig(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: tabgruppen config <show|set|reset|import|keys>")
		os.Exit(1)
	}

	if args[0] == "keys" {
		for _, k := range config.Keys() {
			fmt.Println(k)
		}
		return
	}

	db, err := openDB("")
	if err != nil {
		fail(err)
	}
	defer db.Close()
	ctx := context.Background()
	store := config.NewStore(db)

	switch args[0] {
	case "show":
		s, err := store.Settings(ctx)
		if err != nil {
			fail(err)
		}
		if err := config.Encode(os.Stdout, s); err != nil {
			fail(err)
		}

	case "set":
		if len(args) != 3 {
			fmt.Fprintln(os.Stderr, "Usage: tabgruppen config set <key> <value>")
			os.Exit(1)
		}
		if err := store.Set(ctx, args[1], args[2]); err != nil {
			fail(err)
		}
		fmt.Printf("%s updated\n", args[1])

	case "import":
		path := ""
		if len(args) > 1 {
			path = args[1]
		} else if path, err = config.DefaultFilePath(); err != nil {
			fail(err)
		}
		if _, err := os.Stat(path); err != nil {
			fail(err)
		}
		n, err := config.Import(ctx, store, path)
		if err != nil {
			fail(err)
		}
		fmt.Printf("Imported %d settings from %s\n", n, path)

	case "reset":
		if len(args) != 2 {
			fmt.Fprintln(os.Stderr, "Usage: tabgruppen config reset <key>")
			os.Exit(1)
		}
		if err := store.Reset(ctx, args[1]); err != nil {
			fail(err)
		}
		fmt.Printf("%s reset to default\n", args[1])

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command %q\n", args[0])
		os.Exit(1)
	}
}

func runProfiles() {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error discovering Firefox profiles: %v\n", err)
		os.Exit(1)
	}
	if len(profiles) == 0 {
		fmt.Fprintln(os.Stderr, "No Firefox profiles found.")
		os.Exit(1)
	}

	for _, p := range profiles {
		suffix := ""
		if p.IsDefault {
			suffix = " [default]"
		}
		fmt.Printf("%s (%s)%s\n", p.Name, p.Path, suffix)
	}
}

// resolveSession reads the saved session of the named profile, or of the
// default profile when name is empty.
func resolveSession(name string) (*types.SessionData, error) {
	profiles, err := firefox.DiscoverProfiles()
	if err != nil {
		return nil, fmt.Errorf("discover profiles: %w", err)
	}
	profile, err := firefox.SelectProfile(profiles, name)
	if err != nil {
		return nil, err
	}
	session, err := firefox.ReadSessionFile(profile.Path)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	session.Profile = profile
	return session, nil
}

func openDB(path string) (*sql.DB, error) {
	if path == "" {
		var err error
		if path, err = storage.DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	return storage.OpenDB(path)
}

// reorderArgs moves flag arguments before positional arguments so that
// flag.Parse handles them correctly (it stops at the first non-flag arg).
func reorderArgs(args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "-") {
			flags = append(flags, args[i])
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") && !strings.Contains(args[i], "=") && !isBoolFlag(args[i]) {
				flags = append(flags, args[i+1])
				i++
			}
		} else {
			positional = append(positional, args[i])
		}
	}
	return append(flags, positional...)
}

func isBoolFlag(arg string) bool {
	return strings.TrimLeft(arg, "-") == "json"
}

// resolveProfileName returns the profile name from the flag if set,
// otherwise falls back to the TABGRUPPEN_PROFILE environment variable.
func resolveProfileName(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("TABGRUPPEN_PROFILE")
}
