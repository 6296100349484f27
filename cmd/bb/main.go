package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"brainboard/internal/config"
	"brainboard/internal/db"
	"brainboard/pkg/cache"
	"brainboard/pkg/gcal"
	"brainboard/pkg/sync"
	"brainboard/pkg/task"
	"brainboard/pkg/timegrid"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx := context.Background()
	cfg, err := config.Load(os.Getenv("BRAINBOARD_CONFIG"))
	if err != nil {
		fatal("config: %v", err)
	}

	switch os.Args[1] {
	case "task":
		s := open(ctx, cfg)
		defer s.close()
		handleTask(s, os.Args[2:])
	case "board":
		s := open(ctx, cfg)
		defer s.close()
		handleBoard(s, os.Args[2:])
	case "import":
		s := open(ctx, cfg)
		defer s.close()
		handleImport(ctx, cfg, s, os.Args[2:])
	case "resync":
		s := open(ctx, cfg)
		defer s.close()
		handleResync(ctx, s)
	case "gcal":
		handleGcal(ctx, cfg, os.Args[2:])
	case "status":
		s := open(ctx, cfg)
		defer s.close()
		handleStatus(s)
	case "init":
		handleInit(ctx, cfg)
	default:
		usage()
		os.Exit(1)
	}
}

// session is the CLI's view of the task collection: the in-memory store plus
// whatever is backing it (the Postgres sync engine, or the local cache file).
type session struct {
	store  *task.Store
	engine *sync.Engine
	slot   *cache.File
	done   func()
}

// open loads the collection. With a database configured the sync engine runs
// for the lifetime of the command, so mutations push before close returns;
// without one the cache file is the collection.
func open(ctx context.Context, cfg *config.Config) *session {
	s := &session{
		store: task.NewStore(),
		slot:  cache.NewFile(cfg.CachePath),
	}

	if cfg.DatabaseURL == "" {
		cached, err := s.slot.Load()
		if err != nil {
			fatal("load cache: %v", err)
		}
		s.store.Replace(cached, task.OriginRemote)
		return s
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("connect: %v", err)
	}
	s.engine = sync.New(s.store, sync.NewPgRemote(pool), sync.WithCache(s.slot))
	s.engine.Start(ctx)
	s.done = pool.Close
	return s
}

// close flushes pending work. Stopping the engine drains its change queue, so
// every mutation this command made has been pushed by the time close returns.
func (s *session) close() {
	if s.engine != nil {
		s.engine.Stop()
		s.done()
		return
	}
	if err := s.slot.Save(s.store.All()); err != nil {
		fatal("save cache: %v", err)
	}
}

func handleTask(s *session, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: bb task <add|list|get|update|move|done|delete> [--format=short for list]")
		os.Exit(1)
	}

	switch args[0] {
	case "add":
		flags := parseFlags(args[1:])
		title := flags["title"]
		if title == "" {
			fatal("--title is required")
		}
		t := task.Task{
			Title:         title,
			Description:   flags["description"],
			TimeEstimate:  intFlag(flags, "minutes", 0),
			Priority:      task.Priority(flags["priority"]),
			ScheduledDate: flags["date"],
			ScheduledTime: flags["time"],
		}
		if tags := flags["tags"]; tags != "" {
			t.Tags = strings.Split(tags, ",")
		}
		printJSON(s.store.Add(t))

	case "list":
		flags := parseFlags(args[1:])
		var tasks []task.Task
		if _, ok := flags["unscheduled"]; ok {
			tasks = s.store.Unscheduled()
		} else if day := flags["day"]; day != "" {
			tasks = s.store.ByDay(day)
		} else {
			tasks = s.store.All()
		}
		if flags["format"] == "short" {
			printShortTasks(tasks)
		} else {
			printJSON(tasks)
		}

	case "get":
		if len(args) < 2 {
			fatal("Usage: bb task get <id>")
		}
		t, ok := s.store.Get(args[1])
		if !ok {
			fatal("task not found: %s", args[1])
		}
		printJSON(t)

	case "update":
		if len(args) < 2 {
			fatal("Usage: bb task update <id> [--title=...] [--minutes=N] [--priority=...] [--status=...]")
		}
		flags := parseFlags(args[2:])
		updates := make(map[string]any)
		if v, ok := flags["title"]; ok && v != "" {
			updates["title"] = v
		}
		if v, ok := flags["description"]; ok {
			updates["description"] = v
		}
		if v, ok := flags["minutes"]; ok && v != "" {
			n, _ := strconv.Atoi(v)
			updates["timeEstimate"] = n
		}
		if v, ok := flags["priority"]; ok && v != "" {
			updates["priority"] = v
		}
		if v, ok := flags["status"]; ok && v != "" {
			updates["status"] = v
		}
		if v, ok := flags["tags"]; ok && v != "" {
			updates["tags"] = strings.Split(v, ",")
		}
		if len(updates) == 0 {
			fatal("no updates specified")
		}
		s.store.Update(args[1], updates)
		t, ok := s.store.Get(args[1])
		if !ok {
			fatal("task not found: %s", args[1])
		}
		printJSON(t)

	case "move":
		if len(args) < 2 {
			fatal("Usage: bb task move <id> [--date=2006-01-02] [--time=HH:MM]")
		}
		flags := parseFlags(args[2:])
		if _, ok := s.store.Get(args[1]); !ok {
			fatal("task not found: %s", args[1])
		}
		s.store.Move(args[1], flags["date"], flags["time"])
		t, _ := s.store.Get(args[1])
		printJSON(t)

	case "done":
		if len(args) < 2 {
			fatal("Usage: bb task done <id>")
		}
		if _, ok := s.store.Get(args[1]); !ok {
			fatal("task not found: %s", args[1])
		}
		s.store.ToggleComplete(args[1])
		t, _ := s.store.Get(args[1])
		printJSON(t)

	case "delete":
		if len(args) < 2 {
			fatal("Usage: bb task delete <id>")
		}
		if _, ok := s.store.Get(args[1]); !ok {
			fatal("task not found: %s", args[1])
		}
		s.store.Delete(args[1])
		fmt.Println(`{"status":"ok"}`)

	default:
		fatal("unknown task command: %s", args[0])
	}
}

func handleBoard(s *session, args []string) {
	flags := parseFlags(args)
	weekStart := timegrid.StartOfWeek(time.Now())
	if w := flags["week"]; w != "" {
		day, err := timegrid.ParseDayID(w)
		if err != nil {
			fatal("invalid week: %s", w)
		}
		weekStart = timegrid.StartOfWeek(day)
	}

	if flags["format"] == "short" {
		for _, col := range s.store.Week(weekStart) {
			fmt.Printf("%s %s\n", col.DayName, col.ID)
			for _, t := range col.Tasks {
				tod := t.ScheduledTime
				if tod == "" {
					tod = "--:--"
				}
				fmt.Printf("  %-5s  %3dm  %s\n", tod, t.TimeEstimate, truncStr(t.Title, 50))
			}
		}
		if dump := s.store.Unscheduled(); len(dump) > 0 {
			fmt.Println("brain dump")
			for _, t := range dump {
				fmt.Printf("  %-5s  %3dm  %s\n", "", t.TimeEstimate, truncStr(t.Title, 50))
			}
		}
		return
	}

	printJSON(map[string]any{
		"weekStart": timegrid.DayID(weekStart),
		"days":      s.store.Week(weekStart),
		"brainDump": s.store.Unscheduled(),
	})
}

func handleImport(ctx context.Context, cfg *config.Config, s *session, args []string) {
	flags := parseFlags(args)
	from := timegrid.StartOfWeek(time.Now())
	to := timegrid.AddWeeks(from, 1)
	if v := flags["from"]; v != "" {
		day, err := timegrid.ParseDayID(v)
		if err != nil {
			fatal("invalid from: %s", v)
		}
		from = day
	}
	if v := flags["to"]; v != "" {
		day, err := timegrid.ParseDayID(v)
		if err != nil {
			fatal("invalid to: %s", v)
		}
		to = day
	}

	src, err := gcal.NewGoogleSource(ctx, cfg.Google.ConfigDir, cfg.Google.CalendarID)
	if err != nil {
		fatal("calendar source: %v", err)
	}
	added, err := gcal.NewImporter(s.store, src).Import(ctx, from, to)
	if err != nil {
		fatal("import: %v", err)
	}
	printJSON(map[string]int{"imported": added})
}

func handleResync(ctx context.Context, s *session) {
	if s.engine == nil {
		fatal("resync requires a configured database")
	}
	if err := s.engine.Resync(ctx); err != nil {
		fatal("resync: %v", err)
	}
	printJSON(map[string]int{"tasks": s.store.Len()})
}

func handleGcal(ctx context.Context, cfg *config.Config, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: bb gcal <auth-url|authorize>")
		os.Exit(1)
	}

	switch args[0] {
	case "auth-url":
		url, err := gcal.AuthURL(cfg.Google.ConfigDir)
		if err != nil {
			fatal("auth url: %v", err)
		}
		fmt.Println(url)

	case "authorize":
		if len(args) < 2 {
			fatal("Usage: bb gcal authorize <code>")
		}
		if err := gcal.Authorize(ctx, cfg.Google.ConfigDir, args[1]); err != nil {
			fatal("authorize: %v", err)
		}
		fmt.Println(`{"status":"ok","message":"token stored"}`)

	default:
		fatal("unknown gcal command: %s", args[0])
	}
}

func handleStatus(s *session) {
	all := s.store.All()
	unscheduled, pending, completed := 0, 0, 0
	for _, t := range all {
		if !t.Scheduled() {
			unscheduled++
		}
		switch t.Status {
		case task.StatusPending:
			pending++
		case task.StatusCompleted:
			completed++
		}
	}
	printJSON(map[string]any{
		"tasks":       len(all),
		"unscheduled": unscheduled,
		"pending":     pending,
		"completed":   completed,
		"syncing":     s.engine != nil,
	})
}

func handleInit(ctx context.Context, cfg *config.Config) {
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		fatal("connect: %v", err)
	}
	defer pool.Close()
	if err := sync.NewPgRemote(pool).EnsureTable(ctx); err != nil {
		fatal("ensure tasks table: %v", err)
	}
	fmt.Println(`{"status":"ok","message":"tasks table initialized"}`)
}

// parseFlags parses --key=value and --flag style args into a map.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		arg = strings.TrimPrefix(arg, "--")
		if idx := strings.Index(arg, "="); idx >= 0 {
			flags[arg[:idx]] = arg[idx+1:]
		} else {
			flags[arg] = ""
		}
	}
	return flags
}

func intFlag(flags map[string]string, key string, defaultVal int) int {
	if v, ok := flags[key]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fatal("encode JSON: %v", err)
	}
}

func truncStr(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func printShortTasks(tasks []task.Task) {
	for _, t := range tasks {
		id := truncStr(t.ID, 8)
		when := ""
		if t.ScheduledDate != "" {
			when = t.ScheduledDate
			if t.ScheduledTime != "" {
				when += " " + t.ScheduledTime
			}
		}
		fmt.Printf("%-8s  %-11s  %-16s  %s\n", id, t.Status, when, truncStr(t.Title, 50))
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "bb: "+format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: bb <command>

Commands:
  task     Task operations (add, list, get, update, move, done, delete)
  board    Print the week board
  import   Import calendar events as tasks
  resync   Discard sync state and refetch the remote collection
  gcal     Calendar authorization (auth-url, authorize)
  status   Show collection summary
  init     Initialize the database table`)
}
