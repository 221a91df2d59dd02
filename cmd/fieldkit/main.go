// Command fieldkit is the offline-first field client. Assessments are
// captured into a local SQLite store and uploaded to the platform when
// connectivity allows.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aidgrid/platform/internal/fieldkit"
	"github.com/aidgrid/platform/pkg/logger"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: fieldkit <command> [flags]

commands:
  capture   record a new assessment draft
  queue     move a draft into the upload queue
  list      list drafts, optionally by state
  sync      run one sync pass against the server
  watch     keep syncing until interrupted
  prune     delete drafts already accepted by the server

environment:
  FIELDKIT_DB      path to the local draft database (default fieldkit.db)
  FIELDKIT_SERVER  platform base URL (default http://localhost:8080)
  FIELDKIT_TOKEN   assessor bearer token
`)
	os.Exit(2)
}

func main() {
	_ = godotenv.Load()
	if len(os.Args) < 2 {
		usage()
	}

	log := logger.NewDefault("fieldkit")

	dbPath := os.Getenv("FIELDKIT_DB")
	if dbPath == "" {
		dbPath = "fieldkit.db"
	}
	store, err := fieldkit.OpenStore(dbPath)
	if err != nil {
		log.WithError(err).Fatal("open draft store")
	}
	defer store.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "capture":
		runCapture(ctx, store, os.Args[2:])
	case "queue":
		runQueue(ctx, store, os.Args[2:])
	case "list":
		runList(ctx, store, os.Args[2:])
	case "sync":
		runSync(ctx, store, log, false)
	case "watch":
		runSync(ctx, store, log, true)
	case "prune":
		n, err := store.DeleteSynced(ctx)
		if err != nil {
			log.WithError(err).Fatal("prune drafts")
		}
		fmt.Printf("removed %d synced drafts\n", n)
	default:
		usage()
	}
}

func runCapture(ctx context.Context, store *fieldkit.Store, args []string) {
	fs := flag.NewFlagSet("capture", flag.ExitOnError)
	entityID := fs.String("entity", "", "entity ID")
	incidentID := fs.String("incident", "", "incident ID")
	sector := fs.String("sector", "", "sector (health, wash, shelter, food, security, population)")
	dataJSON := fs.String("data", "{}", "survey data as JSON")
	needsJSON := fs.String("needs", "[]", "resource needs as JSON")
	queueNow := fs.Bool("queue", false, "queue for upload immediately")
	_ = fs.Parse(args)

	if *entityID == "" || *incidentID == "" || *sector == "" {
		fmt.Fprintln(os.Stderr, "capture requires -entity, -incident and -sector")
		os.Exit(2)
	}

	var data map[string]interface{}
	if err := json.Unmarshal([]byte(*dataJSON), &data); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -data: %v\n", err)
		os.Exit(2)
	}
	var needs []fieldkit.Need
	if err := json.Unmarshal([]byte(*needsJSON), &needs); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -needs: %v\n", err)
		os.Exit(2)
	}

	draft, err := store.SaveDraft(ctx, fieldkit.Draft{
		EntityID:   *entityID,
		IncidentID: *incidentID,
		Sector:     *sector,
		Data:       data,
		Needs:      needs,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "save draft: %v\n", err)
		os.Exit(1)
	}
	if *queueNow {
		if err := store.Queue(ctx, draft.ClientRef); err != nil {
			fmt.Fprintf(os.Stderr, "queue draft: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Println(draft.ClientRef)
}

func runQueue(ctx context.Context, store *fieldkit.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: fieldkit queue <client-ref>")
		os.Exit(2)
	}
	if err := store.Queue(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "queue: %v\n", err)
		os.Exit(1)
	}
}

func runList(ctx context.Context, store *fieldkit.Store, args []string) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	state := fs.String("state", "", "filter by state (draft, queued, synced, failed)")
	_ = fs.Parse(args)

	drafts, err := store.ListDrafts(ctx, *state)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list: %v\n", err)
		os.Exit(1)
	}
	for _, d := range drafts {
		fmt.Printf("%s\t%s\t%s\t%s\tattempts=%d\t%s\n",
			d.ClientRef, d.State, d.Sector, d.EntityID, d.Attempts, d.CapturedAt.Format(time.RFC3339))
		if d.LastError != "" {
			fmt.Printf("\terror: %s\n", d.LastError)
		}
	}
}

func runSync(ctx context.Context, store *fieldkit.Store, log *logger.Logger, watch bool) {
	server := os.Getenv("FIELDKIT_SERVER")
	if server == "" {
		server = "http://localhost:8080"
	}
	token := os.Getenv("FIELDKIT_TOKEN")
	if token == "" {
		fmt.Fprintln(os.Stderr, "FIELDKIT_TOKEN is required for sync")
		os.Exit(2)
	}

	client := fieldkit.NewClient(server, token)
	engine := fieldkit.NewEngine(store, client, 5*time.Second, log)

	if !watch {
		if err := engine.SyncOnce(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "sync: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := engine.Start(ctx); err != nil {
		log.WithError(err).Fatal("start sync engine")
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_ = engine.Stop(stopCtx)
}
