package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"sheetlink/internal/amqp"
	"sheetlink/internal/cli"
	"sheetlink/internal/config"
	"sheetlink/internal/core"
	applog "sheetlink/internal/log"
	"sheetlink/internal/services"
)

const usage = `Usage: sheetlink <command> [flags]

Commands:
  pull        read a worksheet into the local snapshot store
  push        write a stored snapshot back to its worksheet
  export      snapshot every worksheet of a spreadsheet
  queue-push  enqueue a push request for the worker

Run 'sheetlink <command> -h' for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if os.Args[1] == "-h" || os.Args[1] == "--help" || os.Args[1] == "help" {
		fmt.Print(usage)
		return
	}

	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "pull":
		err = runPull(ctx, logger, cfg, os.Args[2:])
	case "push":
		err = runPush(ctx, logger, cfg, os.Args[2:])
	case "export":
		err = runExport(ctx, logger, cfg, os.Args[2:])
	case "queue-push":
		err = runQueuePush(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		logger.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func newService(ctx context.Context, logger *applog.Logger, cfg *config.Config) (*services.SnapshotService, func()) {
	repo := cli.InitSnapshotStore(logger, cfg.SQLiteDBPath)
	connector := cli.InitConnector(ctx, logger, cfg)

	svc := services.NewSnapshotService(connector, repo, logger.WithComponent(applog.ComponentService).Logger)
	svc.ExportConcurrency = cfg.ExportConcurrency
	return svc, func() { _ = repo.Close() }
}

func runPull(ctx context.Context, logger *applog.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("pull", flag.ExitOnError)
	title := fs.String("title", "", "spreadsheet title (required)")
	worksheet := fs.Int("worksheet", 1, "worksheet number, starting at 1")
	types := fs.String("types", "", "column types, e.g. amount=float,count=int")
	fs.Parse(args)

	if *title == "" {
		return fmt.Errorf("-title is required")
	}
	casts, err := parseTypes(*types)
	if err != nil {
		return err
	}

	svc, closeFn := newService(ctx, logger, cfg)
	defer closeFn()

	snap, err := svc.Pull(ctx, *title, *worksheet, casts)
	if err != nil {
		return err
	}
	fmt.Printf("snapshot %d saved for %q worksheet %d\n", snap.ID, snap.Title, snap.Worksheet)
	return nil
}

func runPush(ctx context.Context, logger *applog.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("push", flag.ExitOnError)
	snapshotID := fs.Int64("snapshot", 0, "snapshot id to push")
	title := fs.String("title", "", "push the latest snapshot of this spreadsheet instead")
	worksheet := fs.Int("worksheet", 1, "worksheet number when using -title")
	create := fs.Bool("create", false, "create the spreadsheet if it does not exist")
	fs.Parse(args)

	svc, closeFn := newService(ctx, logger, cfg)
	defer closeFn()

	switch {
	case *snapshotID > 0:
		return svc.Push(ctx, *snapshotID, *create)
	case *title != "":
		return svc.PushLatest(ctx, *title, *worksheet, *create)
	default:
		return fmt.Errorf("either -snapshot or -title is required")
	}
}

func runExport(ctx context.Context, logger *applog.Logger, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	title := fs.String("title", "", "spreadsheet title (required)")
	fs.Parse(args)

	if *title == "" {
		return fmt.Errorf("-title is required")
	}

	svc, closeFn := newService(ctx, logger, cfg)
	defer closeFn()

	snaps, err := svc.Export(ctx, *title)
	if err != nil {
		return err
	}
	for _, s := range snaps {
		fmt.Printf("snapshot %d saved for worksheet %d\n", s.ID, s.Worksheet)
	}
	return nil
}

func runQueuePush(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("queue-push", flag.ExitOnError)
	snapshotID := fs.Int64("snapshot", 0, "snapshot id to enqueue (required)")
	title := fs.String("title", "", "override the target spreadsheet title")
	worksheet := fs.Int("worksheet", 0, "override the target worksheet number")
	fs.Parse(args)

	if *snapshotID <= 0 {
		return fmt.Errorf("-snapshot is required")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return fmt.Errorf("connect to AMQP: %w", err)
	}
	defer client.Close()

	if err := client.PublishPushRequest(ctx, *snapshotID, *title, *worksheet); err != nil {
		return err
	}
	fmt.Printf("push request for snapshot %d enqueued\n", *snapshotID)
	return nil
}

func parseTypes(spec string) (map[string]core.Kind, error) {
	if spec == "" {
		return nil, nil
	}
	casts := make(map[string]core.Kind)
	for _, pair := range strings.Split(spec, ",") {
		name, kind, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid type spec %q: want column=kind", pair)
		}
		k := core.Kind(kind)
		if !k.Valid() {
			return nil, fmt.Errorf("invalid kind %q for column %q", kind, name)
		}
		casts[name] = k
	}
	return casts, nil
}
