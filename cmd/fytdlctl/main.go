// Command fytdlctl is the operator tool for the download service: it queues
// downloads, cancels them, queues cleanups and edits download archives.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"thirdcoast.systems/fetchd/internal/application"
	"thirdcoast.systems/fetchd/internal/config"
	"thirdcoast.systems/fetchd/internal/db"
	"thirdcoast.systems/fetchd/internal/downloads"
	"thirdcoast.systems/fetchd/internal/queue"
	"thirdcoast.systems/fetchd/internal/videoid"
	"thirdcoast.systems/fetchd/pkg/ytdlp"
)

// env is everything a command may touch. It is opened lazily so that --help
// works without a database.
type env struct {
	conf    *config.Config
	svc     *downloads.Service
	queue   downloads.Queue
	archive ytdlp.Archive
	close   func()
}

type opener func(ctx context.Context) (*env, error)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(openEnv, os.Stdout)
	if err := app.RunContext(ctx, os.Args); err != nil {
		slog.Error("fytdlctl failed", "error", err)
		os.Exit(1)
	}
}

func openEnv(ctx context.Context) (*env, error) {
	conf, err := config.LoadConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := application.InitLogger(conf.LogLevel)

	pool, err := application.OpenDBPoolWithRetry(ctx, *conf)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	dbc, err := db.NewDatabaseConnection(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create database connection: %w", err)
	}

	encMgr, err := application.InitEncryptionManager(*conf)
	if err != nil {
		dbc.Close()
		return nil, err
	}

	archive, err := application.OpenArchive(conf.Ytdl, dbc.Queries(ctx))
	if err != nil {
		dbc.Close()
		return nil, err
	}

	extractor := ytdlp.New()
	extractor.Path = conf.Ytdl.Binary
	q := queue.NewClient(dbc.Queries(ctx))

	return &env{
		conf:    conf,
		svc:     downloads.NewService(downloads.NewPGStore(dbc), q, extractor, encMgr, logger),
		queue:   q,
		archive: archive,
		close:   dbc.Close,
	}, nil
}

func newApp(open opener, out io.Writer) *cli.App {
	withEnv := func(f func(*env, *cli.Context) error) cli.ActionFunc {
		return func(ctx *cli.Context) error {
			e, err := open(ctx.Context)
			if err != nil {
				return err
			}
			if e.close != nil {
				defer e.close()
			}
			return f(e, ctx)
		}
	}

	archiveName := &cli.StringFlag{
		Name:  "name",
		Usage: "archive name; defaults to YTDL_DOWNLOAD_ARCHIVE",
	}

	return &cli.App{
		Name:        "fytdlctl",
		Usage:       "manage video downloads",
		Description: "a command line interface to the download service",
		Writer:      out,
		Commands: []*cli.Command{{
			Name:        "show-config",
			Description: "print the effective configuration with secrets redacted",
			Action: func(ctx *cli.Context) error {
				conf, err := config.LoadConfig(ctx.Context)
				if err != nil {
					return err
				}
				return printJSON(out, conf.Redacted())
			},
		}, {
			Name:        "dispatch",
			Aliases:     []string{"download"},
			Usage:       "dispatch <video id | url>",
			Description: "start a download; playlist urls start one download per entry",
			Action: withEnv(func(e *env, ctx *cli.Context) error {
				return dispatch(ctx.Context, e, out, ctx.Args().First())
			}),
		}, {
			Name:        "cancel",
			Usage:       "cancel <video id>",
			Description: "cancel the pending or running attempt of a download",
			Action: withEnv(func(e *env, ctx *cli.Context) error {
				return e.svc.Cancel(ctx.Context, ctx.Args().First())
			}),
		}, {
			Name:        "cleanup",
			Usage:       "cleanup <attempt id>",
			Description: "queue removal of an attempt's partial files",
			Action: withEnv(func(e *env, ctx *cli.Context) error {
				id, err := strconv.ParseInt(ctx.Args().First(), 10, 64)
				if err != nil || id <= 0 {
					return fmt.Errorf("invalid attempt id %q", ctx.Args().First())
				}
				jobID, err := e.queue.Enqueue(ctx.Context, downloads.TaskCleanupAttempt, downloads.CleanupArgs{AttemptID: id})
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(out, "%s\n", jobID)
				return err
			}),
		}, {
			Name:        "archive",
			Description: "commands for managing download archives",
			Subcommands: []*cli.Command{{
				Name:        "list",
				Aliases:     []string{"ls"},
				Description: "list the entries of an archive",
				Flags:       []cli.Flag{archiveName},
				Action: withEnv(func(e *env, ctx *cli.Context) error {
					l, ok := e.archive.(ytdlp.Lister)
					if !ok {
						return fmt.Errorf("archive backend %q cannot list entries", e.conf.Ytdl.ArchiveBackend)
					}
					name, err := archiveNameOf(e, ctx)
					if err != nil {
						return err
					}
					entries, err := l.List(ctx.Context, name)
					if err != nil {
						return err
					}
					for _, entry := range entries {
						if _, err := fmt.Fprintln(out, entry); err != nil {
							return err
						}
					}
					return nil
				}),
			}, {
				Name:        "add",
				Usage:       "add <extractor> <id>",
				Description: "mark a video as downloaded",
				Flags:       []cli.Flag{archiveName},
				Action: withEnv(func(e *env, ctx *cli.Context) error {
					name, entry, err := archiveArgs(e, ctx)
					if err != nil {
						return err
					}
					return e.archive.Add(ctx.Context, name, entry)
				}),
			}, {
				Name:        "remove",
				Aliases:     []string{"rm", "delete"},
				Usage:       "remove <extractor> <id>",
				Description: "forget a video so it is downloaded again",
				Flags:       []cli.Flag{archiveName},
				Action: withEnv(func(e *env, ctx *cli.Context) error {
					name, entry, err := archiveArgs(e, ctx)
					if err != nil {
						return err
					}
					return e.archive.Remove(ctx.Context, name, entry)
				}),
			}},
		}},
	}
}

func dispatch(ctx context.Context, e *env, out io.Writer, target string) error {
	ref, err := videoid.Parse(target)
	if err != nil {
		return err
	}

	if ref.VideoID != "" {
		d, err := e.svc.Start(ctx, ref.VideoID, nil)
		if err != nil {
			return err
		}
		return printJSON(out, d)
	}

	p, err := e.svc.StorePlaylistInfo(ctx, ref.PlaylistID)
	if err != nil {
		return err
	}
	started := make([]*downloads.Download, 0, len(p.Videos))
	for _, v := range p.Videos {
		d, err := e.svc.Start(ctx, v.VideoID, nil)
		if err != nil {
			return fmt.Errorf("dispatch %s: %w", v.VideoID, err)
		}
		started = append(started, d)
	}
	return printJSON(out, started)
}

func archiveNameOf(e *env, ctx *cli.Context) (string, error) {
	name := ctx.String("name")
	if name == "" {
		name = e.conf.Ytdl.DownloadArchive
	}
	if name == "" {
		return "", fmt.Errorf("no archive named; pass --name or set YTDL_DOWNLOAD_ARCHIVE")
	}
	return name, nil
}

func archiveArgs(e *env, ctx *cli.Context) (string, string, error) {
	name, err := archiveNameOf(e, ctx)
	if err != nil {
		return "", "", err
	}
	if ctx.NArg() != 2 {
		return "", "", fmt.Errorf("expected <extractor> <id>, got %d arguments", ctx.NArg())
	}
	return name, ctx.Args().Get(0) + " " + ctx.Args().Get(1), nil
}

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling to JSON: %w", err)
	}
	if _, err := fmt.Fprintf(w, "%s\n", data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	return nil
}
