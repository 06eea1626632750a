package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/vjranagit/embedded/internal/config"
	"github.com/vjranagit/embedded/internal/logger"
	"github.com/vjranagit/embedded/pkg/provider"
	"github.com/vjranagit/embedded/pkg/storage"
	"github.com/vjranagit/embedded/pkg/types"
)

const (
	version = "0.1.0"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := app().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func app() *cli.Command {
	return &cli.Command{
		Name:    "embedded",
		Usage:   "maintain and query embedded analytics stores",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files loaded before reading the environment",
				Value: []string{".env"},
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "insert",
				Usage:     "furnish and insert a batch of documents",
				ArgsUsage: "<documents.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "collection", Aliases: []string{"c"}, Usage: "collection definition file", Required: true},
				},
				Action: withProvider(insert),
			},
			{
				Name:      "query",
				Usage:     "run a query and print the merged rows",
				ArgsUsage: "<query.json>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "workspace", Aliases: []string{"w"}, Usage: "workspace to query"},
					&cli.StringSliceFlag{Name: "collection", Aliases: []string{"c"}, Usage: "collection definition files consulted while planning"},
					&cli.BoolFlag{Name: "plan", Usage: "print the query plan without executing it"},
				},
				Action: withProvider(runQuery),
			},
			{
				Name:      "stats",
				Usage:     "print document count and size of a namespace",
				ArgsUsage: "<namespace>",
				Action:    withProvider(stats),
			},
			{
				Name:      "drop",
				Usage:     "remove a namespace and its files",
				ArgsUsage: "<namespace>",
				Action:    withProvider(drop),
			},
		},
	}
}

type providerAction func(ctx context.Context, cmd *cli.Command, p *provider.Provider) error

func withProvider(action providerAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := config.Load(cmd.StringSlice("env-file")...)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
		p, err := provider.New(cfg.ToProviderOptions(log))
		if err != nil {
			return err
		}
		defer p.Destroy()

		return action(ctx, cmd, p)
	}
}

func insert(ctx context.Context, cmd *cli.Command, p *provider.Provider) error {
	var coll types.Collection
	if err := readJSON(cmd.String("collection"), &coll); err != nil {
		return err
	}
	var docs []storage.Document
	if err := readJSON(cmd.Args().First(), &docs); err != nil {
		return err
	}

	res, err := p.Insert(ctx, &coll, docs)
	if err != nil {
		return err
	}
	return writeJSON(cmd.Root().Writer, res)
}

func runQuery(ctx context.Context, cmd *cli.Command, p *provider.Provider) error {
	for _, file := range cmd.StringSlice("collection") {
		var coll types.Collection
		if err := readJSON(file, &coll); err != nil {
			return err
		}
		if err := p.Catalog().Register(&coll); err != nil {
			return err
		}
	}

	var q types.Query
	if err := readJSON(cmd.Args().First(), &q); err != nil {
		return err
	}

	if cmd.Bool("plan") {
		plan, err := p.BuildQueryPlan(&q)
		if err != nil {
			return err
		}
		return writeJSON(cmd.Root().Writer, plan)
	}

	res, err := p.Query(ctx, cmd.String("workspace"), &q)
	if err != nil {
		return err
	}
	return writeJSON(cmd.Root().Writer, res)
}

func stats(ctx context.Context, cmd *cli.Command, p *provider.Provider) error {
	namespace, err := requireArg(cmd, "namespace")
	if err != nil {
		return err
	}
	res, err := p.Stats(ctx, namespace)
	if err != nil {
		return err
	}
	return writeJSON(cmd.Root().Writer, res)
}

func drop(ctx context.Context, cmd *cli.Command, p *provider.Provider) error {
	namespace, err := requireArg(cmd, "namespace")
	if err != nil {
		return err
	}
	return p.Drop(namespace)
}

func requireArg(cmd *cli.Command, name string) (string, error) {
	v := cmd.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	return v, nil
}

// readJSON decodes a JSON file. A path of "-" or "" reads stdin.
func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	dec := json.NewDecoder(r)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	if w == nil {
		w = os.Stdout
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
