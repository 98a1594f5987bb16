package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/adverant/nexus/labelcompose-worker/internal/catalog"
)

// runCatalog manages the Redis catalog shared with the worker
func runCatalog(ctx context.Context, env *cliEnv, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("catalog needs a subcommand: show or import")
	}

	client, err := env.redisClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()
	store := catalog.NewRedisStore(client, env.cfg.CatalogRedisKey)

	switch args[0] {
	case "show":
		fs := flag.NewFlagSet("catalog show", flag.ContinueOnError)
		codesOnly := fs.Bool("codes", false, "print only the catalogued tracking codes")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		m, err := store.Snapshot(ctx)
		if err != nil {
			return err
		}
		if *codesOnly {
			for _, code := range m.Codes() {
				fmt.Println(code)
			}
			return nil
		}
		data, err := catalog.Marshal(m)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err

	case "import":
		fs := flag.NewFlagSet("catalog import", flag.ContinueOnError)
		replace := fs.Bool("replace", false, "replace the stored catalog instead of merging")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if fs.NArg() == 0 {
			return fmt.Errorf("catalog import needs at least one file")
		}

		m, err := loadCatalogFiles(fs.Args())
		if err != nil {
			return err
		}
		if *replace {
			err = store.Replace(ctx, m)
		} else {
			err = store.Merge(ctx, m)
		}
		if err != nil {
			return err
		}
		env.logger.Info("Catalog imported", "files", fs.NArg(), "codes", m.Len(), "replace", *replace)
		return nil

	default:
		return fmt.Errorf("unknown catalog subcommand %q", args[0])
	}
}

// loadCatalogFiles reads files in order; later files override earlier ones
// code by code
func loadCatalogFiles(paths []string) (catalog.Map, error) {
	var merged catalog.Map
	for _, path := range paths {
		m, err := catalog.LoadFile(path)
		if err != nil {
			return catalog.Map{}, fmt.Errorf("%s: %w", path, err)
		}
		merged = merged.Merge(m)
	}
	return merged, nil
}
