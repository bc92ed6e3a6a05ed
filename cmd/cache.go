package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/kyleking/docs2ddl/internal/cache"
	"github.com/kyleking/docs2ddl/internal/source"
)

// cacheClearOptions narrows cache clear to the configured source
type cacheClearOptions struct {
	Repos         []string
	CurrentSource bool
}

func (o cacheClearOptions) scoped() bool {
	return o.CurrentSource || len(o.Repos) > 0
}

func CacheCommand() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the repository listing cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Display listing cache statistics per source",
				Action: func(ctx context.Context, _ *cli.Command) error {
					return runCacheStats(ctx)
				},
			},
			{
				Name:  "clear",
				Usage: "Remove cached listings",
				Description: `Delete cached repository and file listings so the next command lists them from the host again.

Without flags every source is cleared. --source limits it to the configured
source and --repo to the file listings of the named repositories.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "source", Usage: "Only clear listings of the configured source"},
					&cli.StringSliceFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Only clear listings of this repository (repeatable)"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runCacheClear(ctx, cacheClearOptions{
						Repos:         cmd.StringSlice("repo"),
						CurrentSource: cmd.Bool("source"),
					})
				},
			},
		},
	}
}

// openCache opens the listing cache without background cleanup
func openCache(ctx context.Context) (*cache.FileCache, error) {
	cfg := getConfigFromContext(ctx)

	fc, err := cache.NewFileCache(cfg.Cache.Directory, cfg.Cache.MaxSizeMB, cfg.Cache.ListingTTLDuration(), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}

	return fc, nil
}

func runCacheStats(ctx context.Context) error {
	fc, err := openCache(ctx)
	if err != nil {
		return err
	}

	defer fc.Close()

	return runCacheStatsWithCache(ctx, fc)
}

func runCacheStatsWithCache(ctx context.Context, c cache.Cache) error {
	stats, err := c.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cache statistics: %w", err)
	}

	fmt.Printf("Cache Statistics\n")
	fmt.Printf("================\n\n")
	fmt.Printf("Directory: %s\n", getConfigFromContext(ctx).Cache.Directory)
	fmt.Printf("Entries: %d\n", stats.Entries)
	fmt.Printf("Size: %.2f MB\n", float64(stats.Size)/(1024*1024))

	if len(stats.Namespaces) == 0 {
		return nil
	}

	fmt.Println()

	rows := make([][]string, len(stats.Namespaces))
	for i, ns := range stats.Namespaces {
		rows[i] = []string{
			ns.Namespace,
			strconv.Itoa(ns.Entries),
			strconv.Itoa(ns.Expired),
			fmt.Sprintf("%.1f KB", float64(ns.Size)/1024),
			ns.Oldest.Local().Format("2006-01-02 15:04:05"),
		}
	}

	return renderTable(os.Stdout, []string{"Source", "Listings", "Expired", "Size", "Oldest"}, rows)
}

func runCacheClear(ctx context.Context, opts cacheClearOptions) error {
	fc, err := openCache(ctx)
	if err != nil {
		return err
	}

	defer fc.Close()

	return runCacheClearWithCache(ctx, opts, fc, nil)
}

// runCacheClearWithCache clears c; provider names the namespace for scoped
// clears and is built from the configuration when nil
func runCacheClearWithCache(ctx context.Context, opts cacheClearOptions, c cache.Cache, provider source.Provider) error {
	if !opts.scoped() {
		removed, err := c.Remove(ctx, "", nil)
		if err != nil {
			return fmt.Errorf("failed to clear cache: %w", err)
		}

		fmt.Printf("Removed %d cached listings.\n", removed)
		fmt.Println("Cache cleared successfully.")

		return nil
	}

	if provider == nil {
		var err error

		provider, err = source.New(getConfigFromContext(ctx).Source)
		if err != nil {
			return err
		}
	}

	removed, err := source.NewCachedProvider(provider, c).Invalidate(ctx, opts.Repos...)
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	fmt.Printf("Removed %d cached listings for %s.\n", removed, provider.Name())

	return nil
}
