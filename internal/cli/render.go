package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/gqlcache/internal/engine"
	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/report"
	"github.com/roach88/gqlcache/internal/ssr"
	"github.com/roach88/gqlcache/internal/store"
	"github.com/roach88/gqlcache/internal/transport"
)

// RenderOptions holds flags for the render command.
type RenderOptions struct {
	*RootOptions
	Endpoint string
	Headers  []string
	Hydrate  string
	Export   string
	Database string
	Label    string
	S3Bucket string
	S3Prefix string
	S3Region string
}

// RenderOutput is the JSON payload of the render command.
type RenderOutput struct {
	Output       string          `json:"output"`
	Passes       int             `json:"passes"`
	Awaited      int             `json:"awaited"`
	Fingerprints []string        `json:"fingerprints"`
	Snapshot     *store.Snapshot `json:"snapshot,omitempty"`
	S3Key        string          `json:"s3_key,omitempty"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RenderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "render <page.yaml>",
		Short: "Server-render a page of operations",
		Long: `Server-render a YAML page of widgets.

The page is rendered repeatedly until a pass starts no new operation. The
resulting cache is the hydration payload: it can be written to a file,
stored as a snapshot in SQLite, or uploaded to S3.

Examples:
  gqlcache render page.yaml --endpoint https://api.example.com
  gqlcache render page.yaml --export hydration.json
  gqlcache render page.yaml --db ./snapshots.db --label /profile
  gqlcache render page.yaml --hydrate hydration.json
  gqlcache render page.yaml --s3-bucket my-bucket --s3-prefix pages/`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "GraphQL endpoint (default from config)")
	cmd.Flags().StringArrayVar(&opts.Headers, "header", nil, "request header as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.Hydrate, "hydrate", "", "seed the cache from an exported hydration file")
	cmd.Flags().StringVar(&opts.Export, "export", "", "write the hydration JSON to this file")
	cmd.Flags().StringVar(&opts.Database, "db", "", "store the cache as a snapshot in this SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "snapshot label (default: page file name)")
	cmd.Flags().StringVar(&opts.S3Bucket, "s3-bucket", "", "upload the hydration JSON to this bucket (default from config)")
	cmd.Flags().StringVar(&opts.S3Prefix, "s3-prefix", "", "object key prefix (default from config)")
	cmd.Flags().StringVar(&opts.S3Region, "s3-region", "", "AWS region (default from config or AWS chain)")

	return cmd
}

func runRender(opts *RenderOptions, path string, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	page, err := LoadPage(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid page", err)
	}
	override, err := RequestFlags{Headers: opts.Headers}.override(opts.Config.Headers)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request flags", err)
	}

	seed := gql.Cache{}
	if opts.Hydrate != "" {
		data, err := os.ReadFile(opts.Hydrate)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read hydration file", err)
		}
		if seed, err = gql.UnmarshalCache(data); err != nil {
			return WrapExitError(ExitCommandError, "invalid hydration file", err)
		}
		out.VerboseLog("hydrated %d entries from %s", len(seed), opts.Hydrate)
	}

	eng := engine.New(
		engine.WithFetcher(transport.NewHTTP(firstNonEmpty(opts.Endpoint, opts.Config.Endpoint))),
		engine.WithContext(ctx),
		engine.WithCache(seed),
	)
	detach := report.Attach(eng, nil)
	defer detach()

	rendered, stats, err := ssr.RenderWithStats(ctx, eng, page, pageRenderer(override))
	if err != nil {
		return WrapExitError(ExitCommandError, "render failed", err)
	}
	out.VerboseLog("rendered in %d passes, awaited %d operations", stats.Passes, stats.Awaited)

	cache := eng.Cache()
	result := RenderOutput{
		Output:       rendered,
		Passes:       stats.Passes,
		Awaited:      stats.Awaited,
		Fingerprints: cache.Keys(),
	}

	if err := exportCache(opts, cache, out); err != nil {
		return err
	}
	if result.Snapshot, err = snapshotCache(ctx, opts, path, cache, out); err != nil {
		return err
	}
	if result.S3Key, err = uploadCache(ctx, opts, path, cache, out); err != nil {
		return err
	}

	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprint(out.Writer, rendered)
	return nil
}

func exportCache(opts *RenderOptions, cache gql.Cache, out *OutputFormatter) error {
	if opts.Export == "" {
		return nil
	}
	data, err := gql.MarshalCache(cache)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode cache", err)
	}
	if err := os.WriteFile(opts.Export, data, 0o644); err != nil {
		return WrapExitError(ExitCommandError, "failed to write hydration file", err)
	}
	out.VerboseLog("exported %d entries to %s", len(cache), opts.Export)
	return nil
}

func snapshotCache(ctx context.Context, opts *RenderOptions, path string, cache gql.Cache, out *OutputFormatter) (*store.Snapshot, error) {
	db := firstNonEmpty(opts.Database, opts.Config.SnapshotDB)
	if db == "" {
		return nil, nil
	}
	st, err := store.Open(db)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	snap, err := st.WriteSnapshot(ctx, firstNonEmpty(opts.Label, pageName(path)), cache)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to store snapshot", err)
	}
	out.VerboseLog("stored snapshot %s", snap.ID)
	return &snap, nil
}

func uploadCache(ctx context.Context, opts *RenderOptions, path string, cache gql.Cache, out *OutputFormatter) (string, error) {
	bucket := firstNonEmpty(opts.S3Bucket, opts.Config.S3.Bucket)
	if bucket == "" {
		return "", nil
	}
	cfg, err := store.LoadAWSConfig(ctx, firstNonEmpty(opts.S3Region, opts.Config.S3.Region))
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to load AWS config", err)
	}
	sink := store.NewS3Sink(store.NewS3Client(cfg), bucket, firstNonEmpty(opts.S3Prefix, opts.Config.S3.Prefix))

	name := pageName(path) + ".json"
	if err := sink.Put(ctx, name, cache); err != nil {
		return "", WrapExitError(ExitCommandError, "failed to upload cache", err)
	}
	out.VerboseLog("uploaded s3://%s/%s", bucket, sink.Key(name))
	return sink.Key(name), nil
}

// pageName is the page file name without its extension.
func pageName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
