package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/roach88/gqlcache/internal/engine"
	"github.com/roach88/gqlcache/internal/gql"
	"github.com/roach88/gqlcache/internal/report"
	"github.com/roach88/gqlcache/internal/transport"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	RequestFlags
	Endpoint string
	Select   string
}

// FetchOutput is the JSON payload of the fetch command.
type FetchOutput struct {
	Fingerprint string     `json:"fingerprint"`
	Result      gql.Result `json:"result"`
	Selected    any        `json:"selected,omitempty"`
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FetchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fetch <query>",
		Short: "Run one GraphQL operation",
		Long: `Run one GraphQL operation against an endpoint and print the result.

Failures are part of the result: transport errors, non-2xx statuses,
undecodable bodies and GraphQL errors are printed and exit with code 1.

Examples:
  gqlcache fetch '{ viewer { login } }' --endpoint https://api.example.com
  gqlcache fetch 'query ($id: ID!) { user(id: $id) { name } }' --var id='"42"'
  gqlcache fetch '{ viewer { login } }' --select viewer.login
  gqlcache fetch 'mutation ($f: Upload!) { upload(file: $f) }' --file f=./a.png`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "GraphQL endpoint (default from config)")
	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "variable as name=json (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Files, "file", nil, "upload variable as name=path (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Headers, "header", nil, "request header as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "request URL, resolved against the endpoint")
	cmd.Flags().StringVar(&opts.Select, "select", "", "gjson path into the result data")

	return cmd
}

func runFetch(opts *FetchOptions, query string, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	op, err := opts.operation(query)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}
	override, err := opts.override(opts.Config.Headers)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request flags", err)
	}

	endpoint := firstNonEmpty(opts.Endpoint, opts.Config.Endpoint)
	out.VerboseLog("endpoint: %s", endpoint)

	eng := engine.New(
		engine.WithFetcher(transport.NewHTTP(endpoint)),
		engine.WithContext(ctx),
	)
	detach := report.Attach(eng, nil)
	defer detach()

	started, err := eng.Operate(op, engine.OperateOptions{FetchOptionsOverride: override})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start operation", err)
	}
	out.VerboseLog("fingerprint: %s", started.Fingerprint)

	result, err := started.Handle.Wait(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "interrupted", err)
	}

	payload := FetchOutput{Fingerprint: started.Fingerprint, Result: result}
	var selected gjson.Result
	if opts.Select != "" && result.Data != nil {
		data, err := json.Marshal(result.Data)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode data", err)
		}
		selected = gjson.GetBytes(data, opts.Select)
		payload.Selected = selected.Value()
	}

	if out.JSON() {
		if err := out.Success(payload); err != nil {
			return err
		}
	} else {
		if err := printResult(out, result, opts.Select, selected); err != nil {
			return err
		}
	}

	if result.HasErrors() {
		return NewExitError(ExitFailure, "operation failed")
	}
	if opts.Select != "" && !selected.Exists() {
		return NewExitError(ExitFailure, fmt.Sprintf("select %q matched nothing", opts.Select))
	}
	return nil
}

func printResult(out *OutputFormatter, result gql.Result, path string, selected gjson.Result) error {
	switch {
	case path != "" && selected.Exists():
		fmt.Fprintln(out.Writer, selected.String())
	case path == "" && result.Data != nil:
		data, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode data", err)
		}
		fmt.Fprintln(out.Writer, string(data))
	}
	out.Lines(result.ErrorLines())
	return nil
}
