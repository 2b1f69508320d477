package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/gqlcache/internal/fetchopts"
	"github.com/roach88/gqlcache/internal/fingerprint"
)

// FingerprintOptions holds flags for the fingerprint command.
type FingerprintOptions struct {
	*RootOptions
	RequestFlags
}

// FingerprintOutput is the JSON payload of the fingerprint command.
type FingerprintOutput struct {
	Fingerprint string `json:"fingerprint"`
	URL         string `json:"url"`
	Method      string `json:"method"`
	ContentType string `json:"content_type"`
	Multipart   bool   `json:"multipart"`
}

// NewFingerprintCommand creates the fingerprint command.
func NewFingerprintCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FingerprintOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fingerprint <query>",
		Short: "Print the cache key of an operation",
		Long: `Build the request parameters of an operation and print its fingerprint.

The fingerprint is the cache key the engine stores results under. Servers
and clients must agree on it for a hydrated cache to be hit.

Examples:
  gqlcache fingerprint '{ viewer { login } }'
  gqlcache fingerprint '{ viewer { login } }' --header Authorization='Bearer x'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFingerprint(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Vars, "var", nil, "variable as name=json (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Files, "file", nil, "upload variable as name=path (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Headers, "header", nil, "request header as name=value (repeatable)")
	cmd.Flags().StringVar(&opts.URL, "url", "", "request URL (default "+fetchopts.DefaultURL+")")

	return cmd
}

func runFingerprint(opts *FingerprintOptions, query string, cmd *cobra.Command) error {
	out := NewFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	op, err := opts.operation(query)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid operation", err)
	}
	override, err := opts.override(opts.Config.Headers)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid request flags", err)
	}

	params, key, err := fingerprint.ForOperation(op, override, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build request", err)
	}

	_, multipart := params.Body.(*fetchopts.MultipartForm)
	result := FingerprintOutput{
		Fingerprint: key,
		URL:         params.URL,
		Method:      params.Method,
		ContentType: params.Headers["Content-Type"],
		Multipart:   multipart,
	}
	if multipart {
		result.ContentType = "multipart/form-data"
	}

	if out.JSON() {
		return out.Success(result)
	}
	fmt.Fprintf(out.Writer, "fingerprint:  %s\n", result.Fingerprint)
	fmt.Fprintf(out.Writer, "url:          %s\n", result.URL)
	fmt.Fprintf(out.Writer, "method:       %s\n", result.Method)
	fmt.Fprintf(out.Writer, "content-type: %s\n", result.ContentType)
	return nil
}
