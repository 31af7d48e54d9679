package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/picklr-io/ggprov/internal/config"
	"github.com/picklr-io/ggprov/internal/eval"
	"github.com/picklr-io/ggprov/internal/respond"
	"github.com/picklr-io/ggprov/providers/null"
)

var (
	invokeFile  string
	invokeProps []string
)

var invokeCmd = &cobra.Command{
	Use:   "invoke",
	Short: "Reconcile one request file locally",
	Long: `Reads a custom resource request from a JSON or Pkl file, reconciles it
and prints the response that would be sent to CloudFormation.

With --dry-run the request is reconciled against an in-memory client and
the calls it made are listed.`,
	Example: `  ggprov invoke -f create-device.json --dry-run
  ggprov invoke -f device.pkl -p thingName=dev-1 --kind DeviceIdentity`,
	RunE: runInvoke,
}

func init() {
	invokeCmd.Flags().StringVarP(&invokeFile, "file", "f", "", "request file (.json or .pkl)")
	invokeCmd.Flags().StringArrayVarP(&invokeProps, "prop", "p", nil, "external Pkl property key=value (repeatable)")
	invokeCmd.Flags().Bool(config.KeyDryRun, false, "reconcile against an in-memory client")
	_ = invokeCmd.MarkFlagRequired("file")
	bindLocal(invokeCmd, config.KeyDryRun)
}

func runInvoke(cmd *cobra.Command, args []string) error {
	props, err := parseBindings(invokeProps)
	if err != nil {
		return err
	}

	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	ev, err := eval.NewEvaluator(wd).LoadEvent(cmd.Context(), invokeFile, props)
	if err != nil {
		return err
	}

	client := newClient(cfg)

	h := &respond.Handler{
		Reconciler: newDispatcher(cfg, client),
		Responder:  respond.Writer{W: cmd.OutOrStdout()},
	}
	if err := h.Handle(cmd.Context(), ev); err != nil {
		return err
	}

	if nc, ok := client.(*null.Client); ok {
		printCalls(cmd, nc.Calls())
	}
	return nil
}

func printCalls(cmd *cobra.Command, calls []string) {
	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetTitle("Planned calls")
	tw.AppendHeader(table.Row{"#", "Call"})
	for i, c := range calls {
		tw.AppendRow(table.Row{i + 1, c})
	}
	tw.Render()
}

// parseBindings turns key=value pairs into a map.
func parseBindings(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, val, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid binding %q, expected key=value", p)
		}
		out[k] = val
	}
	return out, nil
}
