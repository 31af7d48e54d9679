package cli

import (
	"context"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/picklr-io/ggprov/internal/provider"
	"github.com/picklr-io/ggprov/providers/iot"
	"github.com/picklr-io/ggprov/providers/null"
)

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List resource kinds and their create and delete steps",
	RunE:  runKinds,
}

func runKinds(cmd *cobra.Command, args []string) error {
	reg := provider.NewRegistry()
	client := null.New()
	iot.Register(reg, func(ctx context.Context) (iot.Client, error) { return client, nil }, kindOptions(cfg))

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.AppendHeader(table.Row{"Kind", "ResourceType", "Create steps", "Delete steps"})
	for _, name := range reg.Names() {
		k, err := reg.LoadKind(cmd.Context(), name)
		if err != nil {
			return err
		}
		create, del := provider.StepNames(k)
		tw.AppendRow(table.Row{name, "Custom::" + name, strings.Join(create, "\n"), strings.Join(del, "\n")})
		tw.AppendSeparator()
	}
	tw.Render()
	return nil
}
