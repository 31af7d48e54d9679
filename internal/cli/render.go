package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/picklr-io/ggprov/internal/engine"
	"github.com/picklr-io/ggprov/providers/iot"
)

var (
	renderTemplate string
	renderBindings []string
	renderRequired []string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a policy or job document template",
	Long: `Substitutes ${Name} placeholders in a template with the given bindings
and prints the result. Without -t the default device policy is rendered.`,
	Example: `  ggprov render -b ThingName=dev-1 -b Region=us-east-1 -b AccountId=123456789012
  ggprov render -t job.json -b DeploymentName=rollout-1 -r DeploymentName`,
	RunE: runRender,
}

func init() {
	renderCmd.Flags().StringVarP(&renderTemplate, "template", "t", "", "template file (default: device policy)")
	renderCmd.Flags().StringArrayVarP(&renderBindings, "bind", "b", nil, "binding key=value (repeatable)")
	renderCmd.Flags().StringSliceVarP(&renderRequired, "require", "r", nil, "bindings that must be present")
}

func runRender(cmd *cobra.Command, args []string) error {
	bindings, err := parseBindings(renderBindings)
	if err != nil {
		return err
	}

	tmpl := iot.DefaultDevicePolicy
	if renderTemplate != "" {
		b, err := os.ReadFile(renderTemplate)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		tmpl = string(b)
	}

	out, err := engine.RenderDocument(tmpl, bindings, renderRequired...)
	if err != nil {
		return err
	}

	var pretty bytes.Buffer
	if json.Indent(&pretty, []byte(out), "", "  ") == nil {
		out = pretty.String()
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
