package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/picklr-io/ggprov/internal/config"
	"github.com/picklr-io/ggprov/internal/logging"
)

var (
	v   = config.New()
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ggprov",
	Short: "Custom resource reconcilers for IoT device fleets",
	Long: `ggprov provisions and tears down IoT fleet resources in response to
CloudFormation custom resource requests:

  CredentialBinding  IAM role plus an IoT role alias for token exchange
  DeviceIdentity     thing, certificate, policy and stored credentials
  DeviceGroup        thing group and its members
  FleetDeployment    an IoT job targeting devices or groups

Run "ggprov lambda" as the function handler, or "ggprov invoke" to
reconcile a request file locally.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.InitWithFormat(cfg.LogLevel, cfg.LogFormat, os.Stderr)
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := config.AddFlags(rootCmd, v); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(lambdaCmd)
	rootCmd.AddCommand(invokeCmd)
	rootCmd.AddCommand(kindsCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(journalCmd)
	rootCmd.AddCommand(versionCmd)
}

// bindLocal binds a command-local flag to a config key.
func bindLocal(cmd *cobra.Command, key string) {
	_ = v.BindPFlag(key, cmd.Flags().Lookup(key))
}
