package main

import (
	"github.com/najoast/runtimeapi/bootstrap"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the runtime API subsystem",
	Long: `Run the runtime API subsystem with its state provider and monitor. The
process runs until it receives SIGINT or SIGTERM, or the subsystem fails.
Changes to the config file and the snapshot are picked up while running.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}

		var opts []bootstrap.Option
		if path != "" {
			opts = append(opts, bootstrap.WithConfigFile(path))
		}

		app, err := bootstrap.NewApplication(cfg, opts...)
		if err != nil {
			return err
		}
		return app.Run(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
