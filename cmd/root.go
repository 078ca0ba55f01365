/*
Copyright © 2026 Deutsche Telekom AG
*/
package cmd

import (
	"flag"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/telekom/appgw-provisioner/internal/system"
)

var (
	verbosity int
	opsAddr   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "appgw-provision",
	Short: "Converge an application gateway to serve HTTPS",
	Long: `appgw-provision drives a gateway, a vault, a self-signed certificate
and the role assignments between them to a single desired end state:
an HTTPS listener on the gateway backed by a vault-held certificate
that the gateway reads through its system-assigned identity.

Every step observes before it acts, so re-running the command against
an already converged scope changes nothing.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = flag.Set("v", strconv.Itoa(verbosity))
		log := klog.NewKlogr()
		log.Info("app info", "name", system.Name, "version", system.Version, "commit", system.Commit)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	klog.InitFlags(nil)

	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 2, "Log level (0-9)")
	rootCmd.PersistentFlags().StringVar(&opsAddr, "ops-bind-address", "", "The address the metrics and health endpoint binds to. Empty disables the endpoint.")
}
