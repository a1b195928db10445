package main

import (
	"log"
	"os"

	"github.com/absmach/flround/cli"
	"github.com/absmach/flround/pkg/sdk"
	"github.com/spf13/cobra"
)

const (
	defCoordinatorURL  = "http://localhost:9010"
	defTLSVerification = false
	envCoordinatorURL  = "FL_CLI_COORDINATOR_URL"
)

func main() {
	var (
		coordinatorURL  string
		tlsVerification bool
	)

	rootCmd := &cobra.Command{
		Use:   "flround",
		Short: "Federated rounds CLI",
		Long:  `flround runs and inspects round-based federated experiments.`,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			sdkConf := sdk.Config{
				CoordinatorURL:  coordinatorURL,
				TLSVerification: tlsVerification,
			}
			cli.SetSDK(sdk.NewSDK(sdkConf))
		},
	}

	url := defCoordinatorURL
	if v, ok := os.LookupEnv(envCoordinatorURL); ok {
		url = v
	}

	rootCmd.PersistentFlags().StringVarP(&coordinatorURL, "coordinator-url", "u", url, "Coordinator status API URL")
	rootCmd.PersistentFlags().BoolVar(&tlsVerification, "tls-verification", defTLSVerification, "Verify the coordinator TLS certificate")

	rootCmd.AddCommand(
		cli.NewRoundsCmd(),
		cli.NewSimulateCmd(),
		cli.NewConfigCmd(),
		cli.NewCoordinatorCmd(),
		cli.NewWorkerCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
