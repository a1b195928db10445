package cli

import (
	"strconv"

	"github.com/absmach/flround/pkg/sdk"
	"github.com/spf13/cobra"
)

var (
	defOffset uint64 = 0
	defLimit  uint64 = 10
)

var flsdk sdk.SDK

func SetSDK(s sdk.SDK) {
	flsdk = s
}

func NewRoundsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rounds [list|view|best]",
		Short: "Inspect completed rounds",
		Long:  `List and view the rounds recorded by a running coordinator.`,
	}

	var offset, limit uint64

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List rounds",
		Long:  `List completed rounds in ascending order.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			page, err := flsdk.ListRounds(offset, limit)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, page)
		},
	}

	listCmd.Flags().Uint64VarP(&offset, "offset", "o", defOffset, "Number of rounds to skip")
	listCmd.Flags().Uint64VarP(&limit, "limit", "l", defLimit, "Maximum number of rounds to return")

	viewCmd := &cobra.Command{
		Use:   "view <round>",
		Short: "View round",
		Long:  `View a completed round by its number.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 1 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			round, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}

			rec, err := flsdk.Round(round)
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, rec)
		},
	}

	bestCmd := &cobra.Command{
		Use:   "best",
		Short: "View best round",
		Long:  `View the best round selected by the coordinator.`,
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)

				return
			}

			rec, err := flsdk.Best()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, rec)
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Coordinator health",
		Long:  `Check that the coordinator is reachable.`,
		Run: func(cmd *cobra.Command, _ []string) {
			info, err := flsdk.Health()
			if err != nil {
				logErrorCmd(*cmd, err)

				return
			}
			logJSONCmd(*cmd, info)
		},
	}

	cmd.AddCommand(listCmd, viewCmd, bestCmd, healthCmd)

	return cmd
}
