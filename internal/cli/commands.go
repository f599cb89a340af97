package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Interact with the hub command queue",
}

var commandsPollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Run one command-queue poll cycle now",
	RunE:  runCommandsPoll,
}

func init() {
	commandsCmd.AddCommand(commandsPollCmd)
	rootCmd.AddCommand(commandsCmd)
}

func runCommandsPoll(cmd *cobra.Command, args []string) error {
	pollCfg, err := requireConfig()
	if err != nil {
		return err
	}

	st, err := buildStack(pollCfg)
	if err != nil {
		return err
	}
	defer st.close()

	processed, err := st.processor.RunCycle(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("Processed %d command(s)\n", processed)
	for _, result := range st.processor.RecentResults(processed) {
		if result.Success {
			fmt.Printf("  %s ok (%.2fs)\n", result.CommandID, result.ExecutionTime)
		} else {
			fmt.Printf("  %s FAILED: %s\n", result.CommandID, result.ErrorMessage)
		}
	}
	return nil
}
