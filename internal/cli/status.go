package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show guard state and recent activity",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	statusCfg, err := requireConfig()
	if err != nil {
		return err
	}

	st, err := buildStack(statusCfg)
	if err != nil {
		return err
	}
	defer st.close()

	count, err := st.snaps.Count()
	if err != nil {
		return err
	}

	fmt.Printf("Site:       %s\n", statusCfg.SiteURL)
	if statusCfg.Hub.URL != "" {
		fmt.Printf("Hub:        %s (site key %s)\n", statusCfg.Hub.URL, statusCfg.Hub.SiteKey)
	} else {
		fmt.Println("Hub:        not configured")
	}
	fmt.Printf("Guard:      enabled=%v auto_rollback=%v\n", statusCfg.Guard.Enabled, statusCfg.Guard.AutoRollback)
	fmt.Printf("Snapshots:  %d stored\n", count)

	if last, err := st.snaps.Latest(); err == nil && last != nil {
		fmt.Printf("Last:       %s (%s, %d checks, %dms)\n",
			last.ID, last.Trigger, len(last.Checks), last.CaptureDurationMS)
	}

	events := st.log.Recent(5)
	if len(events) > 0 {
		fmt.Println("Recent events:")
		for _, e := range events {
			fmt.Printf("  %s  %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), e.Action)
		}
	}
	return nil
}
