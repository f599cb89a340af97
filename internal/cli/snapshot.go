package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/rcavanagh/sitesentry/internal/errors"
	"github.com/rcavanagh/sitesentry/internal/host"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Capture a vitals snapshot now",
	RunE:  runSnapshot,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Run a verification cycle against the latest pre-change baseline",
	RunE:  runVerify,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	rootCmd.AddCommand(verifyCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	snapCfg, err := requireConfig()
	if err != nil {
		return err
	}

	st, err := buildStack(snapCfg)
	if err != nil {
		return err
	}
	defer st.close()

	snap := st.prober.Capture(context.Background(), "manual")
	id, err := st.snaps.Save("", snap)
	if err != nil {
		return err
	}

	fmt.Printf("Snapshot %s captured in %dms\n", id, snap.CaptureDurationMS)
	for name, check := range snap.Checks {
		line := fmt.Sprintf("  %-14s %s", name, check.Status)
		if check.HTTPStatus > 0 {
			line += fmt.Sprintf("  http=%d %dms", check.HTTPStatus, check.ResponseMS)
		}
		if check.Error != "" {
			line += "  " + check.Error
		}
		fmt.Println(line)
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	verifyCfg, err := requireConfig()
	if err != nil {
		return err
	}

	st, err := buildStack(verifyCfg)
	if err != nil {
		return err
	}
	defer st.close()

	// Deferred work (warning re-checks, rollback verification) needs the
	// scheduler running even for a one-shot verify.
	st.sched.Start()
	defer st.sched.Stop()

	cmp, err := st.coordinator.Verify(host.ChangeContext{
		Type:   host.ChangeManual,
		Action: "verify",
	})
	if errors.Is(err, apperrors.ErrNoBaseline) {
		fmt.Println("No pre-change baseline stored; nothing to compare.")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Verdict: %s (%d checks compared)\n", cmp.Verdict, cmp.ChecksCompared)
	for _, issue := range cmp.Issues {
		fmt.Printf("  [%s] %s %s: %v -> %v\n", issue.Severity, issue.Check, issue.Type, issue.Before, issue.After)
	}
	for _, imp := range cmp.Improvements {
		fmt.Printf("  [improved] %s %s: %v -> %v\n", imp.Check, imp.Type, imp.Before, imp.After)
	}
	return nil
}
