package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/sqlquest/internal/logx"
	"github.com/verte-zerg/sqlquest/internal/reminder"
)

var remindAt []string

func newRemindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Print daily practice reminders until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runRemindCmd,
	}
	cmd.Flags().StringSliceVar(&remindAt, "at", nil, "reminder times as HH:MM (default: [reminders] times)")
	return cmd
}

func runRemindCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := loadFileConfig(cmd)
	if err != nil {
		return err
	}
	times := fileCfg.Reminders.Times
	if cmd.Flags().Changed("at") {
		times = remindAt
	}
	clocks, err := reminder.ParseTimes(times)
	if err != nil {
		logx.Errf("ignoring reminder times: %v\n", err)
	}
	if len(clocks) == 0 {
		return fmt.Errorf("no reminder times configured (use --at or [reminders] times)")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runReminders(ctx, cmd.OutOrStdout(), reminder.NewScheduler(alertPrinter(cmd.OutOrStdout())), clocks)
}

func runReminders(ctx context.Context, w io.Writer, sched *reminder.Scheduler, clocks []reminder.Clock) error {
	labels := make([]string, len(clocks))
	for i, c := range clocks {
		labels[i] = c.String()
	}
	sched.Schedule(ctx, clocks)
	if _, err := fmt.Fprintf(w, "Reminders at %s. Press ctrl+c to stop.\n", strings.Join(labels, ", ")); err != nil {
		logx.Errf("failed to write output: %v\n", err)
	}
	<-ctx.Done()
	sched.Wait()
	return nil
}

// alertPrinter serializes output from the scheduler goroutines.
func alertPrinter(w io.Writer) reminder.Handler {
	var mu sync.Mutex
	return func(a reminder.Alert) {
		mu.Lock()
		defer mu.Unlock()
		if _, err := fmt.Fprintf(w, "[%s] %s %s\n", a.At.Format("15:04"), a.Title, a.Body); err != nil {
			logx.Errf("failed to print reminder: %v\n", err)
		}
	}
}
