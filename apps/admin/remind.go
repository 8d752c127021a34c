package main

import (
	"context"

	"github.com/spf13/cobra"
)

func (cli *commandLine) remindCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Email users who joined some days ago and did not enroll in any course yet",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cli.remind(days)
		},
	}
	cmd.Flags().IntVar(&days, "days", cli.conf.Reminders.Days, "minimum number of days since the user joined")
	return cmd
}

func (cli *commandLine) remind(days int) error {
	n, err := cli.enrollSvc.SendEnrollReminders(context.Background(), days)
	if err != nil {
		return err
	}
	cli.printf("Sent %d reminders.\n", n)
	return nil
}
