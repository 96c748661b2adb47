package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/notification"
)

// notify runs one scheduled email job; cron invokes it.
// Undelivered emails fail the command once every recipient has been tried.
func (cli *commandLine) notify(ctx context.Context, job string) error {
	var run func(context.Context) (notification.BatchResult, error)
	switch job {
	case "daily-reminder":
		run = cli.notifier.SendDailyAttendanceReminder
	case "weekly-summary":
		run = cli.notifier.SendWeeklyPerformanceEmail
	case "daily-report":
		run = cli.notifier.SendDailyReport
	default:
		cli.printUsage()
		return errHelp
	}

	res, err := run(ctx)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%s: %d sent, %d failed\n", job, res.Sent, res.Failed)
	if res.Failed > 0 {
		return errors.Errorf("%s: %d emails could not be delivered", job, res.Failed)
	}
	return nil
}
