package main

import (
	"context"
	"fmt"

	"github.com/trezcool/academia/core"
)

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	email = core.CleanString(email, true /* lower */)
	if err := cli.usrSvc.SetPassword(ctx, email, pwd); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "Password updated: %s\n", email)
	return nil
}
