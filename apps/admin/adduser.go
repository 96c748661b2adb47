package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// addUser registers a user of any role, applying the same checks as the public sign-up.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if core.CleanString(nu.Username) == "" {
		local := strings.SplitN(core.CleanString(nu.Email, true /* lower */), "@", 2)[0]
		nu.Username = strings.NewReplacer(".", "_", "-", "_", "+", "_").Replace(local)
	}
	usr, err := cli.usrSvc.Register(ctx, nu)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "User created: %s (%s)\n", usr.Email, usr.Role)
	return nil
}
