package main

import (
	"context"

	"github.com/trezcool/sistira/core/user"
)

// superuser is the actor allowed to create admins from the command line.
var superuser = &user.User{IsAdmin: true}

func (cli *commandLine) createSuperuser(name, uname, email, pwd string) error {
	ctx := context.Background()
	nu := user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		IsAdmin:         true,
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	_, err := cli.usrSvc.Create(ctx, superuser, nu)
	return err
}
