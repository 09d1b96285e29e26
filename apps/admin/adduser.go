package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(name, uname, email, pwd, role string) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	if user.RolePriority(role) == 0 {
		return fmt.Errorf("%q: unknown role", role)
	}

	now := time.Now().UTC()
	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Username: uname})
	create := false
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		create = true
		usr = user.User{Username: uname, CreatedAt: now}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	if email != "" {
		usr.Email = email
	}
	usr.Role = role
	usr.IsActive = true
	usr.UpdatedAt = now
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}

	if create {
		if err := cli.usrRepo.CheckUniqueness(ctx, usr.Username, usr.Email); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
	} else {
		if err := cli.usrRepo.CheckUniqueness(ctx, usr.Username, usr.Email, usr); err != nil {
			return err
		}
		_, err = cli.usrRepo.UpdateUser(ctx, usr)
	}
	return err
}
