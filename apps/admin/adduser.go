package main

import (
	"context"

	"github.com/trezcool/cetrack/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(email, name, pwd string, isAdmin bool) error {
	nu := user.NewUser{
		Email:       email,
		DisplayName: name,
		Password:    pwd,
		Role:        user.RoleTeacher,
	}
	if isAdmin {
		nu.Role = user.RoleAdmin
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	_, err := cli.usrSvc.AddOrUpdate(context.Background(), nu)
	return err
}
