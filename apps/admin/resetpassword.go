package main

import (
	"context"

	"github.com/trezcool/cetrack/core/student"
)

func (cli *commandLine) resetPassword(email, pwd string) error {
	return cli.usrSvc.ResetPassword(context.Background(), email, pwd)
}

// setCode replaces the default login code of a student.
func (cli *commandLine) setCode(studentNo, code string) error {
	ctx := context.Background()
	s, err := cli.studentSvc.GetByStudentNo(ctx, studentNo)
	if err != nil {
		return err
	}
	sc := student.SetLoginCode{Code: code}
	if err = sc.Validate(); err != nil {
		return err
	}
	return cli.studentSvc.SetLoginCode(ctx, s.ID, sc.Code)
}
