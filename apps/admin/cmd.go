package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/cetrack/core/student"
	"github.com/trezcool/cetrack/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	usrSvc     *user.Service
	studentSvc *student.Service
	validate   *validator.Validate
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix)")
	fmt.Println("  adduser -email EMAIL -name NAME [-admin] - create or update a teacher account")
	fmt.Println("  resetpassword -email EMAIL - reset a teacher's password")
	fmt.Println("  setcode -studentno STUDENT_NO - set a student's login code")
}

// prompt reads a secret from the terminal without echoing it.
func prompt(label string) (string, error) {
	fmt.Print(label)
	secret, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(secret), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserName := addUserCmd.String("name", "", "The user's display name.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the ADMIN role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	setCodeCmd := flag.NewFlagSet("setcode", flag.ContinueOnError)
	setCodeStudentNo := setCodeCmd.String("studentno", "", "The student number. The code will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" || *addUserName == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := prompt("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserEmail, *addUserName, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := prompt("Enter password:")
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "setcode":
		if err := setCodeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *setCodeStudentNo == "" {
			setCodeCmd.Usage()
			return errHelp
		}
		code, err := prompt("Enter code:")
		if err != nil {
			return err
		}
		if code == "" {
			setCodeCmd.Usage()
			return errHelp
		}
		return cli.setCode(*setCodeStudentNo, code)

	default:
		cli.printUsage()
		return errHelp
	}
}
