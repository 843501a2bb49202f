package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/placegrade/core/allowlist"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	allowSvc   allowlist.Service
	validate   *validator.Validate
	translator ut.Translator
	in         io.Reader
	out        io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status...)")
	fmt.Fprintln(cli.out, "  allow -email EMAIL - allow an email to sign in")
	fmt.Fprintln(cli.out, "  disallow -email EMAIL [-yes] - remove an email from the allowed list")
	fmt.Fprintln(cli.out, "  list - list the allowed emails")
}

func (cli *commandLine) inFd() int {
	if f, ok := cli.in.(*os.File); ok {
		return int(f.Fd())
	}
	return -1
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	allowCmd := flag.NewFlagSet("allow", flag.ContinueOnError)
	allowEmail := allowCmd.String("email", "", "The email to allow.")

	disallowCmd := flag.NewFlagSet("disallow", flag.ContinueOnError)
	disallowEmail := disallowCmd.String("email", "", "The email to remove.")
	disallowYes := disallowCmd.Bool("yes", false, "Do not ask for confirmation.")

	allowCmd.SetOutput(cli.out)
	disallowCmd.SetOutput(cli.out)

	switch args[1] {
	case "migrate":
		return cli.migrate(args[2:])
	case "allow":
		if err := allowCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *allowEmail == "" {
			allowCmd.Usage()
			return errHelp
		}
		return cli.allow(*allowEmail)
	case "disallow":
		if err := disallowCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *disallowEmail == "" {
			disallowCmd.Usage()
			return errHelp
		}
		return cli.disallow(*disallowEmail, *disallowYes)
	case "list":
		return cli.list()
	default:
		cli.printUsage()
		return errHelp
	}
}
