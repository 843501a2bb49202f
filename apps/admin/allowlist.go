package main

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/user"
)

var errNotConfirmed = errors.New("not confirmed")

// allow adds an email to the allowed list; the first one ever added is the admin's.
func (cli *commandLine) allow(email string) error {
	nae := allowlist.NewAllowedEmail{Email: email}
	if err := nae.Validate(cli.validate); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			return errors.New(vErrs[0].Translate(cli.translator))
		}
		return err
	}

	ae, err := cli.allowSvc.Add(context.Background(), nae, user.User{})
	if err != nil {
		var vErr *core.ValidationError
		if errors.As(err, &vErr) && len(vErr.Fields) > 0 {
			return errors.New(vErr.Fields[0].Error)
		}
		return err
	}
	fmt.Fprintf(cli.out, "%s is now allowed to sign in\n", ae.Email)
	return nil
}

func (cli *commandLine) disallow(email string, confirmed bool) error {
	email = core.CleanString(email, true /* lower */)
	if !confirmed {
		if !isTerminalFunc(cli.inFd()) {
			return errors.New("not a terminal: confirm with -yes")
		}
		fmt.Fprintf(cli.out, "Remove %s from the allowed list? [y/N] ", email)
		answer, err := bufio.NewReader(cli.in).ReadString('\n')
		if err != nil && answer == "" {
			return errors.Wrap(err, "reading confirmation")
		}
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			return errNotConfirmed
		}
	}

	if err := cli.allowSvc.Remove(context.Background(), email); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%s can no longer sign in\n", email)
	return nil
}

func (cli *commandLine) list() error {
	entries, err := cli.allowSvc.Query(context.Background())
	if err != nil {
		return err
	}
	for _, ae := range entries {
		line := fmt.Sprintf("%s\t%s", ae.AddedAt.Format("2006-01-02 15:04"), ae.Email)
		if ae.IsAdmin {
			line += "\t(admin)"
		}
		fmt.Fprintln(cli.out, line)
	}
	return nil
}
