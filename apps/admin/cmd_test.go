package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/placegrade/core"
	"github.com/trezcool/placegrade/core/allowlist"
	"github.com/trezcool/placegrade/core/user"
	"github.com/trezcool/placegrade/services/email"
	"github.com/trezcool/placegrade/storage/database/inmem"
	"github.com/trezcool/placegrade/tests"
)

func setup(t *testing.T, input string) (*commandLine, *bytes.Buffer) {
	conf := testutil.NewConfig()
	_en := en.New()
	translator, _ := ut.New(_en, _en).GetTranslator("en")
	validate := validator.New()
	core.InitValidators(validate, translator)

	out := new(bytes.Buffer)
	return &commandLine{
		allowSvc:   allowlist.NewService(inmemdb.NewAllowlistRepository(inmemdb.Open()), emailsvc.NewConsoleServiceMock(conf)),
		validate:   validate,
		translator: translator,
		in:         strings.NewReader(input),
		out:        out,
	}, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Contains(t, out.String(), tt.wantOut)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t, "")

	migrateFunc = func(_ *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, out, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp, wantOut: "Usage:"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "photos", "sql"}},
	})
}

func Test_commandLine_allowlist(t *testing.T) {
	cli, out := setup(t, "")
	isTerminalFunc = func(int) bool { return false }

	runCLITests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "allow: no email", args: []string{"allow"}, wantErr: errHelp},
		{name: "allow: invalid email", args: []string{"allow", "-email", "lol"}, wantErrStr: "enter a valid email address"},
		{name: "allow: admin", args: []string{"allow", "-email", " Admin@Test.CD "}, wantOut: "admin@test.cd is now allowed to sign in"},
		{name: "allow: friend", args: []string{"allow", "-email", "friend@test.cd"}, wantOut: "friend@test.cd is now allowed"},
		{name: "allow: duplicate", args: []string{"allow", "-email", "friend@test.cd"}, wantErrStr: allowlist.ErrExists.Error()},
		{name: "list", args: []string{"list"}, wantOut: "admin@test.cd\t(admin)\n"},
		{name: "disallow: no email", args: []string{"disallow"}, wantErr: errHelp},
		{name: "disallow: not a terminal", args: []string{"disallow", "-email", "friend@test.cd"}, wantErrStr: "not a terminal: confirm with -yes"},
		{name: "disallow: admin", args: []string{"disallow", "-email", "admin@test.cd", "-yes"}, wantErr: allowlist.ErrCannotRemoveAdmin},
		{name: "disallow: unknown", args: []string{"disallow", "-email", "nobody@test.cd", "-yes"}, wantErr: allowlist.ErrNotFound},
		{name: "disallow", args: []string{"disallow", "-email", "Friend@Test.CD", "-yes"}, wantOut: "friend@test.cd can no longer sign in"},
	})

	ok, err := cli.allowSvc.CanSignIn(context.Background(), "friend@test.cd")
	require.NoError(t, err)
	assert.False(t, ok)

	// the first email added is the admin's
	isAdmin, err := cli.allowSvc.Authorize(context.Background(), user.User{ID: "1", Email: "admin@test.cd"})
	require.NoError(t, err)
	assert.True(t, isAdmin)
}

func Test_commandLine_disallowConfirm(t *testing.T) {
	isTerminalFunc = func(int) bool { return true }
	t.Cleanup(func() { isTerminalFunc = func(int) bool { return false } })

	tests := []struct {
		name    string
		input   string
		wantErr error
		removed bool
	}{
		{name: "declined", input: "n\n", wantErr: errNotConfirmed},
		{name: "empty answer", input: "\n", wantErr: errNotConfirmed},
		{name: "confirmed", input: "y\n", removed: true},
		{name: "confirmed without newline", input: "YES", removed: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cli, out := setup(t, tt.input)
			ctx := context.Background()
			_, err := cli.allowSvc.Add(ctx, allowlist.NewAllowedEmail{Email: "admin@test.cd"}, user.User{})
			require.NoError(t, err)
			_, err = cli.allowSvc.Add(ctx, allowlist.NewAllowedEmail{Email: "friend@test.cd"}, user.User{})
			require.NoError(t, err)

			err = cli.run([]string{"admin", "disallow", "-email", "friend@test.cd"})
			assert.Equal(t, tt.wantErr, err)
			assert.Contains(t, out.String(), "Remove friend@test.cd from the allowed list? [y/N]")

			ok, err := cli.allowSvc.CanSignIn(ctx, "friend@test.cd")
			require.NoError(t, err)
			assert.Equal(t, !tt.removed, ok)
		})
	}
}
