package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	inmemdb "github.com/MarMar-mg/school-managment-system-sub000/storage/database/inmem"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

func setup(t *testing.T) *commandLine {
	t.Helper()
	return &commandLine{usrRepo: inmemdb.NewUserRepository(inmemdb.Open())}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func mockPassword(pwd string) func(int) ([]byte, error) {
	return func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	migrateFunc = func(db *sql.DB, command string, args ...string) error {
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

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "scores", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	existing := testutil.CreateUser(t, cli.usrRepo, "Reza Karimi", "rkarimi", "reza@school.test", "old", user.RoleTeacher, false)

	tests := []struct {
		cliTest
		pwd      string
		wantRole string
		wantName string
	}{
		{cliTest: cliTest{name: "no args", args: []string{"adduser"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "no password", args: []string{"adduser", "-username", "admin"}, wantErr: errHelp}},
		{cliTest: cliTest{name: "unknown role", args: []string{"adduser", "-username", "admin", "-role", "janitor"}, wantErrStr: "\"janitor\": unknown role"}, pwd: "secret"},
		{
			cliTest:  cliTest{name: "create admin", args: []string{"adduser", "-username", "Admin", "-email", "admin@school.test"}},
			pwd:      "secret",
			wantRole: user.RoleAdmin,
			wantName: "admin",
		},
		{
			cliTest:  cliTest{name: "update existing", args: []string{"adduser", "-username", existing.Username, "-role", user.RoleManager, "-name", "Reza K."}},
			pwd:      "new-secret",
			wantRole: user.RoleManager,
			wantName: "Reza K.",
		},
		{
			cliTest: cliTest{name: "email taken", args: []string{"adduser", "-username", "other", "-email", existing.Email}, wantErr: user.ErrEmailExists},
			pwd:     "secret",
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		readPasswordFunc = mockPassword(tt.pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			case tt.wantErrStr != "":
				require.Error(t, err)
				assert.Equal(t, tt.wantErrStr, err.Error())
				return
			}
			require.NoError(t, err)

			var uname string
			fs := args[2:]
			for i := 0; i < len(fs)-1; i++ {
				if fs[i] == "-username" {
					uname = fs[i+1]
				}
			}
			usr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{Username: strings.ToLower(uname)})
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, usr.Role)
			assert.Equal(t, tt.wantName, usr.Name)
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(tt.pwd))
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, cli.usrRepo, "User", "awe", "awe@test.cd", "mdr", user.RoleStudent, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = mockPassword("")
		if extra, ok := tt.extra.(extra); ok {
			readPasswordFunc = mockPassword(extra.pwd)
		}

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			refreshedUsr, err := cli.usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
			usr = refreshedUsr
		})
	}
}
