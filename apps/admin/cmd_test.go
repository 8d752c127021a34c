package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/educa/apps/api/echo"
	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/enrollment"
	"github.com/trezcool/educa/core/user"
	"github.com/trezcool/educa/services/cache"
	"github.com/trezcool/educa/services/email"
	"github.com/trezcool/educa/storage/database/inmem"
	"github.com/trezcool/educa/tests"
)

var (
	usrRepo   user.Repository
	crsRepo   course.Repository
	enrolRepo enrollment.Repository
	mailSvc   *emailsvc.ConsoleServiceMock
)

func setup(t *testing.T) (*commandLine, *bytes.Buffer) {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	validate, _ := testutil.NewValidator()
	core.ParseEmailTemplates(logger)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	crsRepo = inmemdb.NewCourseRepository(db)
	enrolRepo = inmemdb.NewEnrollmentRepository(db)

	// set up services
	mailSvc = emailsvc.NewConsoleServiceMock(conf, logger)
	crsSvc := course.NewService(conf, crsRepo, inmemdb.NewOwnershipChecker(db), cachesvc.NewMemoryCache(), nil, logger)

	// start CLI
	var out bytes.Buffer
	return &commandLine{
		conf:      conf,
		validate:  validate,
		usrSvc:    user.NewService(usrRepo),
		enrollSvc: enrollment.NewService(enrolRepo, crsSvc, mailSvc, logger),
		out:       &out,
	}, &out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string
}

func runCLITests(t *testing.T, cli *commandLine, out *bytes.Buffer, tests []cliTest) {
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
					assert.Contains(t, err.Error(), tt.wantErrStr)
				}
			default:
				assert.NoError(t, err)
			}
			if tt.wantOut != "" {
				assert.Equal(t, tt.wantOut, out.String())
			}
		})
	}
}

func Test_commandLine_run(t *testing.T) {
	cli, out := setup(t)

	runCLITests(t, cli, out, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol" for "admin"`},
	})
}

func Test_commandLine_migrate(t *testing.T) {
	cli, out := setup(t)

	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCLITests(t, cli, out, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	})
}

func Test_commandLine_addUser(t *testing.T) {
	cli, out := setup(t)

	testutil.CreateUser(t, usrRepo, "Taken", "taken", "taken@test.cd", nil, true)

	runCLITests(t, cli, out, []cliTest{
		{name: "no username", args: []string{"adduser"}, wantErr: errHelp},
		{name: "taken username", args: []string{"adduser", "--username", "Taken"}, wantErrStr: user.ErrUsernameExists.Error()},
		{name: "invalid role", args: []string{"adduser", "--username", "wizard", "--role", "wizard:"}, wantErrStr: "failed on the 'allroles' tag"},
		{
			name:    "create",
			args:    []string{"adduser", "--name", "Hero", "--username", "Hero", "--email", "hero@test.cd", "--role", "instructor:", "--role", "student:"},
			wantOut: fmt.Sprintf("User %q created (id %d).\n", "hero", 2),
		},
	})

	usr, err := usrRepo.GetUserByUsername(context.Background(), "hero")
	require.NoError(t, err)
	assert.Equal(t, "Hero", usr.Name)
	assert.Equal(t, "hero@test.cd", usr.Email)
	assert.True(t, usr.IsActive)
	assert.ElementsMatch(t, []string{user.RoleInstructor, user.RoleStudent}, usr.Roles)
}

func Test_commandLine_token(t *testing.T) {
	cli, out := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "teacher@test.cd", []string{user.RoleInstructor}, true)

	runCLITests(t, cli, out, []cliTest{
		{name: "no username", args: []string{"token"}, wantErr: errHelp},
		{name: "user not found", args: []string{"token", "--username", "lol"}, wantErr: user.ErrNotFound},
		{name: "token", args: []string{"token", "--username", "Teacher"}},
	})

	claims := new(echoapi.Claims)
	_, err := jwt.ParseWithClaims(strings.TrimSpace(out.String()), claims, func(*jwt.Token) (interface{}, error) {
		return []byte(cli.conf.SecretKey), nil
	})
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, usr.ID, id)
	assert.True(t, claims.IsInstructor)
}

func Test_commandLine_remind(t *testing.T) {
	cli, out := setup(t)
	ctx := context.Background()

	longAgo := time.Now().AddDate(0, 0, -30)
	lazy := testutil.CreateUser(t, usrRepo, "Lazy", "lazy", "lazy@test.cd", nil, true, longAgo)
	busy := testutil.CreateUser(t, usrRepo, "Busy", "busy", "busy@test.cd", nil, true, longAgo)
	testutil.CreateUser(t, usrRepo, "Newbie", "newbie", "newbie@test.cd", nil, true)
	testutil.CreateUser(t, usrRepo, "Ghost", "ghost", "", nil, true, longAgo)
	testutil.CreateUser(t, usrRepo, "Gone", "gone", "gone@test.cd", nil, false, longAgo)

	instructor := testutil.CreateUser(t, usrRepo, "Teacher", "teacher", "", []string{user.RoleInstructor}, true)
	math := testutil.CreateSubject(t, crsRepo, "Mathematics", "mathematics")
	crs := testutil.CreateCourse(t, crsRepo, instructor.ID, math.ID, "Algebra", "algebra")
	require.NoError(t, enrolRepo.Enroll(ctx, crs.ID, busy.ID))

	runCLITests(t, cli, out, []cliTest{
		{name: "remind", args: []string{"remind", "--days", "7"}, wantOut: "Sent 1 reminders.\n"},
	})

	require.Len(t, mailSvc.SentMessages, 1)
	msg := mailSvc.SentMessages[0]
	assert.Equal(t, lazy.Email, msg.To[0].Address)
	assert.Equal(t, "Enroll in a course", msg.Subject)
	assert.Contains(t, msg.TextContent, "Lazy")
}
