package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/coursemate/core"
	"github.com/trezcool/coursemate/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf    *core.Config
	out     io.Writer
	db      *sql.DB
	usrRepo user.Repository
	connect func() error // sets db & usrRepo, on first use
}

func newCommandLine(conf *core.Config, out io.Writer) *commandLine {
	return &commandLine{conf: conf, out: out}
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  adduser -username USERNAME [-email EMAIL] [-admin] - create or update a user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -username USERNAME|EMAIL - reset user's password")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, version...)")
	_, _ = fmt.Fprintln(cli.out, "  train [-ratings PATH] [-out PATH] - train the recommendation model & save its artifact")
	_, _ = fmt.Fprintln(cli.out, "  preprocess [-dir DIR] - clean the raw datasets of DIR")
}

func (cli *commandLine) ensureDB() error {
	if cli.usrRepo != nil || cli.connect == nil {
		return nil
	}
	return cli.connect()
}

func (cli *commandLine) promptPassword() (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant every role to the user.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	trainCmd := flag.NewFlagSet("train", flag.ContinueOnError)
	trainRatings := trainCmd.String("ratings", cli.conf.Recommender.RatingsPath, "The ratings CSV file.")
	trainOut := trainCmd.String("out", cli.conf.Recommender.ArtifactPath, "Where to save the model artifact.")

	preprocessCmd := flag.NewFlagSet("preprocess", flag.ContinueOnError)
	preprocessDir := preprocessCmd.String("dir", cli.conf.DataDir, "The directory holding courses.csv, ratings.csv & user_data.csv.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, trainCmd, preprocessCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserUname == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		if err = cli.ensureDB(); err != nil {
			return err
		}
		return cli.addUser(*addUserUname, *addUserEmail, pwd, *addUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		if err = cli.ensureDB(); err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		if err := cli.ensureDB(); err != nil {
			return err
		}
		return cli.migrate(args[2:])

	case "train":
		if err := trainCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.train(*trainRatings, *trainOut)

	case "preprocess":
		if err := preprocessCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.preprocess(*preprocessDir)

	default:
		cli.printUsage()
		return errHelp
	}
}
