package main

import (
	"context"

	"github.com/spf13/cobra"

	echoapi "github.com/trezcool/educa/apps/api/echo"
)

func (cli *commandLine) tokenCmd() *cobra.Command {
	var uname string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for the API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" {
				_ = cmd.Help()
				return errHelp
			}
			return cli.token(uname)
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "the user's username")
	return cmd
}

func (cli *commandLine) token(uname string) error {
	usr, err := cli.usrSvc.GetByUsername(context.Background(), uname)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(cli.conf, echoapi.GetUserClaims(cli.conf, usr))
	if err != nil {
		return err
	}
	cli.printf("%s\n", token)
	return nil
}
