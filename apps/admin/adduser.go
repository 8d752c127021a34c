package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/trezcool/educa/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var nu user.NewUser
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if nu.Username == "" {
				_ = cmd.Help()
				return errHelp
			}
			return cli.addUser(nu)
		},
	}
	cmd.Flags().StringVar(&nu.Name, "name", "", "the user's full name")
	cmd.Flags().StringVar(&nu.Username, "username", "", "the user's username")
	cmd.Flags().StringVar(&nu.Email, "email", "", "the user's email")
	cmd.Flags().StringSliceVar(&nu.Roles, "role", nil, "a role of the user: admin:, instructor: or student: (repeatable)")
	return cmd
}

func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()
	if nu.Name == "" {
		nu.Name = nu.Username
	}
	if err := nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	cli.printf("User %q created (id %d).\n", usr.Username, usr.ID)
	return nil
}
