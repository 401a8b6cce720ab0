package main

import (
	"bufio"
	"errors"
	"fmt"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/spf13/cobra"
)

func loginCmd(flags *globalFlags) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if password == "" {
				password, err = prompt(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "Password: ")
				if err != nil {
					return err
				}
			}
			u, err := a.session.Login(cmd.Context(), email, password)
			if err != nil {
				return errors.New(api.Message(err, "Login failed. Please try again."))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>\n", u.Name, u.Email)
			return nil
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func signupCmd(flags *globalFlags) *cobra.Command {
	var req domain.SignupRequest

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a customer account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.session.Signup(cmd.Context(), req)
			if err != nil {
				return errors.New(api.Message(err, err.Error()))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s! You are signed in.\n", u.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Name, "name", "", "Full name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "10-digit mobile number")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password")
	return cmd
}

func logoutCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out of the profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			a.session.Logout(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func whoamiCmd(flags *globalFlags) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			u, ok := a.session.CurrentUser()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			if refresh {
				if u, err = a.client.Profile(cmd.Context()); err != nil {
					return errors.New(api.Message(err, "Failed to load profile"))
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s, profile %s)\n", u.Name, u.Email, u.Role, a.cfg.Profile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ask the API who the stored token belongs to")
	return cmd
}

// requireUser returns the signed-in user or the shopper-facing sign-in error.
func requireUser(a *app) (*domain.User, error) {
	u, ok := a.session.CurrentUser()
	if !ok {
		return nil, errors.New("please log in first: shopsphere login --email <email>")
	}
	return u, nil
}
