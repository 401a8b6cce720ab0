// Package main provides the shopsphere binary: the storefront gateway, the
// simulated backend and a terminal storefront over the same cart and session.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "shopsphere"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags override values loaded from the config file and environment.
type globalFlags struct {
	configPath string
	profile    string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "ShopSphere storefront",
		Long: `ShopSphere is a storefront client for the ShopSphere retail API.

It provides:
- a persistent shopping cart per profile, shared by every process using it
- checkout with cash on delivery or UPI with OTP verification
- an HTTP gateway exposing the cart and checkout to other front ends
- store administration for admin accounts
- a simulated backend for local development`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Config file path (yaml, json or toml)")
	cmd.PersistentFlags().StringVar(&flags.profile, "profile", "", "Profile whose cart and session to use")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		serveCmd(flags),
		mockAPICmd(flags),
		signupCmd(flags),
		loginCmd(flags),
		logoutCmd(flags),
		whoamiCmd(flags),
		productsCmd(flags),
		cartCmd(flags),
		checkoutCmd(flags),
		ordersCmd(flags),
		loyaltyCmd(flags),
		campaignsCmd(flags),
		adminCmd(flags),
		versionCmd(),
	)
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}
