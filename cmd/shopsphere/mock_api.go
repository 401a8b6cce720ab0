package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	h "github.com/fjod/shopsphere/internal/http"
	"github.com/fjod/shopsphere/internal/logger"
	"github.com/fjod/shopsphere/internal/mockapi"
	"github.com/spf13/cobra"
)

func mockAPICmd(flags *globalFlags) *cobra.Command {
	var (
		port         string
		processDelay time.Duration
	)

	cmd := &cobra.Command{
		Use:   "mock-api",
		Short: "Run the simulated ShopSphere backend",
		Long: `Run an in-memory backend with a seeded catalog under /api.

Demo accounts:
  ` + mockapi.CustomerEmail + ` / ` + mockapi.CustomerPassword + `
  ` + mockapi.AdminEmail + ` / ` + mockapi.AdminPassword + `

UPI payments succeed only with OTP ` + mockapi.ValidOTP + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := flags.logLevel
			if level == "" {
				level = "info"
			}
			log := logger.New(level, true)

			store := mockapi.NewStore()
			mockapi.Seed(store)
			handler := mockapi.NewServer(store, log, mockapi.WithProcessDelay(processDelay))
			srv := h.NewServer(":"+port, handler, nil, 0, 5*time.Second, log)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8080", "HTTP port")
	cmd.Flags().DurationVar(&processDelay, "process-delay", 1500*time.Millisecond, "Simulated OTP verification time")
	return cmd
}
