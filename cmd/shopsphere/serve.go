package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/shopsphere/internal/checkout"
	h "github.com/fjod/shopsphere/internal/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func serveCmd(flags *globalFlags) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the storefront gateway",
		Long: `Serve the profile's cart and checkout over HTTP under /api/v1.

Cart changes made by other shopsphere processes on the same profile, and
sign-ins and sign-outs, are streamed to clients of GET /api/v1/cart/events as
server-sent events.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if port != "" {
				a.cfg.HTTPPort = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, a)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "HTTP port (overrides http_port)")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	pub, stopPublisher := a.startPublisher(ctx)
	defer stopPublisher()

	sessions := h.NewRegistry(h.WithIdleTimeout(a.cfg.CheckoutIdleTimeout))
	checkoutHandler := h.NewCheckoutHandler(h.CheckoutDeps{
		Cart:      a.cart,
		Pricer:    a.catalog,
		Shopper:   a.session,
		Orders:    a.client,
		Payments:  a.client,
		Discounts: a.client,
		Publisher: pub,
		Sessions:  sessions,
		Config: checkout.Config{
			CallTimeout:  a.cfg.PaymentTimeout,
			SuccessDelay: a.cfg.SuccessDelay,
		},
		Log: a.log,
	}, a.cfg.RequestTimeout)

	router := h.NewRouter(h.Handlers{
		Cart:     h.NewCartHandler(a.cart, a.catalog, a.cfg.RequestTimeout),
		Checkout: checkoutHandler,
		Products: h.NewProductHandler(a.client, a.catalog, a.cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(a.client, a.session, a.cfg.RequestTimeout),
		Events:   h.NewEventsHandler(a.cart, a.session, a.log),
	}, a.cfg.RequestTimeout, a.log)
	writeTimeout := h.CheckoutWriteTimeout(a.cfg.RequestTimeout, a.cfg.PaymentTimeout)
	srv := h.NewServer(":"+a.cfg.HTTPPort, router, sessions, writeTimeout, a.cfg.ShutdownTimeout, a.log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCanceled(a.cart.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(a.session.Run(gctx)) })
	g.Go(func() error { return sessions.Run(gctx, sweepInterval(a.cfg.CheckoutIdleTimeout)) })
	g.Go(func() error { return srv.Run(gctx) })
	return g.Wait()
}

// sweepInterval checks for idle checkouts a few times per idle timeout.
func sweepInterval(idle time.Duration) time.Duration {
	return max(idle/4, time.Second)
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
