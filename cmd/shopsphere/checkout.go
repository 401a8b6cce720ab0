package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/checkout"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/spf13/cobra"
)

var (
	errCheckoutCancelled = errors.New("checkout cancelled")
	errQuit              = errors.New("quit")
)

// checkoutOptions preset answers. Each one is used once; anything missing or
// rejected is asked for on the input.
type checkoutOptions struct {
	orderType string
	address   string
	store     string
	discount  string
	method    string
	upiID     string
	otp       string
}

func checkoutCmd(flags *globalFlags) *cobra.Command {
	var opts checkoutOptions

	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for the cart and pay",
		Long: `Place an order for everything in the cart and pay with cash on delivery
or UPI. Your unused loyalty coupon is applied automatically unless --discount is
given. The cart is cleared once payment succeeds.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return runCheckout(cmd.Context(), a, opts, bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.orderType, "type", "t", "online", "online or in-store")
	cmd.Flags().StringVar(&opts.address, "address", "", "Shipping address for online orders")
	cmd.Flags().StringVar(&opts.store, "store", "", "Pickup store for in-store orders")
	cmd.Flags().StringVar(&opts.discount, "discount", "", "Discount code")
	cmd.Flags().StringVar(&opts.method, "method", "", "Payment method: cod or upi")
	cmd.Flags().StringVar(&opts.upiID, "upi", "", "UPI ID")
	cmd.Flags().StringVar(&opts.otp, "otp", "", "UPI one-time password")
	return cmd
}

func parseOrderType(s string) domain.OrderType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "online", "delivery":
		return domain.OrderTypeOnline
	case "in-store", "instore", "in_store", "pickup":
		return domain.OrderTypeInStore
	}
	// Draft validation rejects it.
	return domain.OrderType(strings.ToUpper(s))
}

func runCheckout(ctx context.Context, a *app, opts checkoutOptions, in *bufio.Reader, out io.Writer) error {
	user, err := requireUser(a)
	if err != nil {
		return err
	}
	rows, err := a.catalog.Price(ctx, a.cart.Lines(ctx))
	if err != nil {
		return errors.New(api.Message(err, "Failed to load product details"))
	}

	draft := checkout.BuildDraft(user.UserID, rows, checkout.Fulfilment{
		OrderType:       parseOrderType(opts.orderType),
		ShippingAddress: opts.address,
		StoreLocation:   opts.store,
	})
	if err := draft.Validate(); err != nil {
		return errors.New(checkout.Message(err, err.Error()))
	}

	if opts.discount != "" {
		applied, err := checkout.ApplyDiscount(ctx, a.client, opts.discount, draft.Subtotal())
		if err != nil {
			return errors.New(checkout.Message(err, checkout.MsgDiscountFailed))
		}
		draft = draft.WithDiscount(applied)
	} else {
		applied, err := checkout.AutoApplyCoupon(ctx, a.client, user.UserID, draft.Subtotal())
		if err != nil {
			fmt.Fprintf(out, "Coupon not applied: %s\n", checkout.Message(err, checkout.MsgAutoDiscountFailed))
		}
		draft = draft.WithDiscount(applied)
	}
	printDraft(out, draft)

	pub, stopPublisher := a.startPublisher(ctx)
	defer stopPublisher()

	cleared := make(chan struct{})
	s := checkout.NewSession(draft, a.client, a.client, pub, checkout.Config{
		CallTimeout:  a.cfg.PaymentTimeout,
		SuccessDelay: a.cfg.SuccessDelay,
	}, checkout.Callbacks{
		OnSuccess: func(int64) {
			a.cart.Clear(context.Background())
			close(cleared)
		},
		OnCancel: func(order *domain.Order) {
			if order != nil {
				fmt.Fprintf(out, "Order #%d stays placed. Cancel it with: %s orders cancel %d\n", order.OrderID, appName, order.OrderID)
			}
		},
	}, a.log)
	defer s.Close()

	p := &payer{in: in, out: out, opts: opts}
	for {
		st := s.State()
		switch st.Step {
		case checkout.StepSuccess:
			fmt.Fprintf(out, "Payment successful! Order #%d placed.\n", st.Order.OrderID)
			select {
			case <-cleared:
				fmt.Fprintln(out, "Your cart has been cleared.")
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		case checkout.StepCancelled:
			return errCheckoutCancelled
		}

		evs, err := p.next(st)
		if err != nil {
			if _, cerr := s.Dispatch(ctx, checkout.Cancel{}); cerr != nil {
				a.log.Debug().Err(cerr).Msg("cancel checkout")
			}
			if errors.Is(err, errQuit) || errors.Is(err, io.EOF) {
				return errCheckoutCancelled
			}
			return err
		}
		for _, ev := range evs {
			if st, err = s.Dispatch(ctx, ev); err != nil {
				return err
			}
		}
		if st.Error != "" {
			fmt.Fprintln(out, st.Error)
		}
	}
}

// payer turns answers into checkout events for the current step.
type payer struct {
	in   *bufio.Reader
	out  io.Writer
	opts checkoutOptions
}

func (p *payer) next(st checkout.State) ([]checkout.Event, error) {
	switch st.Step {
	case checkout.StepMethod:
		m, err := p.ask(&p.opts.method, "Payment method [cod/upi, q to cancel]: ")
		if err != nil {
			return nil, err
		}
		return []checkout.Event{checkout.SelectMethod{Method: domain.PaymentMethod(strings.ToUpper(m))}}, nil

	case checkout.StepDetails:
		id, err := p.ask(&p.opts.upiID, "UPI ID, e.g. name@bank [b to go back]: ")
		if err != nil {
			return nil, err
		}
		if id == "b" {
			return []checkout.Event{checkout.Back{}}, nil
		}
		return []checkout.Event{checkout.EnterDetails{UPIID: id}, checkout.SubmitDetails{}}, nil

	case checkout.StepOTP:
		otp, err := p.ask(&p.opts.otp, "Enter the 6-digit OTP sent to "+st.UPIID+": ")
		if err != nil {
			return nil, err
		}
		return []checkout.Event{checkout.EnterOTP{Raw: otp}, checkout.SubmitOTP{}}, nil

	case checkout.StepFailed:
		answer, err := prompt(p.in, p.out, "Retry payment? [y/N]: ")
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(answer, "y") || strings.EqualFold(answer, "yes") {
			return []checkout.Event{checkout.Retry{}}, nil
		}
		return nil, errQuit
	}
	return nil, fmt.Errorf("unexpected checkout step %s", st.Step)
}

// ask consumes a preset answer, or prompts for one. "q" quits.
func (p *payer) ask(preset *string, label string) (string, error) {
	if v := strings.TrimSpace(*preset); v != "" {
		*preset = ""
		return v, nil
	}
	v, err := prompt(p.in, p.out, label)
	if err != nil {
		return "", err
	}
	if strings.EqualFold(v, "q") {
		return "", errQuit
	}
	return v, nil
}

func printDraft(out io.Writer, d checkout.Draft) {
	t := newTable()
	t.indent = "  "
	for _, l := range d.Lines {
		t.row(l.Name, fmt.Sprintf("x%d", l.Quantity), rupees(l.UnitPrice))
	}
	t.row("Subtotal", "", rupees(d.Subtotal()))
	if d.DiscountAmount != nil {
		t.row(fmt.Sprintf("Discount (%s)", d.DiscountCode), "", "-"+rupees(*d.DiscountAmount))
	}
	t.row("Amount to pay", "", rupees(d.Total()))
	_ = t.render(out)
}
