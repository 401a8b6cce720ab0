package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/spf13/cobra"
)

type reward struct {
	name   string
	points int
}

// rewards are the catalogue of redeemable discounts, keyed by rupee value.
var rewards = map[string]reward{
	"50":  {name: "₹50 Off", points: 500},
	"150": {name: "₹150 Off", points: 1500},
	"500": {name: "₹500 Off", points: 5000},
}

func loyaltyCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loyalty",
		Short: "Show your loyalty points",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			u, err := requireUser(a)
			if err != nil {
				return err
			}

			acc, err := a.client.LoyaltyAccount(cmd.Context(), u.UserID)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load loyalty points"))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Points balance: %d (earned %d in total)\n", acc.PointsBalance, acc.TotalEarned)
			if len(acc.RecentTransactions) > 0 {
				return printTransactions(out, acc.RecentTransactions)
			}
			return nil
		},
	}

	redeem := &cobra.Command{
		Use:       "redeem <50|150|500>",
		Short:     "Spend points on a discount code",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"50", "150", "500"},
		RunE: func(cmd *cobra.Command, args []string) error {
			r, ok := rewards[strings.TrimPrefix(args[0], "₹")]
			if !ok {
				return fmt.Errorf("unknown reward %q, pick 50, 150 or 500", args[0])
			}
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			u, err := requireUser(a)
			if err != nil {
				return err
			}

			res, err := a.client.RedeemReward(cmd.Context(), domain.RedeemRequest{UserID: u.UserID, Points: r.points, RewardName: r.name})
			if err != nil {
				return errors.New(api.Message(err, "Failed to redeem reward"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s redeemed for %d points. Your code: %s\n", r.name, r.points, res.DiscountCode)
			return nil
		},
	}

	coupon := &cobra.Command{
		Use:   "coupon",
		Short: "Show the coupon applied at your next checkout",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			u, err := requireUser(a)
			if err != nil {
				return err
			}

			c, err := a.client.ActiveCoupon(cmd.Context(), u.UserID)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load coupon"))
			}
			if !c.HasCoupon {
				fmt.Fprintln(cmd.OutOrStdout(), "No unused coupon")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.CouponCode)
			return nil
		},
	}

	cmd.AddCommand(redeem, coupon)
	return cmd
}

func campaignsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "List active campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			campaigns, err := a.client.ActiveCampaigns(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load campaigns"))
			}
			if len(campaigns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No active campaigns")
				return nil
			}
			t := newTable("ID", "TITLE", "ENDS")
			for _, c := range campaigns {
				t.row(strconv.FormatInt(c.CampaignID, 10), c.Title, c.EndDate)
			}
			return t.render(cmd.OutOrStdout())
		},
	}

	show := &cobra.Command{
		Use:   "show <campaign-id>",
		Short: "List the products of a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			products, err := a.client.CampaignProducts(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load campaign products"))
			}
			return printCampaignProducts(cmd.OutOrStdout(), products)
		},
	}

	cmd.AddCommand(show)
	return cmd
}

func printTransactions(out io.Writer, txs []domain.LoyaltyTransaction) error {
	t := newTable()
	t.indent = "  "
	for _, tx := range txs {
		t.row(fmt.Sprintf("%+d", tx.Points), tx.Type, tx.Description)
	}
	return t.render(out)
}

func printCampaignProducts(out io.Writer, products []domain.CampaignProduct) error {
	t := newTable("ID", "PRODUCT", "PRICE", "WAS", "OFF")
	for _, p := range products {
		t.row(strconv.FormatInt(p.ProductID, 10), p.ProductName, rupees(p.DiscountedPrice), rupees(p.OriginalPrice), p.DiscountPercentage.String()+"%")
	}
	return t.render(out)
}
