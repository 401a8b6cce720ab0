package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/cart"
	"github.com/fjod/shopsphere/internal/catalog"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/spf13/cobra"
)

func productsCmd(flags *globalFlags) *cobra.Command {
	var search, category string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var products []domain.Product
			switch {
			case search != "":
				products, err = a.client.SearchProducts(cmd.Context(), search)
			case category != "":
				products, err = a.client.ProductsByCategory(cmd.Context(), category)
			default:
				products, err = a.client.ListProducts(cmd.Context())
			}
			if err != nil {
				return errors.New(api.Message(err, "Failed to load products"))
			}

			return printProducts(cmd.OutOrStdout(), products)
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Search by name")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category")
	return cmd
}

func cartCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return printCart(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	var campaignID int64
	add := &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0])
			if err != nil {
				return err
			}
			quantity := 1
			if len(args) == 2 {
				if quantity, err = strconv.Atoi(args[1]); err != nil || quantity < 1 {
					return fmt.Errorf("invalid quantity %q", args[1])
				}
			}

			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var meta cart.LineMeta
			if campaignID > 0 {
				if meta, err = campaignMeta(cmd.Context(), a, campaignID, productID); err != nil {
					return err
				}
			}
			a.cart.Add(cmd.Context(), productID, quantity, meta)
			return printCart(cmd.Context(), a, cmd.OutOrStdout())
		},
	}
	add.Flags().Int64Var(&campaignID, "campaign", 0, "Add at the campaign price")

	update := &cobra.Command{
		Use:   "update <product-id> <quantity>",
		Short: "Set the quantity of a cart line",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0])
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[1])
			}

			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			a.cart.Update(cmd.Context(), productID, quantity)
			return printCart(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	remove := &cobra.Command{
		Use:   "remove <product-id>",
		Short: "Remove a product from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			a.cart.Remove(cmd.Context(), productID)
			return printCart(cmd.Context(), a, cmd.OutOrStdout())
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()
			a.cart.Clear(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared")
			return nil
		},
	}

	cmd.AddCommand(add, update, remove, clearCmd)
	return cmd
}

// campaignMeta looks up the campaign price of productID so the line keeps it.
func campaignMeta(ctx context.Context, a *app, campaignID, productID int64) (cart.LineMeta, error) {
	c, err := a.client.GetCampaign(ctx, campaignID)
	if err != nil {
		return cart.LineMeta{}, errors.New(api.Message(err, "Failed to load campaign"))
	}
	products, err := a.client.CampaignProducts(ctx, campaignID)
	if err != nil {
		return cart.LineMeta{}, errors.New(api.Message(err, "Failed to load campaign products"))
	}
	for _, p := range products {
		if p.ProductID == productID {
			price := p.DiscountedPrice
			return cart.LineMeta{UnitPrice: &price, CampaignID: &campaignID, CampaignTitle: c.Title}, nil
		}
	}
	return cart.LineMeta{}, fmt.Errorf("product %d is not part of campaign %q", productID, c.Title)
}

func printCart(ctx context.Context, a *app, out io.Writer) error {
	rows, err := a.catalog.Price(ctx, a.cart.Lines(ctx))
	if err != nil {
		return errors.New(api.Message(err, "Failed to load product details"))
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, "Your cart is empty")
		return nil
	}

	t := newTable("ID", "PRODUCT", "QTY", "PRICE", "TOTAL", "")
	for _, r := range rows {
		note := ""
		if r.Discounted() {
			note = fmt.Sprintf("was %s, %s", rupees(r.Product.Price), r.CampaignTitle)
		}
		if !r.Product.InStock(r.Line.Quantity) {
			note = "not enough stock"
		}
		t.row(strconv.FormatInt(r.Product.ProductID, 10), r.Product.Name, strconv.Itoa(r.Line.Quantity), rupees(r.UnitPrice), rupees(r.LineTotal()), note)
	}
	t.row("", "", "", "Subtotal", rupees(catalog.Subtotal(rows)))
	return t.render(out)
}

func printProducts(out io.Writer, products []domain.Product) error {
	t := newTable("ID", "NAME", "CATEGORY", "PRICE", "STOCK")
	for _, p := range products {
		stock := "-"
		if p.StockQuantity != nil {
			stock = strconv.Itoa(*p.StockQuantity)
		}
		t.row(strconv.FormatInt(p.ProductID, 10), p.Name, p.Category, rupees(p.Price), stock)
	}
	return t.render(out)
}

func printOrders(out io.Writer, orders []domain.Order) error {
	t := newTable("ORDER", "TYPE", "STATUS", "PAYMENT", "TOTAL")
	for _, o := range orders {
		t.row(fmt.Sprintf("#%d", o.OrderID), string(o.OrderType), string(o.Status), o.PaymentStatus, rupees(o.TotalAmount))
	}
	return t.render(out)
}

func ordersCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
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

			orders, err := a.client.OrdersByCustomer(cmd.Context(), u.UserID)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load orders"))
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orders yet")
				return nil
			}
			return printOrders(cmd.OutOrStdout(), orders)
		},
	}

	show := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show an order",
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

			o, err := a.client.GetOrder(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load order"))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Order #%d  %s  %s\n", o.OrderID, o.OrderType, o.Status)
			return printOrderLines(out, o)
		},
	}

	cancelCmd := &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a placed order",
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

			if err := a.client.CancelOrder(cmd.Context(), id); err != nil {
				return errors.New(api.Message(err, "Failed to cancel order"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order #%d cancelled\n", id)
			return nil
		},
	}

	cmd.AddCommand(show, cancelCmd)
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func printOrderLines(out io.Writer, o *domain.Order) error {
	t := newTable()
	t.indent = "  "
	for _, it := range o.OrderItems {
		t.row(it.ProductName, fmt.Sprintf("x%d", it.Quantity), rupees(it.UnitPrice))
	}
	if o.DiscountAmount != nil {
		t.row(fmt.Sprintf("Discount (%s)", o.DiscountCode), "", "-"+rupees(*o.DiscountAmount))
	}
	t.row("Total", "", rupees(o.TotalAmount))
	return t.render(out)
}
