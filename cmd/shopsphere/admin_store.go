package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func adminInventoryCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inventory",
		Short: "Stock held at the physical stores",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			stores, err := a.client.StoreLocations(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load stores"))
			}
			for _, s := range stores {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
			return nil
		}),
	}

	store := &cobra.Command{
		Use:   "store <store>",
		Short: "List the stock of a store",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			items, err := a.client.InventoryByStore(cmd.Context(), args[0])
			if err != nil {
				return errors.New(api.Message(err, "Failed to load inventory"))
			}
			return printInventory(cmd.OutOrStdout(), items)
		}),
	}

	product := &cobra.Command{
		Use:   "product <product-id>",
		Short: "List the stock of a product in every store",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			items, err := a.client.InventoryByProduct(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load inventory"))
			}
			return printInventory(cmd.OutOrStdout(), items)
		}),
	}

	at := &cobra.Command{
		Use:   "at <product-id> <store>",
		Short: "Show the stock of a product at one store",
		Args:  cobra.ExactArgs(2),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			inv, err := a.client.InventoryAt(cmd.Context(), id, args[1])
			if err != nil {
				return errors.New(api.Message(err, "Failed to load inventory"))
			}
			ok, err := a.client.ProductAvailable(cmd.Context(), id, args[1])
			if err != nil {
				return errors.New(api.Message(err, "Failed to check availability"))
			}
			state := "available for pickup"
			if !ok {
				state = "not available for pickup"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s at %s: %d units, %s\n", inv.ProductName, inv.StoreLocation, inv.StockQuantity, state)
			return nil
		}),
	}

	var unavailable bool
	set := &cobra.Command{
		Use:   "set <product-id> <store> <quantity>",
		Short: "Create or replace the stock record of a product at a store",
		Args:  cobra.ExactArgs(3),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity(args[2])
			if err != nil {
				return err
			}
			available := !unavailable
			inv, err := a.client.UpsertStoreInventory(cmd.Context(), domain.StoreInventory{
				ProductID:     id,
				StoreLocation: args[1],
				StockQuantity: qty,
				IsAvailable:   &available,
			})
			if err != nil {
				return errors.New(api.Message(err, "Failed to save inventory"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inventory #%d: %s at %s set to %d\n", inv.InventoryID, inv.ProductName, inv.StoreLocation, inv.StockQuantity)
			return nil
		}),
	}
	set.Flags().BoolVar(&unavailable, "unavailable", false, "Hide the product from pickup at this store")

	stock := &cobra.Command{
		Use:   "stock <product-id> <store> <quantity>",
		Short: "Change the quantity of an existing stock record",
		Args:  cobra.ExactArgs(3),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity(args[2])
			if err != nil {
				return err
			}
			if err := a.client.UpdateStoreStock(cmd.Context(), id, args[1], qty); err != nil {
				return errors.New(api.Message(err, "Failed to update stock"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stock of product #%d at %s set to %d\n", id, args[1], qty)
			return nil
		}),
	}

	var threshold int
	low := &cobra.Command{
		Use:   "low <store>",
		Short: "List products running low at a store",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			items, err := a.client.LowStockAtStore(cmd.Context(), args[0], threshold)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load inventory"))
			}
			if len(items) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "Nothing is running low at %s\n", args[0])
				return nil
			}
			return printInventory(cmd.OutOrStdout(), items)
		}),
	}
	low.Flags().IntVar(&threshold, "threshold", 10, "Units at or below which stock is low")

	stores := &cobra.Command{
		Use:   "stores <product-id>",
		Short: "List the stores a product can be picked up from",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			names, err := a.client.StoresWithProduct(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load stores"))
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No store has it in stock")
				return nil
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		}),
	}

	remove := &cobra.Command{
		Use:   "delete <inventory-id>",
		Short: "Delete a stock record",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteInventory(cmd.Context(), id); err != nil {
				return errors.New(api.Message(err, "Failed to delete inventory"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Inventory #%d deleted\n", id)
			return nil
		}),
	}

	cmd.AddCommand(store, product, at, set, stock, low, stores, remove)
	return cmd
}

func printInventory(out io.Writer, items []domain.StoreInventory) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "No stock records")
		return nil
	}
	t := newTable("ID", "PRODUCT", "STORE", "STOCK", "")
	for _, inv := range items {
		note := ""
		if inv.IsAvailable != nil && !*inv.IsAvailable {
			note = "unavailable"
		}
		t.row(strconv.FormatInt(inv.InventoryID, 10), inv.ProductName, inv.StoreLocation, strconv.Itoa(inv.StockQuantity), note)
	}
	return t.render(out)
}

func adminAnalyticsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analytics",
		Short: "Sales figures, excluding cancelled orders",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			s, err := a.client.SalesAnalytics(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load analytics"))
			}
			return printAnalytics(cmd.OutOrStdout(), s)
		}),
	}
}

func printAnalytics(out io.Writer, s *domain.SalesAnalytics) error {
	t := newTable()
	t.row("Revenue", rupees(s.TotalRevenue))
	t.row("Orders", fmt.Sprintf("%d (%d online, %d in store)", s.TotalOrders, s.OnlineOrders, s.InStoreOrders))
	t.row("Average order", rupees(s.AverageOrderValue))
	if err := t.render(out); err != nil {
		return err
	}

	if len(s.TopSellingProducts) > 0 {
		fmt.Fprintln(out, "\nTop products")
		t = newTable("PRODUCT", "UNITS", "REVENUE")
		for _, p := range s.TopSellingProducts {
			t.row(p.ProductName, strconv.FormatInt(p.UnitsSold, 10), rupees(p.Revenue))
		}
		if err := t.render(out); err != nil {
			return err
		}
	}

	if len(s.RevenueByCategory) > 0 {
		fmt.Fprintln(out, "\nRevenue by category")
		t = newTable()
		for _, c := range sortedKeys(s.RevenueByCategory) {
			t.row(c, rupees(s.RevenueByCategory[c]))
		}
		if err := t.render(out); err != nil {
			return err
		}
	}

	if len(s.OrdersByStatus) > 0 {
		fmt.Fprintln(out, "\nOrders by status")
		t = newTable()
		for _, st := range sortedKeys(s.OrdersByStatus) {
			t.row(st, strconv.FormatInt(s.OrdersByStatus[st], 10))
		}
		return t.render(out)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func adminCampaignsCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaigns",
		Short: "List every campaign",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			campaigns, err := a.client.ListCampaigns(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load campaigns"))
			}
			t := newTable("ID", "TITLE", "STARTS", "ENDS", "")
			for _, c := range campaigns {
				state := ""
				if c.Active {
					state = "active"
				}
				t.row(strconv.FormatInt(c.CampaignID, 10), c.Title, c.StartDate, c.EndDate, state)
			}
			return t.render(cmd.OutOrStdout())
		}),
	}

	var form campaignForm
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a campaign",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			var req domain.CreateCampaignRequest
			if err := form.apply(cmd, &req); err != nil {
				return err
			}
			c, err := a.client.CreateCampaign(cmd.Context(), req)
			if err != nil {
				return errors.New(api.Message(err, "Failed to create campaign"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Campaign #%d %s created\n", c.CampaignID, c.Title)
			return nil
		}),
	}
	form.bind(create)
	_ = create.MarkFlagRequired("title")
	_ = create.MarkFlagRequired("start")
	_ = create.MarkFlagRequired("end")

	var edit campaignForm
	update := &cobra.Command{
		Use:   "update <campaign-id>",
		Short: "Change the fields given as flags; --product replaces the product list",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			cur, err := a.client.GetCampaign(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load campaign"))
			}
			products, err := a.client.CampaignProducts(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load campaign products"))
			}
			req := domain.CreateCampaignRequest{
				Title:          cur.Title,
				TargetAudience: cur.TargetAudience,
				BannerImageURL: cur.BannerImageURL,
				Budget:         cur.Budget,
				StartDate:      cur.StartDate,
				EndDate:        cur.EndDate,
				Products:       products,
			}
			if err := edit.apply(cmd, &req); err != nil {
				return err
			}
			if _, err := a.client.UpdateCampaign(cmd.Context(), id, req); err != nil {
				return errors.New(api.Message(err, "Failed to update campaign"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Campaign #%d updated\n", id)
			return nil
		}),
	}
	edit.bind(update)

	remove := &cobra.Command{
		Use:   "delete <campaign-id>",
		Short: "Delete a campaign",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteCampaign(cmd.Context(), id); err != nil {
				return errors.New(api.Message(err, "Failed to delete campaign"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Campaign #%d deleted\n", id)
			return nil
		}),
	}

	report := &cobra.Command{
		Use:   "report <campaign-id>",
		Short: "Show the orders and revenue a campaign brought in",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			r, err := a.client.CampaignReport(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load campaign report"))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, r.Title)
			t := newTable()
			t.indent = "  "
			t.row("Orders", strconv.FormatInt(r.TotalOrders, 10))
			t.row("Units sold", strconv.FormatInt(r.UnitsSold, 10))
			t.row("Revenue", rupees(r.TotalRevenue))
			t.row("Shopper savings", rupees(r.TotalSavings))
			t.row("Budget used", rupees(r.BudgetUtilized))
			return t.render(out)
		}),
	}

	cmd.AddCommand(create, update, remove, report)
	return cmd
}

// campaignForm holds the campaign fields settable from flags.
type campaignForm struct {
	title, audience, banner, budget, start, end string
	products                                    []string
}

func (f *campaignForm) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.title, "title", "", "Campaign title")
	fs.StringVar(&f.audience, "audience", "", "Target audience")
	fs.StringVar(&f.banner, "banner", "", "Banner image URL")
	fs.StringVar(&f.budget, "budget", "", "Budget in rupees")
	fs.StringVar(&f.start, "start", "", "First day, YYYY-MM-DD")
	fs.StringVar(&f.end, "end", "", "Last day, YYYY-MM-DD")
	fs.StringArrayVar(&f.products, "product", nil, "Product and discount as <product-id>:<percent>, repeatable")
}

func (f *campaignForm) apply(cmd *cobra.Command, req *domain.CreateCampaignRequest) error {
	set := cmd.Flags().Changed
	if set("title") {
		req.Title = f.title
	}
	if set("audience") {
		req.TargetAudience = f.audience
	}
	if set("banner") {
		req.BannerImageURL = f.banner
	}
	if set("budget") {
		b, err := decimal.NewFromString(f.budget)
		if err != nil {
			return fmt.Errorf("invalid budget %q", f.budget)
		}
		req.Budget = &b
	}
	if set("start") {
		req.StartDate = f.start
	}
	if set("end") {
		req.EndDate = f.end
	}
	if set("product") {
		req.Products = req.Products[:0]
		for _, p := range f.products {
			cp, err := parseCampaignProduct(p)
			if err != nil {
				return err
			}
			req.Products = append(req.Products, cp)
		}
	}
	return nil
}

// parseCampaignProduct reads "<product-id>:<percent>".
func parseCampaignProduct(s string) (domain.CampaignProduct, error) {
	idPart, pctPart, ok := strings.Cut(s, ":")
	if !ok {
		return domain.CampaignProduct{}, fmt.Errorf("invalid product %q, want <product-id>:<percent>", s)
	}
	id, err := parseID(idPart)
	if err != nil {
		return domain.CampaignProduct{}, err
	}
	pct, err := decimal.NewFromString(pctPart)
	if err != nil {
		return domain.CampaignProduct{}, fmt.Errorf("invalid discount %q", pctPart)
	}
	return domain.CampaignProduct{ProductID: id, DiscountPercentage: pct}, nil
}

func adminLoyaltyCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loyalty",
		Short: "List loyalty accounts",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			accounts, err := a.client.AllLoyaltyAccounts(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load loyalty accounts"))
			}
			t := newTable("USER", "NAME", "EMAIL", "BALANCE", "EARNED")
			for _, acc := range accounts {
				t.row(strconv.FormatInt(acc.UserID, 10), acc.UserName, acc.UserEmail, strconv.Itoa(acc.PointsBalance), strconv.Itoa(acc.TotalEarned))
			}
			return t.render(cmd.OutOrStdout())
		}),
	}

	show := &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a customer's loyalty account",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			acc, err := a.client.LoyaltyUserDetails(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load loyalty account"))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>", acc.UserName, acc.UserEmail)
			if acc.UserPhone != "" {
				fmt.Fprintf(out, " %s", acc.UserPhone)
			}
			fmt.Fprintf(out, "\nPoints balance: %d (earned %d)\n", acc.PointsBalance, acc.TotalEarned)
			return printTransactions(out, acc.RecentTransactions)
		}),
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show program-wide loyalty totals",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			s, err := a.client.LoyaltyStats(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load loyalty stats"))
			}
			t := newTable()
			t.row("Members", strconv.FormatInt(s.TotalAccounts, 10))
			t.row("Points issued", strconv.FormatInt(s.TotalPointsIssued, 10))
			t.row("Points redeemed", strconv.FormatInt(s.TotalPointsRedeemed, 10))
			t.row("Points in circulation", strconv.FormatInt(s.ActivePointsBalance, 10))
			return t.render(cmd.OutOrStdout())
		}),
	}

	cmd.AddCommand(show, stats)
	return cmd
}
