package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fjod/shopsphere/internal/api"
	"github.com/fjod/shopsphere/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var errAdminOnly = errors.New("admin access required: sign in with an admin account")

type adminFunc func(cmd *cobra.Command, args []string, a *app) error

// adminRunE opens the app and runs fn only for a signed-in admin.
func adminRunE(flags *globalFlags, fn adminFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(flags, true)
		if err != nil {
			return err
		}
		defer a.Close()
		if _, err := requireUser(a); err != nil {
			return err
		}
		if !a.session.IsAdmin() {
			return errAdminOnly
		}
		return fn(cmd, args, a)
	}
}

func adminCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Store administration (admin accounts only)",
		Long: `Manage the catalog, orders, payments, store inventory, campaigns and
loyalty accounts. Every subcommand requires a profile signed in as an admin.`,
		RunE: adminRunE(flags, dashboard),
	}
	cmd.AddCommand(
		adminProductsCmd(flags),
		adminOrdersCmd(flags),
		adminPaymentsCmd(flags),
		adminInventoryCmd(flags),
		adminAnalyticsCmd(flags),
		adminCampaignsCmd(flags),
		adminLoyaltyCmd(flags),
	)
	return cmd
}

// dashboard prints the overview an admin sees first.
func dashboard(cmd *cobra.Command, _ []string, a *app) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sales, err := a.client.SalesAnalytics(ctx)
	if err != nil {
		return errors.New(api.Message(err, "Failed to load analytics"))
	}
	low, err := a.client.LowStockCount(ctx)
	if err != nil {
		return errors.New(api.Message(err, "Failed to load low stock count"))
	}
	recent, err := a.client.RecentOrders(ctx, 7)
	if err != nil {
		return errors.New(api.Message(err, "Failed to load recent orders"))
	}

	t := newTable()
	t.row("Revenue", rupees(sales.TotalRevenue))
	t.row("Orders", strconv.FormatInt(sales.TotalOrders, 10))
	t.row("Average order", rupees(sales.AverageOrderValue))
	t.row("Orders this week", strconv.Itoa(len(recent)))
	if err := t.render(out); err != nil {
		return err
	}
	if low > 0 {
		fmt.Fprintf(out, "\n%d products are running low on stock: shopsphere admin products --low-stock\n", low)
	}
	return nil
}

func adminProductsCmd(flags *globalFlags) *cobra.Command {
	var lowStock bool
	cmd := &cobra.Command{
		Use:   "products",
		Short: "List the catalog",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			var products []domain.Product
			var err error
			if lowStock {
				products, err = a.client.LowStockProducts(cmd.Context())
			} else {
				products, err = a.client.ListProducts(cmd.Context())
			}
			if err != nil {
				return errors.New(api.Message(err, "Failed to load products"))
			}
			if lowStock && len(products) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "All products are well stocked")
				return nil
			}
			return printProducts(cmd.OutOrStdout(), products)
		}),
	}
	cmd.Flags().BoolVar(&lowStock, "low-stock", false, "Only products with 10 or fewer units left")

	var form productForm
	add := &cobra.Command{
		Use:   "add",
		Short: "Add a product",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			var p domain.Product
			if err := form.apply(cmd, &p); err != nil {
				return err
			}
			created, err := a.client.CreateProduct(cmd.Context(), p)
			if err != nil {
				return errors.New(api.Message(err, "Failed to create product"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product #%d %s created\n", created.ProductID, created.Name)
			return nil
		}),
	}
	form.bind(add)
	_ = add.MarkFlagRequired("name")
	_ = add.MarkFlagRequired("price")

	var edit productForm
	update := &cobra.Command{
		Use:   "update <product-id>",
		Short: "Change the fields given as flags",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.client.GetProduct(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load product"))
			}
			if err := edit.apply(cmd, p); err != nil {
				return err
			}
			if _, err := a.client.UpdateProduct(cmd.Context(), id, *p); err != nil {
				return errors.New(api.Message(err, "Failed to update product"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product #%d updated\n", id)
			return nil
		}),
	}
	edit.bind(update)
	update.Flags().BoolVar(&edit.active, "active", true, "Whether shoppers can buy the product")

	remove := &cobra.Command{
		Use:   "delete <product-id>",
		Short: "Delete a product",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.client.DeleteProduct(cmd.Context(), id); err != nil {
				return errors.New(api.Message(err, "Failed to delete product"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Product #%d deleted\n", id)
			return nil
		}),
	}

	stock := &cobra.Command{
		Use:   "stock <product-id> <quantity>",
		Short: "Set the online stock of a product",
		Args:  cobra.ExactArgs(2),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			qty, err := parseQuantity(args[1])
			if err != nil {
				return err
			}
			p, err := a.client.UpdateProductStock(cmd.Context(), id, qty)
			if err != nil {
				return errors.New(api.Message(err, "Failed to update stock"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has %d in stock\n", p.Name, qty)
			return nil
		}),
	}

	categories := &cobra.Command{
		Use:   "categories",
		Short: "List product categories",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			cats, err := a.client.Categories(cmd.Context())
			if err != nil {
				return errors.New(api.Message(err, "Failed to load categories"))
			}
			for _, c := range cats {
				fmt.Fprintln(cmd.OutOrStdout(), c)
			}
			return nil
		}),
	}

	var campaignID int64
	eligible := &cobra.Command{
		Use:   "eligible",
		Short: "List products that can join a campaign",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			products, err := a.client.ProductsAvailableForCampaign(cmd.Context(), campaignID)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load products"))
			}
			return printProducts(cmd.OutOrStdout(), products)
		}),
	}
	eligible.Flags().Int64Var(&campaignID, "campaign", 0, "Campaign being edited; its own products stay eligible")

	cmd.AddCommand(add, update, remove, stock, categories, eligible)
	return cmd
}

// productForm holds the product fields settable from flags.
type productForm struct {
	name, description, category, sku, image, price string
	stock                                          int
	active                                         bool
}

func (f *productForm) bind(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.name, "name", "", "Product name")
	fs.StringVar(&f.description, "description", "", "Description")
	fs.StringVar(&f.category, "category", "", "Category")
	fs.StringVar(&f.sku, "sku", "", "Stock keeping unit")
	fs.StringVar(&f.image, "image", "", "Image URL")
	fs.StringVar(&f.price, "price", "", "Price in rupees")
	fs.IntVar(&f.stock, "stock", 0, "Units in stock")
}

// apply copies the flags the user set onto p.
func (f *productForm) apply(cmd *cobra.Command, p *domain.Product) error {
	set := cmd.Flags().Changed
	if set("name") {
		p.Name = f.name
	}
	if set("description") {
		p.Description = f.description
	}
	if set("category") {
		p.Category = f.category
	}
	if set("sku") {
		p.SKU = f.sku
	}
	if set("image") {
		p.ImageURL = f.image
	}
	if set("price") {
		price, err := decimal.NewFromString(f.price)
		if err != nil {
			return fmt.Errorf("invalid price %q", f.price)
		}
		p.Price = price
	}
	if set("stock") {
		if f.stock < 0 {
			return fmt.Errorf("invalid stock %d", f.stock)
		}
		stock := f.stock
		p.StockQuantity = &stock
	}
	if set("active") {
		p.IsActive = f.active
	}
	return nil
}

func parseQuantity(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid quantity %q", s)
	}
	return n, nil
}

func adminOrdersCmd(flags *globalFlags) *cobra.Command {
	var status string
	var days int
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "List orders of every customer",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			var orders []domain.Order
			var err error
			switch {
			case status != "":
				orders, err = a.client.OrdersByStatus(cmd.Context(), domain.OrderStatus(strings.ToUpper(status)))
			case days > 0:
				orders, err = a.client.RecentOrders(cmd.Context(), days)
			default:
				orders, err = a.client.ListOrders(cmd.Context())
			}
			if err != nil {
				return errors.New(api.Message(err, "Failed to load orders"))
			}
			if len(orders) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No orders found")
				return nil
			}
			return printOrders(cmd.OutOrStdout(), orders)
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "Only orders in this status")
	cmd.Flags().IntVar(&days, "days", 0, "Only orders from the last N days")

	var tracking string
	setStatus := &cobra.Command{
		Use:   "status <order-id> <status>",
		Short: "Move an order to its next status",
		Long: `Move an order along PLACED -> CONFIRMED -> SHIPPED -> DELIVERED.
Placed and confirmed orders can also be CANCELLED, which returns their stock.`,
		Args: cobra.ExactArgs(2),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			req := domain.UpdateOrderStatusRequest{
				Status:         domain.OrderStatus(strings.ToUpper(args[1])),
				TrackingNumber: tracking,
			}
			o, err := a.client.UpdateOrderStatus(cmd.Context(), id, req)
			if err != nil {
				return errors.New(api.Message(err, "Failed to update order status"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order #%d is now %s\n", o.OrderID, o.Status)
			return nil
		}),
	}
	setStatus.Flags().StringVar(&tracking, "tracking", "", "Tracking number, recorded when shipping")

	paymentStatus := &cobra.Command{
		Use:   "payment-status <order-id> <status>",
		Short: "Record the payment status of an order",
		Args:  cobra.ExactArgs(2),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			o, err := a.client.UpdateOrderPaymentStatus(cmd.Context(), id, domain.PaymentStatus(strings.ToUpper(args[1])))
			if err != nil {
				return errors.New(api.Message(err, "Failed to update payment status"))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Order #%d payment is %s\n", o.OrderID, o.PaymentStatus)
			return nil
		}),
	}

	invoice := &cobra.Command{
		Use:   "invoice <order-id>",
		Short: "Print the invoice of an order",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			o, err := a.client.GetOrder(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load order"))
			}
			customer, err := a.client.GetUser(cmd.Context(), o.CustomerID)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load customer"))
			}
			payments, err := a.client.PaymentsByOrder(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load payments"))
			}
			return printInvoice(cmd.OutOrStdout(), o, customer, payments)
		}),
	}

	cmd.AddCommand(setStatus, paymentStatus, invoice)
	return cmd
}

func printInvoice(out io.Writer, o *domain.Order, customer *domain.User, payments []domain.Payment) error {
	fmt.Fprintf(out, "INVOICE  Order #%d\n", o.OrderID)
	if o.CreatedAt != nil {
		fmt.Fprintf(out, "Date:     %s\n", o.CreatedAt.Format("02 Jan 2006"))
	}
	fmt.Fprintf(out, "Customer: %s <%s>", customer.Name, customer.Email)
	if customer.Phone != "" {
		fmt.Fprintf(out, " %s", customer.Phone)
	}
	fmt.Fprintln(out)
	if o.OrderType == domain.OrderTypeInStore {
		fmt.Fprintf(out, "Pickup:   %s\n", o.StoreLocation)
	} else {
		fmt.Fprintf(out, "Ship to:  %s\n", o.ShippingAddress)
	}
	fmt.Fprintf(out, "Status:   %s\n\n", o.Status)

	t := newTable("ITEM", "QTY", "PRICE", "AMOUNT")
	subtotal := decimal.Zero
	for _, it := range o.OrderItems {
		line := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		subtotal = subtotal.Add(line)
		t.row(it.ProductName, strconv.Itoa(it.Quantity), rupees(it.UnitPrice), rupees(line))
	}
	t.row("", "", "Subtotal", rupees(subtotal))
	if o.CampaignSavings != nil {
		t.row("", "", "You saved", rupees(*o.CampaignSavings))
	}
	if o.DiscountAmount != nil {
		t.row("", "", "Discount", "-"+rupees(*o.DiscountAmount))
	}
	t.row("", "", "Total", rupees(o.TotalAmount))
	if err := t.render(out); err != nil {
		return err
	}

	for _, p := range payments {
		fmt.Fprintf(out, "\nPayment #%d  %s  %s", p.PaymentID, p.PaymentMethod, p.Status)
		if p.TransactionID != "" {
			fmt.Fprintf(out, "  txn %s", p.TransactionID)
		}
	}
	if len(payments) > 0 {
		fmt.Fprintln(out)
	}
	return nil
}

func adminPaymentsCmd(flags *globalFlags) *cobra.Command {
	var customerID int64
	var status string
	cmd := &cobra.Command{
		Use:   "payments",
		Short: "List payments",
		RunE: adminRunE(flags, func(cmd *cobra.Command, _ []string, a *app) error {
			var payments []domain.Payment
			var err error
			switch {
			case customerID > 0:
				payments, err = a.client.PaymentsByCustomer(cmd.Context(), customerID)
			case status != "":
				payments, err = a.client.PaymentsByStatus(cmd.Context(), domain.PaymentStatus(strings.ToUpper(status)))
			default:
				payments, err = a.client.ListPayments(cmd.Context())
			}
			if err != nil {
				return errors.New(api.Message(err, "Failed to load payments"))
			}
			if len(payments) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No payments found")
				return nil
			}
			t := newTable("PAYMENT", "ORDER", "CUSTOMER", "METHOD", "STATUS", "AMOUNT")
			for _, p := range payments {
				t.row(fmt.Sprintf("#%d", p.PaymentID), fmt.Sprintf("#%d", p.OrderID), strconv.FormatInt(p.CustomerID, 10), string(p.PaymentMethod), string(p.Status), rupees(p.Amount))
			}
			return t.render(cmd.OutOrStdout())
		}),
	}
	cmd.Flags().Int64Var(&customerID, "customer", 0, "Only payments of this customer")
	cmd.Flags().StringVar(&status, "status", "", "Only payments in this status")

	show := &cobra.Command{
		Use:   "show <payment-id>",
		Short: "Show a payment",
		Args:  cobra.ExactArgs(1),
		RunE: adminRunE(flags, func(cmd *cobra.Command, args []string, a *app) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.client.GetPayment(cmd.Context(), id)
			if err != nil {
				return errors.New(api.Message(err, "Failed to load payment"))
			}
			t := newTable()
			t.row("Payment", fmt.Sprintf("#%d", p.PaymentID))
			t.row("Order", fmt.Sprintf("#%d", p.OrderID))
			t.row("Method", string(p.PaymentMethod))
			t.row("Status", string(p.Status))
			t.row("Amount", rupees(p.Amount))
			if p.TransactionID != "" {
				t.row("Transaction", p.TransactionID)
			}
			if p.FailureReason != "" {
				t.row("Failure", p.FailureReason)
			}
			return t.render(cmd.OutOrStdout())
		}),
	}

	cmd.AddCommand(show)
	return cmd
}
