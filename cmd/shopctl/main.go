package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/MikeMC777/motodetail-shop/internal/cart"
	"github.com/MikeMC777/motodetail-shop/internal/checkout"
	"github.com/MikeMC777/motodetail-shop/internal/config"
	"github.com/MikeMC777/motodetail-shop/internal/money"
	"github.com/MikeMC777/motodetail-shop/internal/order"
	"github.com/MikeMC777/motodetail-shop/internal/product"
	"github.com/MikeMC777/motodetail-shop/internal/redisx"
	"github.com/MikeMC777/motodetail-shop/internal/storefront"
)

// printOpener stands in for the browser: it prints the URL to follow.
type printOpener struct{}

func (printOpener) Open(url string) error {
	fmt.Println("abrir:", url)
	return nil
}

type env struct {
	cfg  config.Client
	api  *storefront.API
	cart *cart.Store
}

func setup(c *cli.Context) *env {
	cfg := config.LoadClient()
	if u := c.String("api"); u != "" {
		cfg.APIURL = u
	}
	var storage cart.Storage = cart.NewFileStorage(cfg.CartDir)
	if addr := c.String("redis"); addr != "" {
		storage = cart.NewRedisStorage(redisx.New(addr))
	}
	return &env{
		cfg:  cfg,
		api:  storefront.NewAPI(cfg.APIURL),
		cart: cart.Open(c.Context, storage, c.String("cart")),
	}
}

func optionalID(c *cli.Context, name string) *int64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int64(name)
	return &v
}

func printCart(s *cart.Store) {
	items := s.Items()
	if len(items) == 0 {
		fmt.Println("carrinho vazio")
		return
	}
	for _, it := range items {
		fmt.Printf("%3dx %-40s %s\n", it.Quantity, it.DisplayName(), money.BRL(it.UnitPrice))
	}
	fmt.Printf("%d itens, total %s\n", s.Count(), money.BRL(s.Total()))
}

func cartCommand() *cli.Command {
	variation := &cli.Int64Flag{Name: "variation", Aliases: []string{"v"}, Usage: "variation id"}
	return &cli.Command{
		Name:  "cart",
		Usage: "manage the local cart",
		Subcommands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "add a product to the cart",
				ArgsUsage: "<product-id>",
				Flags:     []cli.Flag{variation},
				Action: func(c *cli.Context) error {
					e := setup(c)
					id, err := argID(c)
					if err != nil {
						return err
					}
					p, err := e.api.Product(c.Context, id)
					if err != nil {
						return err
					}
					var v *product.Variation
					if vid := optionalID(c, "variation"); vid != nil {
						if v = p.Variation(*vid); v == nil {
							return cli.Exit(fmt.Sprintf("variation %d not found on product %d", *vid, id), 1)
						}
					}
					if err := e.cart.AddItem(*p, v); err != nil {
						return err
					}
					printCart(e.cart)
					return nil
				},
			},
			{
				Name:      "set",
				Usage:     "set the quantity of a line (0 removes it)",
				ArgsUsage: "<product-id> <quantity>",
				Flags:     []cli.Flag{variation},
				Action: func(c *cli.Context) error {
					e := setup(c)
					id, err := argID(c)
					if err != nil {
						return err
					}
					var qty int
					if _, err := fmt.Sscan(c.Args().Get(1), &qty); err != nil {
						return cli.Exit("quantity must be a number", 1)
					}
					e.cart.UpdateQuantity(id, qty, optionalID(c, "variation"))
					printCart(e.cart)
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a line",
				ArgsUsage: "<product-id>",
				Flags:     []cli.Flag{variation},
				Action: func(c *cli.Context) error {
					e := setup(c)
					id, err := argID(c)
					if err != nil {
						return err
					}
					e.cart.RemoveItem(id, optionalID(c, "variation"))
					printCart(e.cart)
					return nil
				},
			},
			{
				Name:  "list",
				Usage: "show the cart",
				Action: func(c *cli.Context) error {
					printCart(setup(c).cart)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: func(c *cli.Context) error {
					setup(c).cart.Clear()
					return nil
				},
			},
		},
	}
}

func argID(c *cli.Context) (int64, error) {
	var id int64
	if _, err := fmt.Sscan(c.Args().First(), &id); err != nil || id <= 0 {
		return 0, cli.Exit("product id must be a positive number", 1)
	}
	return id, nil
}

func checkoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkout",
		Usage: "submit the cart",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "method", Value: string(order.MethodWhatsApp), Usage: "whatsapp, card or pix"},
			&cli.StringFlag{Name: "name"},
			&cli.StringFlag{Name: "phone"},
			&cli.StringFlag{Name: "email"},
			&cli.StringFlag{Name: "address"},
			&cli.Int64Flag{Name: "customer", Usage: "signed-in customer id"},
			&cli.BoolFlag{Name: "watch", Usage: "wait for the payment result"},
		},
		Action: func(c *cli.Context) error {
			e := setup(c)
			form := checkout.CustomerForm{
				Name:    c.String("name"),
				Phone:   c.String("phone"),
				Email:   c.String("email"),
				Address: c.String("address"),
			}
			method := order.PaymentMethod(c.String("method"))
			res, err := storefront.NewCheckout(e.api, e.cart, printOpener{}).
				Submit(c.Context, form, optionalID(c, "customer"), method)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			fmt.Printf("pedido #%d criado (%s)\n", res.OrderID, res.Method)
			if res.Message != "" {
				fmt.Println(res.Message)
			}
			if !method.ViaProvider() || !c.Bool("watch") {
				return nil
			}
			return watch(c.Context, e, res.OrderID)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "follow the payment status of an order",
		ArgsUsage: "<order-id>",
		Action: func(c *cli.Context) error {
			var id int64
			if _, err := fmt.Sscan(c.Args().First(), &id); err != nil || id <= 0 {
				return cli.Exit("order id must be a positive number", 1)
			}
			return watch(c.Context, setup(c), id)
		},
	}
}

func watch(ctx context.Context, e *env, orderID int64) error {
	w := storefront.NewWatcher(e.api, e.cart, e.cfg.PollInterval, e.cfg.PollTimeout)
	out, err := w.Watch(ctx, orderID, func(st order.PaymentState) {
		fmt.Printf("pedido #%d: %s / %s\n", st.OrderID, st.Status, st.PaymentStatus)
	})
	switch {
	case errors.Is(err, storefront.ErrStillProcessing):
		fmt.Println("pagamento ainda em processamento; consulte novamente mais tarde")
		return nil
	case errors.Is(err, storefront.ErrNotFound):
		return cli.Exit(fmt.Sprintf("pedido #%d não encontrado", orderID), 1)
	case err != nil:
		return err
	}
	if !out.Paid() {
		fmt.Println("pagamento não aprovado; o carrinho foi mantido")
		return nil
	}
	fmt.Println("pagamento aprovado!")
	if out.Detail != nil {
		fmt.Printf("total %s\n", money.BRL(out.Detail.Order.Total))
	}
	if out.CartCleared {
		fmt.Println("carrinho esvaziado")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &cli.App{
		Name:  "shopctl",
		Usage: "storefront client for the MotoDetail shop",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Usage: "shop API base URL", EnvVars: []string{"SHOP_API_URL"}},
			&cli.StringFlag{Name: "cart", Value: "default", Usage: "cart name"},
			&cli.StringFlag{Name: "redis", Usage: "keep the cart in Redis at this address instead of a local file", EnvVars: []string{"SHOP_CART_REDIS"}},
		},
		Commands: []*cli.Command{cartCommand(), checkoutCommand(), watchCommand()},
	}
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("[shopctl] %v", err)
	}
}
