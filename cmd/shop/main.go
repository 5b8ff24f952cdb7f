package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Ayflow350/Ice-empire/internal/cart"
	"github.com/Ayflow350/Ice-empire/internal/checkout"
	"github.com/Ayflow350/Ice-empire/internal/client"
	"github.com/Ayflow350/Ice-empire/internal/domain/model"
	"github.com/Ayflow350/Ice-empire/internal/infra/cartstore"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	home, _ := os.UserHomeDir()

	app := &cli.App{
		Name:  "shop",
		Usage: "Ice Empire storefront in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "api", Value: "http://localhost:8080", EnvVars: []string{"SHOP_API_URL"}},
			&cli.StringFlag{Name: "cart-file", Value: filepath.Join(home, ".iceempire", "cart.json"), EnvVars: []string{"SHOP_CART_FILE"}},
			&cli.StringFlag{Name: "redis-url", EnvVars: []string{"SHOP_REDIS_URL"}, Usage: "keep the cart in redis instead of a file"},
			&cli.StringFlag{Name: "session", Value: "default", EnvVars: []string{"SHOP_SESSION"}},
			&cli.StringFlag{Name: "shipping-fee", Value: "2500", EnvVars: []string{"SHIPPING_FEE"}},
			&cli.StringFlag{Name: "currency", Value: "USD", EnvVars: []string{"PAYMENT_CURRENCY"}},
			&cli.BoolFlag{Name: "debug"},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				log.SetLevel(logrus.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			cartCommand(log),
			checkoutCommand(log),
			returnCommand(log),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openCart(c *cli.Context, log logrus.FieldLogger) (*cart.Store, error) {
	var storage cart.Storage = cartstore.NewFileStorage(c.String("cart-file"))
	if u := c.String("redis-url"); u != "" {
		rdb, err := cartstore.NewRedisClient(u)
		if err != nil {
			return nil, err
		}
		storage = cartstore.NewRedisStorage(rdb, c.String("session"), cartstore.DefaultTTL)
	}
	return cart.Open(c.Context, storage, log), nil
}

func newOrchestrator(c *cli.Context, store *cart.Store, log logrus.FieldLogger) (*checkout.Orchestrator, error) {
	fee, err := decimal.NewFromString(c.String("shipping-fee"))
	if err != nil {
		return nil, errors.Wrap(err, "shipping-fee")
	}
	api := client.New(c.String("api"), 30*time.Second)
	return checkout.New(store, api, terminalNavigator{}, checkout.Config{
		ShippingFee: fee,
		Currency:    c.String("currency"),
	}, log), nil
}

func cartCommand(log logrus.FieldLogger) *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "manage the cart",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "add a product variant (negative --qty decrements)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "product", Required: true},
					&cli.StringFlag{Name: "variant", Required: true},
					&cli.StringFlag{Name: "size", Required: true},
					&cli.Int64Flag{Name: "qty", Value: 1},
				},
				Action: func(c *cli.Context) error {
					store, err := openCart(c, log)
					if err != nil {
						return err
					}
					//価格と表示名はカタログから取る
					p, err := client.New(c.String("api"), 10*time.Second).Product(c.Context, c.String("product"))
					if err != nil {
						return err
					}
					v, ok := lo.Find(p.Variants, func(v model.ProductVariant) bool { return v.ID == c.String("variant") })
					if !ok {
						return errors.Errorf("variant %s not found", c.String("variant"))
					}
					err = store.AddLine(c.Context, p.ID, v.ID, c.String("size"), p.Price, c.Int64("qty"), cart.Display{
						Name:  p.Name,
						Color: v.ColorName,
						Image: v.ImageURL,
					})
					if err != nil {
						return err
					}
					printCart(store)
					return nil
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a line by key",
				ArgsUsage: "<productId-variantId-size>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.ShowSubcommandHelp(c)
					}
					store, err := openCart(c, log)
					if err != nil {
						return err
					}
					if err := store.RemoveLine(c.Context, c.Args().First()); err != nil {
						return err
					}
					printCart(store)
					return nil
				},
			},
			{
				Name:  "show",
				Usage: "print the cart",
				Action: func(c *cli.Context) error {
					store, err := openCart(c, log)
					if err != nil {
						return err
					}
					printCart(store)
					return nil
				},
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: func(c *cli.Context) error {
					store, err := openCart(c, log)
					if err != nil {
						return err
					}
					return store.Clear(c.Context)
				},
			},
		},
	}
}

func checkoutCommand(log logrus.FieldLogger) *cli.Command {
	return &cli.Command{
		Name:  "checkout",
		Usage: "submit shipping details and start payment",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Required: true},
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "address", Required: true},
			&cli.StringFlag{Name: "city", Required: true},
			&cli.StringFlag{Name: "state", Required: true},
			&cli.StringFlag{Name: "phone", Required: true},
		},
		Action: func(c *cli.Context) error {
			store, err := openCart(c, log)
			if err != nil {
				return err
			}
			o, err := newOrchestrator(c, store, log)
			if err != nil {
				return err
			}

			if o.Load(c.Context, "") != checkout.StepShipping || store.IsEmpty() {
				return checkout.ErrEmptyCart
			}
			err = o.SubmitShipping(checkout.Shipping{
				FullName: c.String("name"),
				Email:    c.String("email"),
				Address:  c.String("address"),
				City:     c.String("city"),
				State:    c.String("state"),
				Phone:    c.String("phone"),
			})
			if err != nil {
				return err
			}

			printCart(store)
			fmt.Printf("%-28s %12s\n", "shipping", c.String("shipping-fee"))
			fmt.Printf("%-28s %12s\n", "total", o.Total().StringFixed(2))

			if err := o.InitiatePayment(c.Context); err != nil {
				return err
			}
			fmt.Println("reference:", o.State().Reference)
			fmt.Println("after paying, run: shop return '<url the gateway sent you back to>'")
			return nil
		},
	}
}

func returnCommand(log logrus.FieldLogger) *cli.Command {
	return &cli.Command{
		Name:      "return",
		Usage:     "verify a payment from the gateway's return URL",
		ArgsUsage: "<return url>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.ShowSubcommandHelp(c)
			}
			store, err := openCart(c, log)
			if err != nil {
				return err
			}
			o, err := newOrchestrator(c, store, log)
			if err != nil {
				return err
			}

			switch o.Load(c.Context, c.Args().First()) {
			case checkout.StepSuccess:
				st := o.State()
				fmt.Printf("order confirmed: %s (%s %s)\n", st.Reference, st.Order.Amount.StringFixed(2), st.Order.Currency)
				return nil
			case checkout.StepFailed:
				return errors.Wrap(o.State().Err, "we could not verify your transaction; start checkout again")
			default:
				return errors.New("no reference in return url")
			}
		},
	}
}

func printCart(store *cart.Store) {
	for _, l := range store.Lines() {
		fmt.Printf("%-28s %-10s x%-3d %12s\n", l.Key, l.Name, l.Quantity, l.LineTotal().StringFixed(2))
	}
	fmt.Printf("%-28s %12s (%d items)\n", "subtotal", store.Subtotal().StringFixed(2), store.Count())
}

// 端末ではリダイレクト先を表示するだけ
type terminalNavigator struct{}

func (terminalNavigator) Redirect(url string) error {
	_, err := fmt.Println("open to pay:", url)
	return err
}

func (terminalNavigator) Push(path string) {
	fmt.Println("your cart is empty; browse", path)
}
