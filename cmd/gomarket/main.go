package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/stripe/stripe-go/v79"
	"go.uber.org/zap"

	"goflare.io/gomarket"
	"goflare.io/gomarket/cart"
	"goflare.io/gomarket/config"
	"goflare.io/gomarket/models"
)

const usage = `usage: gomarket <command> [flags]

commands:
  list                          print the cart
  add -id ID -title T -image U -price P
                                add a product (or one more of it)
  inc ID                        add one to a product's quantity
  dec ID                        take one from a product's quantity
  clear                         empty the cart
  checkout -success URL -cancel URL
                                print Stripe Checkout session parameters
  watch                         log cart events from NATS until interrupted

The default memory backend starts every run with an empty cart. Set GOMARKET_REDIS_ADDR
(or GOMARKET_STORAGE=postgres with GOMARKET_POSTGRES_DSN) to keep the cart between runs.
`

var errUsage = errors.New("invalid usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, "gomarket:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := gomarket.NewLogger(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	app, err := gomarket.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Error("Failed to close cart", zap.Error(err))
		}
	}()

	return execute(app.Context(ctx), app, args, out)
}

func execute(ctx context.Context, app *gomarket.App, args []string, out io.Writer) error {
	svc, err := cart.FromContext(ctx)
	if err != nil {
		return err
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "list":
		return printJSON(out, map[string]any{
			"products": svc.Products(),
			"summary":  app.Summary(),
		})

	case "add":
		fs := flag.NewFlagSet("add", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		var p models.Product
		fs.StringVar(&p.ID, "id", "", "product id")
		fs.StringVar(&p.Title, "title", "", "product title")
		fs.StringVar(&p.ImageURL, "image", "", "product image URL")
		fs.Float64Var(&p.Price, "price", 0, "unit price")
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		if err := svc.AddToCart(ctx, p); err != nil {
			return err
		}

	case "inc", "dec":
		if len(rest) != 1 {
			return errUsage
		}
		op := svc.Increment
		if cmd == "dec" {
			op = svc.Decrement
		}
		if err := op(ctx, rest[0]); err != nil {
			return err
		}

	case "clear":
		if err := app.Store().Clear(ctx); err != nil {
			return err
		}

	case "checkout":
		fs := flag.NewFlagSet("checkout", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		success := fs.String("success", "", "success URL")
		cancel := fs.String("cancel", "", "cancel URL")
		if err := fs.Parse(rest); err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		params, err := app.CheckoutSession(*success, *cancel)
		if err != nil {
			return err
		}
		return printJSON(out, sessionView(params))

	case "watch":
		return watch(ctx, app, out)

	default:
		return errUsage
	}

	if err := app.Store().Flush(ctx); err != nil {
		return err
	}
	return printJSON(out, svc.Products())
}

func watch(ctx context.Context, app *gomarket.App, out io.Writer) error {
	events := app.Events()
	if events == nil {
		return errors.New("watch needs GOMARKET_NATS_URL")
	}

	events.RegisterHandlerForAll(eventPrinter(out))

	sub, err := events.SubscribeToEvents(app.Pool())
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()

	<-ctx.Done()
	return nil
}

// eventPrinter writes each event as one JSON document. Handlers run on several workers, so
// writes are serialized.
func eventPrinter(out io.Writer) gomarket.EventHandler {
	var mu sync.Mutex
	return func(_ context.Context, ev *models.CartEvent) error {
		mu.Lock()
		defer mu.Unlock()
		return printJSON(out, ev)
	}
}

type lineItemView struct {
	Name       string `json:"name"`
	Quantity   int64  `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
}

func sessionView(params *stripe.CheckoutSessionParams) map[string]any {
	items := make([]lineItemView, 0, len(params.LineItems))
	for _, item := range params.LineItems {
		items = append(items, lineItemView{
			Name:       stripe.StringValue(item.PriceData.ProductData.Name),
			Quantity:   stripe.Int64Value(item.Quantity),
			UnitAmount: stripe.Int64Value(item.PriceData.UnitAmount),
			Currency:   stripe.StringValue(item.PriceData.Currency),
		})
	}
	return map[string]any{
		"mode":        stripe.StringValue(params.Mode),
		"success_url": stripe.StringValue(params.SuccessURL),
		"cancel_url":  stripe.StringValue(params.CancelURL),
		"line_items":  items,
	}
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
