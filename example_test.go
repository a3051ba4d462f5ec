package pagable_test

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/euforicio/pagable"
	"github.com/euforicio/pagable/element"
)

func counter(ctx context.Context, c *pagable.Component) (element.Node, error) {
	visits, setVisits := pagable.UseState(c, "visits", 0)
	setVisits.Update(func(n int) int { return n + 1 })

	if visits == 0 {
		if err := pagable.Alert(ctx, c, "Welcome to pagable!"); err != nil {
			return nil, err
		}
	}
	return element.Div(
		element.H1("Counter"),
		element.P(fmt.Sprintf("rendered %d times", visits+1)),
	), nil
}

func Example() {
	app := pagable.New(pagable.DefaultConfig(), nil)
	app.MustRegister(pagable.Page{
		Route:    "/counter",
		Handle:   counter,
		Requires: []string{"counter.js"},
		Meta:     map[string]any{"title": "Counter"},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := app.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
