// Command censusml runs the census exploration and explanation walkthroughs.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/YuminosukeSato/censusml/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
