package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customer-records/internal/client"
	"github.com/umalmyha/customer-records/internal/listing"
	"github.com/umalmyha/customer-records/internal/model"
)

func main() {
	addr := flag.String("addr", "http://localhost:3000", "customers api base url")
	pageSize := flag.Int("page-size", listing.DefaultPageSize, "customers per page")
	term := flag.String("search", "", "list customers whose name starts with term")
	all := flag.Bool("all", false, "load pages until listing is exhausted")
	flag.Parse()

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ctrl := listing.NewController(client.New(*addr), *pageSize)
	if err := run(ctx, ctrl, *term, *all, os.Stdout); err != nil {
		logger.Fatalf("failed to list customers - %v", err)
	}
}

func run(ctx context.Context, ctrl *listing.Controller, term string, all bool, out io.Writer) error {
	if term != "" {
		if err := ctrl.Search(ctx, term); err != nil {
			return err
		}
		return render(out, ctrl.Snapshot(), time.Now())
	}

	if err := ctrl.Reload(ctx); err != nil {
		return err
	}

	for all && ctrl.Snapshot().HasMore {
		if err := ctrl.LoadMore(ctx); err != nil {
			return err
		}
	}
	return render(out, ctrl.Snapshot(), time.Now())
}

func render(out io.Writer, state listing.State, now time.Time) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCOUNTRY\tCREATED")

	for _, c := range state.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.ID, c.Name, c.Email, c.Address.Country, created(c, now))
	}

	if err := w.Flush(); err != nil {
		return err
	}

	switch {
	case state.Mode == listing.Searching:
		_, err := fmt.Fprintf(out, "\n%d customers match %q\n", len(state.Items), state.Term)
		return err
	case state.HasMore:
		_, err := fmt.Fprintf(out, "\n%d customers shown, more available (use -all)\n", len(state.Items))
		return err
	default:
		_, err := fmt.Fprintf(out, "\n%d customers shown\n", len(state.Items))
		return err
	}
}

func created(c *model.Customer, now time.Time) string {
	return units.HumanDuration(now.Sub(time.UnixMilli(c.CreatedAt))) + " ago"
}
