package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"storefront/internal/domain"
)

func runProducts(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid product id %q", args[0])
		}
		p, err := sess.client.Product(ctx, id)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d  %s (%s)\n%s  %.2f %s\n%s\n", p.ID, p.Name, p.Brand, p.Category, p.Price, p.Currency, p.Description)
		for _, img := range p.Images {
			fmt.Fprintf(out, "  %s\n", img)
		}
		return nil
	}

	q := domain.ProductQuery{Category: category, Search: search, Sort: sortKey, Page: page, PageSize: pageSize}
	if refresh {
		sess.catalog.Invalidate()
	}
	result, err := sess.catalog.Fetch(ctx, q, sess.client.Products)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tBRAND\tCATEGORY\tPRICE")
	for _, p := range result.Items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f %s\n", p.ID, p.Name, p.Brand, p.Category, p.Price, strings.TrimSpace(p.Currency))
	}
	_ = w.Flush()
	fmt.Fprintf(out, "page %d of %d (%d products)\n", result.Page, result.TotalPages, result.Total)
	return nil
}
