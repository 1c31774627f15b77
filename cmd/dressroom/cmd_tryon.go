package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"storefront/internal/domain"
	"storefront/internal/tracker"
)

func runSubmit(cmd *cobra.Command, args []string) error {
	productID, err := strconv.Atoi(args[0])
	if err != nil || productID <= 0 {
		return fmt.Errorf("invalid product id %q", args[0])
	}

	var image []byte
	if imagePath != "" {
		if image, err = os.ReadFile(imagePath); err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		sess.tracker.SetSourceImage(image)
	} else {
		var ok bool
		if image, ok = sess.tracker.SourceImage(); !ok {
			return errors.New("no photo stored yet, pass one with --image")
		}
	}

	ctx := cmd.Context()
	name := "product " + args[0]
	if p, err := sess.client.Product(ctx, productID); err == nil {
		name = p.Name
	} else {
		sess.logger.Debug().Err(err).Int("product_id", productID).Msg("product lookup failed")
	}

	jobID, err := sess.client.Submit(ctx, image, productID)
	if err != nil {
		var apiErr *tracker.APIError
		if errors.As(err, &apiErr) && apiErr.RateLimited() {
			until := time.UnixMilli(apiErr.EmbargoEndTime)
			return fmt.Errorf("too many try-ons, try again after %s", until.Local().Format(time.Kitchen))
		}
		return err
	}

	sess.tracker.Add(tracker.Item{
		ProductID:   productID,
		ProductName: name,
		Status:      domain.JobStatusInitialized,
		JobID:       jobID,
	})
	fmt.Fprintf(cmd.OutOrStdout(), "submitted %s (%s)\n", name, jobID)

	if watchFlag {
		return runWatch(cmd, nil)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	if refresh {
		poller := tracker.NewPoller(sess.tracker, sess.client, tracker.PollerOptions{Logger: sess.logger})
		poller.Poll(cmd.Context())
	}
	printItems(cmd, sess.tracker.Items())
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(sess.tracker.PendingJobIDs()) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "nothing pending")
		return nil
	}

	poller := tracker.NewPoller(sess.tracker, sess.client, tracker.PollerOptions{
		Logger: sess.logger,
		OnUpdate: func(items []tracker.Item) {
			printItems(cmd, items)
		},
	})
	poller.Start(ctx)
	defer poller.Stop()

	// The active window lapses after a few seconds; keep it open while the
	// terminal is attached.
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if len(sess.tracker.PendingJobIDs()) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "all try-ons finished")
				return nil
			}
			poller.Show()
		}
	}
}

func runRemove(cmd *cobra.Command, args []string) error {
	productID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid product id %q", args[0])
	}
	if !sess.tracker.Remove(productID) {
		return fmt.Errorf("no try-on tracked for product %d", productID)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "removed product %d\n", productID)
	return nil
}

func printItems(cmd *cobra.Command, items []tracker.Item) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tNAME\tSTATUS\tAGE\tRESULT")
	for _, it := range items {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			it.ProductID, it.ProductName, it.DressStatus, time.Since(it.Timestamp).Round(time.Second), it.ImageURL)
	}
	_ = w.Flush()
}

