package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	apiURL    string
	clientID  string
	dataDir   string
	imagePath string
	watchFlag bool
	refresh   bool

	category string
	search   string
	sortKey  string
	page     int
	pageSize int

	rootCmd = &cobra.Command{
		Use:          "dressroom",
		Short:        "Try on storefront products from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return openSession()
		},
	}

	submitCmd = &cobra.Command{
		Use:   "submit [product-id]",
		Short: "Submit a photo to try on a product",
		Args:  cobra.ExactArgs(1),
		RunE:  runSubmit, // cmd_tryon.go
	}
	listCmd = &cobra.Command{
		Use:     "list",
		Short:   "List tracked try-ons, newest first",
		Aliases: []string{"ls"},
		RunE:    runList, // cmd_tryon.go
	}
	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Poll pending try-ons until they finish",
		RunE:  runWatch, // cmd_tryon.go
	}
	removeCmd = &cobra.Command{
		Use:     "remove [product-id]",
		Short:   "Stop tracking the try-on for a product",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(1),
		RunE:    runRemove, // cmd_tryon.go
	}
	productsCmd = &cobra.Command{
		Use:   "products [product-id]",
		Short: "Browse the catalog or show one product",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runProducts, // cmd_products.go
	}
)

func init() {
	home, _ := os.UserHomeDir()

	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("DRESSROOM_API_URL", "http://localhost:8080"), "Storefront API base URL")
	rootCmd.PersistentFlags().StringVar(&clientID, "client-id", os.Getenv("DRESSROOM_CLIENT_ID"), "Client identity sent as X-Client-ID (generated and stored when empty)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", envOr("DRESSROOM_DATA_DIR", filepath.Join(home, ".dressroom")), "Directory for local state")

	submitCmd.Flags().StringVarP(&imagePath, "image", "i", "", "Photo to try on (reuses the last photo when empty)")
	submitCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch the job after submitting")
	listCmd.Flags().BoolVar(&refresh, "refresh", false, "Poll the server once before listing")

	productsCmd.Flags().StringVar(&category, "category", "", "Filter by category")
	productsCmd.Flags().StringVarP(&search, "query", "q", "", "Search name and brand")
	productsCmd.Flags().StringVar(&sortKey, "sort", "", "featured, name, price_asc, price_desc or newest")
	productsCmd.Flags().IntVar(&page, "page", 1, "Page number")
	productsCmd.Flags().IntVar(&pageSize, "page-size", 0, "Items per page")
	productsCmd.Flags().BoolVar(&refresh, "refresh", false, "Bypass the local catalog cache")

	rootCmd.AddCommand(submitCmd, listCmd, watchCmd, removeCmd, productsCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
