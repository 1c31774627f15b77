package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	openai "github.com/sashabaranov/go-openai"

	"storefront/internal/infra"
	"storefront/internal/infra/credentials"
)

func main() {
	_ = godotenv.Load()

	var (
		keyFlag    string
		modelFlag  string
		baseURL    string
		skipVerify bool
	)
	flag.StringVar(&keyFlag, "key", "", "OpenAI API key (fallbacks to OPENAI_API_KEY)")
	flag.StringVar(&modelFlag, "model", "", "Optional image model override stored with the key")
	flag.StringVar(&baseURL, "base-url", os.Getenv("OPENAI_BASE_URL"), "OpenAI API base URL used to verify the key")
	flag.BoolVar(&skipVerify, "skip-verify", false, "Store the key without calling the API first")
	flag.Parse()

	key := strings.TrimSpace(keyFlag)
	if key == "" {
		key = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	}
	if key == "" {
		fmt.Fprintln(os.Stderr, "OPENAI API key is required via -key or environment")
		os.Exit(1)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	if !skipVerify {
		if err := verifyKey(key, baseURL, modelFlag); err != nil {
			fmt.Fprintf(os.Stderr, "openai key rejected: %v\n", err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create pool: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	logger := infra.NewLogger("cli", "openaikey")
	store := credentials.NewStore(infra.NewSQLRunner(pool, logger))

	ctxExec, cancelExec := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelExec()
	if err := store.SetOpenAI(ctxExec, key, modelFlag); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist openai api key: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("OPENAI API key stored successfully")
}

// verifyKey lists models with the key and, when model is set, checks that the
// account can use it.
func verifyKey(key, baseURL, model string) error {
	cfg := openai.DefaultConfig(key)
	if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	client := openai.NewClientWithConfig(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	list, err := client.ListModels(ctx)
	if err != nil {
		return err
	}
	if model = strings.TrimSpace(model); model == "" {
		return nil
	}
	for _, m := range list.Models {
		if m.ID == model {
			return nil
		}
	}
	return fmt.Errorf("model %q not available for this key", model)
}
