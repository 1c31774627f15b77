package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"storefront/internal/tracker"
)

const clientIDKey = "client-id"

// session is the local state shared by all commands.
type session struct {
	badger  *tracker.BadgerStorage
	store   *tracker.BudgetStore
	tracker *tracker.Tracker
	catalog *tracker.CatalogCache
	client  *tracker.Client
	logger  zerolog.Logger
}

var sess *session

func openSession() error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel).With().Timestamp().Logger()
	if os.Getenv("DRESSROOM_DEBUG") != "" {
		logger = logger.Level(zerolog.DebugLevel)
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	db, err := tracker.OpenBadger(dataDir)
	if err != nil {
		return fmt.Errorf("open local state: %w", err)
	}
	store := tracker.NewBudgetStore(db, tracker.DefaultBudget, tracker.ItemsKey, tracker.SourceImageKey, clientIDKey)

	id, err := resolveClientID(store)
	if err != nil {
		_ = db.Close()
		return err
	}

	t := tracker.New(store, logger)
	t.Load()
	sess = &session{
		badger:  db,
		store:   store,
		tracker: t,
		catalog: tracker.NewCatalogCache(store),
		client:  tracker.NewClient(tracker.ClientOptions{BaseURL: apiURL, ClientID: id}),
		logger:  logger,
	}
	return nil
}

func closeSession() {
	if sess == nil {
		return
	}
	if err := sess.badger.Close(); err != nil {
		sess.logger.Warn().Err(err).Msg("close local state")
	}
	sess = nil
}

// resolveClientID prefers the flag, then the stored id, and otherwise
// generates one and stores it.
func resolveClientID(store *tracker.BudgetStore) (string, error) {
	if id := strings.TrimSpace(clientID); id != "" {
		return id, nil
	}
	raw, err := store.Get(clientIDKey)
	if err == nil && len(raw) > 0 {
		return string(raw), nil
	}
	if err != nil && !errors.Is(err, tracker.ErrNotFound) {
		return "", fmt.Errorf("read client id: %w", err)
	}
	id := uuid.NewString()
	if err := store.Set(clientIDKey, []byte(id)); err != nil {
		return "", fmt.Errorf("store client id: %w", err)
	}
	return id, nil
}
