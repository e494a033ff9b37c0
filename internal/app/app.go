// Package app assembles the client: local store, API client, session manager,
// saved-activity synchronizer and interest board, wired so that every identity
// change reaches the components that depend on it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/moodmingle/internal/client"
	"github.com/sakif/moodmingle/internal/config"
	"github.com/sakif/moodmingle/internal/discover"
	"github.com/sakif/moodmingle/internal/localstore"
	"github.com/sakif/moodmingle/internal/model"
	"github.com/sakif/moodmingle/internal/saved"
	"github.com/sakif/moodmingle/internal/session"
)

type App struct {
	Store   *localstore.Store
	Client  *client.Client
	Session *session.Manager
	Saved   *saved.Synchronizer
	Board   *discover.Board

	logger *slog.Logger
}

// New builds the client and restores the previous session. An unreachable backend
// is not an error here: the app starts anonymous and says so in the log.
func New(ctx context.Context, cfg config.Client, logger *slog.Logger) (*App, error) {
	return newApp(ctx, cfg, nil, logger)
}

// newApp lets tests route the API client through an in-process handler.
func newApp(ctx context.Context, cfg config.Client, transport http.RoundTripper, logger *slog.Logger) (*App, error) {
	store, err := localstore.Open(cfg.DataPath)
	if err != nil {
		return nil, fmt.Errorf("app: opening local store: %w", err)
	}

	api, err := client.New(ctx, client.Options{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		Logger:    logger,
		Cookies:   store,
		Transport: transport,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	mgr := session.NewManager(api, store, session.Options{
		InterestRetries: cfg.InterestRetries,
		RetryDelay:      cfg.RetryDelay,
	}, logger)

	sync := saved.NewSynchronizer(
		saved.NewRemoteActivityStore(api),
		saved.NewLocalActivityStore(store, model.GuestScope),
		store,
		logger,
	)
	board := discover.NewBoard(mgr, store, api, logger)

	mgr.Subscribe(sync.HandleChange)
	mgr.Subscribe(board.HandleChange)

	a := &App{
		Store:   store,
		Client:  api,
		Session: mgr,
		Saved:   sync,
		Board:   board,
		logger:  logger,
	}

	if err := mgr.RestoreSession(ctx); err != nil {
		logger.Warn("starting without a session", slog.String("error", err.Error()))
	}
	return a, nil
}

// Close releases the local store.
func (a *App) Close() error {
	return a.Store.Close()
}
