package main

import (
	"context"
	"fmt"

	"github.com/Veraticus/pricesync/internal/config"
	"github.com/Veraticus/pricesync/internal/grandline"
	"github.com/Veraticus/pricesync/internal/storage"
	"github.com/Veraticus/pricesync/internal/website"
)

func storageOptions(cfg *config.Config) storage.Options {
	return storage.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
		Catalog: storage.CatalogOptions{
			ProductsTable: cfg.Database.ProductsTable,
			CodeField:     cfg.Database.CodeField,
			NameField:     cfg.Database.NameField,
			PriceField:    cfg.Database.PriceField,
		},
	}
}

// openStorage opens the configured database and brings its schema up to date.
func openStorage(ctx context.Context, cfg *config.Config) (*storage.Storage, error) {
	store, err := storage.Open(ctx, storageOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func newGrandlineClient(cfg *config.Config) (*grandline.Client, error) {
	if err := cfg.RequireGrandline(); err != nil {
		return nil, err
	}
	return grandline.NewClient(grandline.Config{
		BaseURL:           cfg.Grandline.BaseURL,
		APIKey:            cfg.Grandline.APIKey,
		BranchID:          cfg.Grandline.BranchID,
		AgreementID:       cfg.Grandline.AgreementID,
		RequestsPerSecond: cfg.Grandline.RequestsPerSecond,
		Timeout:           cfg.Grandline.Timeout,
		MaxRetries:        cfg.Grandline.MaxRetries,
	})
}

func newWebsiteUpdater(cfg *config.Config) (*website.Updater, error) {
	return website.NewUpdater(website.Config{
		APIURL:     cfg.Website.APIURL,
		APIKey:     cfg.Website.APIKey,
		BatchSize:  cfg.Website.BatchSize,
		Timeout:    cfg.Website.Timeout,
		MaxRetries: cfg.Grandline.MaxRetries,
	})
}
