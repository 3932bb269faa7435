package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"finsync/internal/models"
	"finsync/internal/store"

	"gopkg.in/yaml.v3"
)

type AccountsConfig struct {
	Accounts []models.Account `yaml:"accounts"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		accountsPath = flag.String("accounts", "configs/accounts.yaml", "path to accounts.yaml")
		dbPath       = flag.String("db", "./data/sync.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*accountsPath)
	if err != nil {
		return fmt.Errorf("read accounts: %w", err)
	}
	var cfg AccountsConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse accounts: %w", err)
	}
	if len(cfg.Accounts) == 0 {
		return fmt.Errorf("no accounts in yaml")
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for i := range cfg.Accounts {
		acct := cfg.Accounts[i]
		if acct.ID == "" {
			continue
		}
		acct.UpdatedAt = time.Now()

		_, err := st.GetAccount(ctx, acct.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, store.ErrNotFound):
			created++
		default:
			return fmt.Errorf("get %s: %w", acct.ID, err)
		}

		if err := st.UpsertAccount(ctx, &acct); err != nil {
			return fmt.Errorf("upsert %s: %w", acct.ID, err)
		}
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
