package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/inquest/config"
	"github.com/mohammad-safakhou/inquest/internal/store"
)

func historyCMD() *cobra.Command {
	var cfgPath string
	var limit int
	var skip int

	var history = &cobra.Command{
		Use:   "history",
		Short: "List saved research records, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			records, err := st.ListResearch(cmd.Context(), limit, skip)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no records")
				return nil
			}
			for _, r := range records {
				fmt.Printf("%s  %s  %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Query)
			}
			return nil
		},
	}
	history.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	history.Flags().IntVar(&limit, "limit", 10, "max records to list")
	history.Flags().IntVar(&skip, "skip", 0, "records to skip")

	return history
}

func statsCMD() *cobra.Command {
	var cfgPath string

	var stats = &cobra.Command{
		Use:   "stats",
		Short: "Show research record statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd.Context(), cfgPath)
			if err != nil {
				return err
			}
			defer st.DB.Close()

			s, err := st.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("total records:    %d\n", s.Total)
			fmt.Printf("last seven days:  %d\n", s.LastSevenDays)
			return nil
		},
	}
	stats.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return stats
}

func openStore(ctx context.Context, cfgPath string) (*store.Store, error) {
	cfg := config.LoadConfig(cfgPath)
	if err := cfg.Storage.Postgres.Validate(); err != nil {
		return nil, err
	}
	return store.NewWithDSN(ctx, cfg.Storage.Postgres.DSN(), log.New(os.Stderr, "[STORE] ", log.LstdFlags))
}
