package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/goforge/internal/config"
	"github.com/nextlevelbuilder/goforge/internal/session"
)

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List session keys, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(resolveConfigPath())
			if err != nil {
				return err
			}
			keys, err := session.ListKeys(cfg.Sessions.RootDir)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Printf("No sessions under %s\n", cfg.Sessions.RootDir)
				return nil
			}
			for _, key := range keys {
				fmt.Println(key)
			}
			return nil
		},
	}
}
