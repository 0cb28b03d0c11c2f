package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/lumia-app/lumia/internal/repository"
	"github.com/lumia-app/lumia/internal/service"
	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Inspect and manage users",
	}

	userCmd.AddCommand(&cobra.Command{
		Use:   "set-tier <email> <tier>",
		Short: "Change a user's subscription tier (lite, glow, aurora)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer database.Close()

			users := service.NewUserService(repository.NewStore(database), nil)
			user, err := users.SetTier(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s is now on the %s tier\n", user.Email, user.SubscriptionTier)
			return nil
		},
	})

	userCmd.AddCommand(&cobra.Command{
		Use:   "quota <email>",
		Short: "Show a user's storage usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			database, _, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer database.Close()

			store := repository.NewStore(database)
			user, err := service.NewUserService(store, nil).ByEmail(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			usage, err := store.Files.Usage(cmd.Context(), user.ID)
			if err != nil {
				return fmt.Errorf("failed to load usage: %w", err)
			}
			policy := user.SubscriptionTier.Policy()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "user\t%s\n", user.Email)
			fmt.Fprintf(tw, "tier\t%s\n", policy.Name)
			fmt.Fprintf(tw, "files\t%d\n", usage.TotalFiles)
			fmt.Fprintf(tw, "used\t%d bytes\n", usage.TotalSize)
			fmt.Fprintf(tw, "limit\t%d bytes\n", policy.StorageLimit)
			return tw.Flush()
		},
	})

	return userCmd
}
