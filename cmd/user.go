package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/gym-booking-assistant/internal/creds"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage stored gym credentials (multi-user deployments)",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var alias, username, password, gymUserID string

	c := &cobra.Command{
		Use:   "add",
		Short: "Store or replace the gym credentials for an alias",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if !cfg.MultiUser() {
				return fmt.Errorf("DATABASE_URL is required for the credentials store")
			}

			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			err = store.Upsert(ctx, creds.Credentials{
				Alias:     alias,
				Username:  username,
				Password:  password,
				GymUserID: gymUserID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "stored credentials for %q\n", alias)
			return nil
		},
	}

	c.Flags().StringVar(&alias, "alias", "", "user alias carried in events")
	c.Flags().StringVar(&username, "username", "", "gym login username")
	c.Flags().StringVar(&password, "password", "", "gym login password")
	c.Flags().StringVar(&gymUserID, "gym-user-id", "", "gym account id used in booking calls")
	_ = c.MarkFlagRequired("alias")
	_ = c.MarkFlagRequired("username")
	_ = c.MarkFlagRequired("password")
	_ = c.MarkFlagRequired("gym-user-id")
	return c
}

func newUserListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored aliases",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			if !cfg.MultiUser() {
				return fmt.Errorf("DATABASE_URL is required for the credentials store")
			}

			ctx := cmd.Context()
			store, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			users, err := store.List(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ALIAS\tUSERNAME\tGYM USER ID\tUPDATED")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.Alias, u.Username, u.GymUserID, u.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
