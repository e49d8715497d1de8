package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/keymint/keymint/internal/service"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage API keys",
		Long:  "Issue, list, check, revoke, and delete API keys from the command line.",
	}

	cmd.AddCommand(newKeyIssueCmd())
	cmd.AddCommand(newKeyListCmd())
	cmd.AddCommand(newKeyCheckCmd())
	cmd.AddCommand(newKeyRevokeCmd())
	cmd.AddCommand(newKeyDeleteCmd())

	return cmd
}

// keyService opens the store and returns the key service plus a cleanup.
func keyService() (*service.KeyService, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return service.NewKeyService(st), func() { st.Close() }, nil
}

// ---------- key issue ----------

func newKeyIssueCmd() *cobra.Command {
	var req service.IssueRequest

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a new API key for a user",
		Example: `  keymint key issue --first-name Ada --last-name Lovelace \
    --email ada@example.com --start 2024-01-01 --last 2024-12-31`,
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, done, err := keyService()
			if err != nil {
				return err
			}
			defer done()

			key, user, err := keys.Issue(context.Background(), req)
			if err != nil {
				return err
			}
			fmt.Printf("Issued key for %s <%s>\n", user.FirstName+" "+user.LastName, user.Email)
			fmt.Printf("  key:    %s\n", key.Key)
			fmt.Printf("  valid:  %s through %s\n", key.StartDate, key.LastDate)
			fmt.Printf("  status: %s\n", key.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "User's first name (required)")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "User's last name (required)")
	cmd.Flags().StringVar(&req.Email, "email", "", "User's email address (required)")
	cmd.Flags().StringVar(&req.StartDate, "start", "", "First valid day, YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&req.LastDate, "last", "", "Last valid day inclusive, YYYY-MM-DD (required)")
	cmd.MarkFlagRequired("first-name")
	cmd.MarkFlagRequired("last-name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("last")

	return cmd
}

// ---------- key list ----------

func newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all issued keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, done, err := keyService()
			if err != nil {
				return err
			}
			defer done()

			list, err := keys.List(context.Background())
			if err != nil {
				return err
			}

			if jsonOutput {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(list)
			}

			if len(list) == 0 {
				fmt.Println("No keys issued yet. Use 'keymint key issue' to create one.")
				return nil
			}

			fmt.Printf("%-6s %-24s %-10s %-12s %-30s\n", "ID", "KEY", "STATUS", "EXPIRES", "OWNER")
			fmt.Printf("%-6s %-24s %-10s %-12s %-30s\n", "--", "---", "------", "-------", "-----")
			for _, k := range list {
				owner := "(none)"
				if u := k.Owner(); u != nil {
					owner = u.Email
				}
				// Keys are secrets; show only a prefix in the table.
				short := k.Key
				if len(short) > 20 {
					short = short[:20] + "..."
				}
				fmt.Printf("%-6d %-24s %-10s %-12s %-30s\n", k.ID, short, k.Status, k.LastDate, owner)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON (includes full key strings)")

	return cmd
}

// ---------- key check ----------

func newKeyCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "check <key>",
		Aliases: []string{"validate"},
		Short:   "Check whether a key is currently valid",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, done, err := keyService()
			if err != nil {
				return err
			}
			defer done()

			key, err := keys.CheckKey(context.Background(), args[0])
			switch {
			case err == nil:
				fmt.Printf("valid (expires %s, owner %s)\n", key.LastDate, key.Owner().Email)
				return nil
			case errors.Is(err, service.ErrKeyUnknown):
				fmt.Println("invalid: unknown key")
			case errors.Is(err, service.ErrKeyInactive):
				fmt.Println("invalid: key is inactive")
			case errors.Is(err, service.ErrKeyExpired):
				fmt.Println("invalid: key has expired")
			default:
				return err
			}
			os.Exit(1)
			return nil
		},
	}
	return cmd
}

// ---------- key revoke / delete ----------

func newKeyRevokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revoke <id>",
		Short: "Set a key's status to inactive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key id %q", args[0])
			}
			keys, done, err := keyService()
			if err != nil {
				return err
			}
			defer done()

			if _, err := keys.UpdateStatus(context.Background(), id, "inactive"); err != nil {
				return err
			}
			fmt.Printf("Revoked key %d\n", id)
			return nil
		},
	}
	return cmd
}

func newKeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Permanently delete a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid key id %q", args[0])
			}
			keys, done, err := keyService()
			if err != nil {
				return err
			}
			defer done()

			if err := keys.Delete(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted key %d\n", id)
			return nil
		},
	}
	return cmd
}
