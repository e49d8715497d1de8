package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keymint/keymint/internal/service"
)

func newAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
		Long:  "Create, list, and delete the admin accounts that guard the management API.",
	}

	cmd.AddCommand(newAdminCreateCmd())
	cmd.AddCommand(newAdminListCmd())
	cmd.AddCommand(newAdminDeleteCmd())

	return cmd
}

// adminAuth opens the store and returns the auth service plus a cleanup.
func adminAuth() (*service.AuthService, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return service.NewAuthService(st), func() { st.Close() }, nil
}

// ---------- admin create ----------

func newAdminCreateCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new admin account",
		Example: `  keymint admin create --email admin@example.com --password secret123
  keymint admin create --email admin@example.com  # prompts for password`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminCreate(email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (prompted if omitted)")
	cmd.MarkFlagRequired("email")

	return cmd
}

func runAdminCreate(email, password string) error {
	if password == "" {
		fmt.Print("Password: ")
		pwBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Println()
		password = string(pwBytes)

		fmt.Print("Confirm password: ")
		confirmBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		fmt.Println()

		if password != string(confirmBytes) {
			return fmt.Errorf("passwords do not match")
		}
	}

	auth, done, err := adminAuth()
	if err != nil {
		return err
	}
	defer done()

	admin, err := auth.CreateAdmin(context.Background(), email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Created admin %q (id %d)\n", admin.Email, admin.ID)
	return nil
}

// ---------- admin list ----------

func newAdminListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all admin accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAdminList(jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runAdminList(jsonOutput bool) error {
	auth, done, err := adminAuth()
	if err != nil {
		return err
	}
	defer done()

	admins, err := auth.ListAdmins(context.Background())
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(admins)
	}

	if len(admins) == 0 {
		fmt.Println("No admin accounts. Use 'keymint admin create' to create one.")
		return nil
	}

	fmt.Printf("%-6s %-30s %-20s\n", "ID", "EMAIL", "CREATED")
	fmt.Printf("%-6s %-30s %-20s\n", "--", "-----", "-------")
	for _, a := range admins {
		fmt.Printf("%-6d %-30s %-20s\n", a.ID, a.Email, a.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

// ---------- admin delete ----------

func newAdminDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an admin account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid admin id %q", args[0])
			}
			auth, done, err := adminAuth()
			if err != nil {
				return err
			}
			defer done()

			if err := auth.DeleteAdmin(context.Background(), id); err != nil {
				return err
			}
			fmt.Printf("Deleted admin %d\n", id)
			return nil
		},
	}
	return cmd
}
