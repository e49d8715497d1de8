package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keymint/keymint/internal/server"
	"github.com/keymint/keymint/internal/service"
)

const banner = `
 _            _
| |_____ _  _| |_ __ (_)_ _ | |_
| / / -_) || | '  \ || | ' \|  _|
|_\_\___|\_, |_|_|_\_, |_||_|\__|
         |__/      |__/
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the keymint API server",
		Long:  "Start the HTTP server that exposes the key issuance, management, and validation API.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port (overrides config)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host (overrides config)")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging, verbose 500 bodies)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if host != "" {
		cfg.Server.Host = host
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	if dev {
		cfg.Dev = true
	}

	logger := newLogger(cfg, dev)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	logger.Info("database ready", "driver", cfg.Database.Driver)

	keys := service.NewKeyService(st)
	auth := service.NewAuthService(st)

	hasAdmin, err := auth.HasAnyAdmin(context.Background())
	if err != nil {
		logger.Warn("failed to check for admin accounts", "error", err)
	}
	if !hasAdmin {
		logger.Warn("no admin account found - run: keymint admin create")
	}

	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.ShutdownTimeout(),
		CORSOrigins:     cfg.Server.CORS.Origins,
		Dev:             cfg.Dev,
	}
	srv := server.New(srvCfg, st, keys, auth, logger)

	fmt.Printf("→ keymint %s\n", versionString())
	fmt.Printf("→ Listening on http://%s\n", cfg.Addr())
	fmt.Printf("→ OpenAPI:  http://%s/openapi.json\n", cfg.Addr())
	fmt.Printf("→ Health:   http://%s/healthz\n", cfg.Addr())
	fmt.Println()

	return srv.ListenAndServe()
}
