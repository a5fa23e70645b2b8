package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/field-scheduler/internal/auth"
	"github.com/example/field-scheduler/internal/config"
	"github.com/example/field-scheduler/internal/db"
	"github.com/example/field-scheduler/internal/dispatch"
	"github.com/example/field-scheduler/internal/migrate"
	"github.com/example/field-scheduler/internal/orders"
	"github.com/example/field-scheduler/internal/routific"
	"github.com/example/field-scheduler/internal/scheduling"
	"github.com/example/field-scheduler/internal/territory"
	"github.com/example/field-scheduler/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the scheduling API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if err := migrate.Up(ctx, d); err != nil {
					return err
				}
			}

			authStore := auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
			catalog := territory.NewRepo(d)
			orderRepo := orders.NewRepo(d)

			routing := routific.New(cfg.RoutificURL, cfg.RoutificToken, cfg.RoutingTimeout)
			orch := &scheduling.Orchestrator{
				Catalog: catalog,
				Orders:  orderRepo,
				Routing: routing,
				Depot:   dispatch.Location{Name: cfg.DepotName, Lat: cfg.DepotLat, Lng: cfg.DepotLng},
			}

			sessions := scheduling.NewStore(cfg.SessionTTL)
			go func() { _ = sessions.Run(ctx, time.Minute) }()

			ws := &web.Server{
				Auth:     authStore,
				Catalog:  catalog,
				Admin:    catalog,
				Sessions: sessions,
				Orch:     orch,
				Cookies:  web.NewSessionCookie(cfg.CookieHashKey, cfg.CookieBlockKey),
				Buffer:   time.Duration(cfg.SlotBufferMinutes) * time.Minute,
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes())
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
