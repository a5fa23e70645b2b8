package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/field-scheduler/internal/config"
	"github.com/example/field-scheduler/internal/db"
	"github.com/example/field-scheduler/internal/migrate"
	"github.com/example/field-scheduler/internal/territory"
)

func newTerritoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "territory",
		Short: "Manage territories and technician rosters",
	}
	cmd.AddCommand(newTerritoryAddCmd())
	cmd.AddCommand(newTerritoryListCmd())
	cmd.AddCommand(newTechnicianAddCmd())
	cmd.AddCommand(newRuleAddCmd())
	return cmd
}

func openRepo(ctx context.Context) (*db.DB, *territory.Repo, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, nil, err
	}
	return d, territory.NewRepo(d), nil
}

func newTerritoryAddCmd() *cobra.Command {
	var name string
	c := &cobra.Command{
		Use:   "add",
		Short: "Create a territory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			id, err := repo.CreateTerritory(ctx, name)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "created territory %q id=%d\n", name, id)
			return nil
		},
	}
	c.Flags().StringVar(&name, "name", "", "territory name")
	_ = c.MarkFlagRequired("name")
	return c
}

func newTerritoryListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List territories",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			ts, err := repo.List(ctx)
			if err != nil {
				return err
			}
			for _, t := range ts {
				fmt.Fprintf(os.Stdout, "id=%d name=%q\n", t.ID, t.Name)
			}
			return nil
		},
	}
}

func newTechnicianAddCmd() *cobra.Command {
	var territoryName, email, displayName, timezone string
	c := &cobra.Command{
		Use:   "add-tech",
		Short: "Add a technician to a territory roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if _, err := time.LoadLocation(timezone); err != nil {
				return fmt.Errorf("invalid --timezone: %w", err)
			}
			id, err := repo.AddTechnician(ctx, territoryName, email, displayName, timezone)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "added technician %q id=%d\n", email, id)
			return nil
		},
	}
	c.Flags().StringVar(&territoryName, "territory", "", "territory name")
	c.Flags().StringVar(&email, "email", "", "technician email")
	c.Flags().StringVar(&displayName, "name", "", "display name")
	c.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone")
	_ = c.MarkFlagRequired("territory")
	_ = c.MarkFlagRequired("email")
	return c
}

func newRuleAddCmd() *cobra.Command {
	var (
		territoryName, email     string
		startStr, endStr         string
		weekdaysCSV, excludedCSV string
		timezone                 string
	)
	c := &cobra.Command{
		Use:   "add-rule",
		Short: "Add an open-hours rule to a technician",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			start, err := territory.ParseClock(startStr)
			if err != nil {
				return fmt.Errorf("invalid --start: %w", err)
			}
			end, err := territory.ParseClock(endStr)
			if err != nil {
				return fmt.Errorf("invalid --end: %w", err)
			}
			if end <= start {
				return fmt.Errorf("--end must be after --start")
			}
			if _, err := time.LoadLocation(timezone); err != nil {
				return fmt.Errorf("invalid --timezone: %w", err)
			}

			rule := territory.OpenHoursRule{Start: start, End: end, Timezone: timezone}
			for _, p := range splitCSV(weekdaysCSV) {
				wd, err := strconv.Atoi(p)
				if err != nil || wd < 0 || wd > 6 {
					return fmt.Errorf("invalid weekday %q (want 0-6, 0=Sunday)", p)
				}
				rule.Weekdays = append(rule.Weekdays, time.Weekday(wd))
			}
			for _, p := range splitCSV(excludedCSV) {
				if _, err := time.Parse("2006-01-02", p); err != nil {
					return fmt.Errorf("invalid excluded date %q (want YYYY-MM-DD)", p)
				}
				rule.Excluded = append(rule.Excluded, p)
			}

			if err := repo.AddRule(ctx, territoryName, email, rule); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "added rule %s-%s for %q\n", start, end, email)
			return nil
		},
	}
	c.Flags().StringVar(&territoryName, "territory", "", "territory name")
	c.Flags().StringVar(&email, "email", "", "technician email")
	c.Flags().StringVar(&startStr, "start", "", "window start HH:MM")
	c.Flags().StringVar(&endStr, "end", "", "window end HH:MM")
	c.Flags().StringVar(&weekdaysCSV, "weekdays", "1,2,3,4,5", "comma-separated weekdays (0=Sunday)")
	c.Flags().StringVar(&excludedCSV, "excluded", "", "comma-separated excluded dates YYYY-MM-DD")
	c.Flags().StringVar(&timezone, "timezone", "UTC", "IANA timezone for the rule")
	_ = c.MarkFlagRequired("territory")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
	return c
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
