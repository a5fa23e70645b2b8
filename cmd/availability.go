package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/field-scheduler/internal/booking"
	"github.com/example/field-scheduler/internal/db"
)

func newAvailabilityCmd() *cobra.Command {
	var (
		territoryName string
		dateStr       string
		durationMin   int
		bufferMin     int
	)

	c := &cobra.Command{
		Use:   "availability",
		Short: "Print the bookable slots for a territory and date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, repo, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("invalid --date (want YYYY-MM-DD)")
			}

			terr, err := repo.TerritoryByName(ctx, territoryName)
			if err != nil && !db.IsNotFound(err) {
				return err
			}

			groups, err := booking.Compute(date, terr,
				time.Duration(durationMin)*time.Minute,
				time.Duration(bufferMin)*time.Minute)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				fmt.Fprintln(os.Stdout, "no slots available")
				return nil
			}

			for _, g := range groups {
				fmt.Fprintf(os.Stdout, "%s:\n", g.Period)
				for _, s := range g.Slots {
					switch s.Kind {
					case booking.KindFlex:
						fmt.Fprintf(os.Stdout, "  flex  %s-%s  techs=%s\n", s.Start, s.End, strings.Join(s.Technicians, ","))
					default:
						fmt.Fprintf(os.Stdout, "  exact %s       techs=%s\n", s.Start, strings.Join(s.Technicians, ","))
					}
				}
			}
			return nil
		},
	}

	c.Flags().StringVar(&territoryName, "territory", "", "territory name")
	c.Flags().StringVar(&dateStr, "date", "", "date YYYY-MM-DD")
	c.Flags().IntVar(&durationMin, "duration", 60, "service duration in minutes")
	c.Flags().IntVar(&bufferMin, "buffer", 30, "buffer between exact slots in minutes")
	_ = c.MarkFlagRequired("territory")
	_ = c.MarkFlagRequired("date")
	return c
}
