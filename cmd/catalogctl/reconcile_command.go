package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/cinesocial/internal/catalog"
)

const dateLayout = "2006-01-02"

func newReconcileCommand(ctx *commandContext) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match a day's box office ranking against the movie provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				day, err := parseRankingDate(date, time.Now(), rt.cfg.CalendarLocation())
				if err != nil {
					return err
				}
				matches, err := rt.engine.ReconcileDailyRanking(cmd.Context(), day)
				if len(matches) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderMatches(matches))
				}
				if err != nil {
					return fmt.Errorf("reconcile %s: %w", day.Format(dateLayout), err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d ranked title(s) matched for %s\n", len(matches), day.Format(dateLayout))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Ranking date as YYYY-MM-DD (defaults to yesterday)")
	return cmd
}

// parseRankingDate resolves --date in loc; an empty value means the day
// before now.
func parseRankingDate(raw string, now time.Time, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return now.In(loc).AddDate(0, 0, -1), nil
	}
	day, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", raw)
	}
	return day, nil
}

func renderMatches(matches []catalog.RankedMatch) string {
	rows := make([][]string, 0, len(matches))
	for _, m := range matches {
		opened := "-"
		if m.Entry.OpeningDate != nil {
			opened = m.Entry.OpeningDate.Format(dateLayout)
		}
		rows = append(rows, []string{
			strconv.Itoa(m.Entry.Rank),
			m.Entry.Title,
			opened,
			strconv.FormatInt(m.Movie.ExternalID, 10),
			m.Movie.Title,
		})
	}
	return renderTable(
		[]string{"Rank", "Ranked title", "Opened", "Provider id", "Provider title"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
	)
}
