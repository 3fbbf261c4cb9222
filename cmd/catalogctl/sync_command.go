package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var (
		kind string
		from int
		to   int
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import listing pages from the movie provider into the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			listKind, err := tmdb.ParseListKind(kind)
			if err != nil {
				return err
			}
			if to == 0 {
				to = from
			}
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				results, syncErr := rt.engine.SyncPages(cmd.Context(), listKind, from, to)

				rows := make([][]string, 0, len(results))
				for _, r := range results {
					rows = append(rows, []string{
						strconv.Itoa(r.Page),
						strconv.Itoa(r.Fetched),
						strconv.Itoa(r.Inserted),
						strconv.Itoa(r.Existing),
						strconv.Itoa(r.Skipped),
					})
				}
				if len(rows) > 0 {
					fmt.Fprintln(cmd.OutOrStdout(), renderTable(
						[]string{"Page", "Fetched", "Inserted", "Existing", "Skipped"},
						rows,
						[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
					))
				}
				if syncErr != nil {
					return fmt.Errorf("sync %s stopped after %d page(s): %w", listKind, len(results), syncErr)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(tmdb.NowPlaying), "Listing to import: now_playing, popular or upcoming")
	cmd.Flags().IntVar(&from, "from", 1, "First page to import")
	cmd.Flags().IntVar(&to, "to", 0, "Last page to import (defaults to --from)")
	return cmd
}
