package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newMoviesCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "movies",
		Short: "Inspect the local catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every catalog movie, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRuntime(cmd.Context(), func(rt *runtime) error {
				movies, err := rt.repo.Movies.ListAll(cmd.Context())
				if err != nil {
					return err
				}
				if len(movies) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty")
					return nil
				}
				rows := make([][]string, 0, len(movies))
				for _, m := range movies {
					released := "-"
					if m.ReleaseDate != nil {
						released = m.ReleaseDate.Format(dateLayout)
					}
					rows = append(rows, []string{
						m.ID,
						strconv.FormatInt(m.ExternalID, 10),
						m.Title,
						released,
						strconv.FormatFloat(m.VoteAverage, 'f', 1, 64),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"ID", "Provider id", "Title", "Released", "Vote"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft, alignLeft, alignRight},
				))
				return nil
			})
		},
	})
	return cmd
}
