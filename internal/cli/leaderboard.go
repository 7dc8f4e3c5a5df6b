package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"mathsprint-service/internal/app"
	"mathsprint-service/internal/config"
	"mathsprint-service/internal/domain"
	"mathsprint-service/internal/logging"
)

// NewLeaderboardCmd prints the ranked leaderboard from the configured store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the top scores",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return domain.ErrInvalidLimit
			}
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logging.New("warn", cfg.Log.Format)
			if err != nil {
				return err
			}
			defer log.Sync()

			b, err := openBackend(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			entries, err := app.NewRecords(b.store).Entries(cmd.Context())
			if err != nil {
				return err
			}
			return printLeaderboard(cmd.OutOrStdout(), app.BuildLeaderboard(entries, limit, time.Now()))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of rows, 0 for all")
	return cmd
}

func printLeaderboard(out io.Writer, lb domain.Leaderboard) error {
	if lb.NoData {
		_, err := fmt.Fprintln(out, "no scores yet")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tPLAYER\tSCORE\tDATE")
	for _, e := range lb.Entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", e.Rank, e.DisplayName, e.Score, e.Timestamp.Format(time.DateOnly))
	}
	return w.Flush()
}
