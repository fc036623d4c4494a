package cmd

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"travel_agent/src/storage"
)

func printUsers(ctx context.Context, store *storage.Store, out io.Writer) error {
	ids, err := store.List()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER ID\tNAME\tFACTS\tTRIPS\tUPDATED")
	for _, id := range ids {
		stats, err := store.Stats(ctx, id)
		if err != nil {
			return err
		}
		name := stats.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", stats.UserID, name, stats.Facts, stats.Trips, stats.UpdatedAt.Local().Format(time.DateTime))
	}
	return w.Flush()
}
