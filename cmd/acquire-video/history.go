package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
)

func history(e *env, c *cli.Context) error {
	if c.Bool("prune") {
		deleted, err := e.session.PruneHistory(e.config.History.MaxAge)
		if err != nil {
			return err
		}
		e.log.Infof("pruned %d history records", deleted)
	}
	records, err := e.session.History()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINISHED\tSOURCE\tQUALITY\tSTATUS\tRESULT")
	for _, r := range records {
		result := r.Filename
		if r.FailureKind != "" {
			result = r.FailureKind
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.FinishedAt.Local().Format(time.DateTime), r.SourceID, r.Quality, r.Status, result)
	}
	return w.Flush()
}
