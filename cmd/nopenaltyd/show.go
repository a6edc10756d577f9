package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty"
	"github.com/mind-engage/nopenaltycalc/pkg/nopenalty/sqlstore"
)

func showCmd() *cobra.Command {
	var (
		courseID, userID int64
		asJSON           bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the stored no-penalty grades of a user in a course",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if courseID <= 0 || userID <= 0 {
				return errors.New("--course and --user are required")
			}
			_, logger, dbh, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer dbh.Close()
			defer logger.Sync() //nolint:errcheck

			recs, err := sqlstore.New(dbh).ListRecords(cmd.Context(), courseID, userID)
			if err != nil {
				return fmt.Errorf("list no-penalty records: %w", err)
			}
			return printRecords(cmd.OutOrStdout(), recs, asJSON)
		},
	}
	cmd.Flags().Int64Var(&courseID, "course", 0, "course id")
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printRecords(w io.Writer, recs []nopenalty.Record, asJSON bool) error {
	if asJSON {
		if recs == nil {
			recs = []nopenalty.Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ITEM\tTYPE\tGRADEMIN\tGRADEMAX\tFINALGRADE\tMODIFIED BY")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%.5f\t%.5f\t%.5f\t%d\n",
			r.ItemID, r.ItemType, r.GradeMin, r.GradeMax, r.FinalGrade, r.UserModified)
	}
	return tw.Flush()
}
