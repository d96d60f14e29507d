package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/attrisk/dataset"
	"github.com/YuminosukeSato/attrisk/internal/synthetic"
	"github.com/YuminosukeSato/attrisk/pkg/log"
)

func sampleCmd() *cobra.Command {
	var (
		rows      int
		positives int
		seed      int64
		output    string
	)

	c := &cobra.Command{
		Use:   "sample",
		Short: "Write a synthetic employee attrition workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tbl, err := synthetic.Generate(synthetic.Config{Rows: rows, Positives: positives, Seed: seed})
			if err != nil {
				return err
			}
			if err := dataset.WriteXLSX(tbl, output); err != nil {
				return err
			}
			log.GetLogger().Info("Sample written",
				log.ComponentKey, "sample",
				log.OperationKey, log.OperationWrite,
				log.PathKey, output,
				log.SamplesKey, tbl.NumRows(),
				log.PositiveKey, positives,
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d employees (%d leavers) to %s\n", tbl.NumRows(), positives, output)
			return nil
		},
	}

	c.Flags().IntVar(&rows, "rows", 1000, "number of employees")
	c.Flags().IntVar(&positives, "positives", 170, "number of employees with Attrition = Yes")
	c.Flags().Int64Var(&seed, "seed", 42, "random seed")
	c.Flags().StringVarP(&output, "output", "o", "NHS Attrition Data_UK.xlsx", "output workbook")
	return c
}
