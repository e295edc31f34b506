package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/carsnbids-loader/internal/columnar"
	"github.com/JakeFAU/carsnbids-loader/internal/hash/sha256"
)

func newInspectCmd() *cobra.Command {
	var show int
	cmd := &cobra.Command{
		Use:   "inspect <file.parquet>",
		Short: "Print the columns and row count of a stored batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			columns, records, err := columnar.Decode(data)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sha256: %s\n", sha256.Hex(data))
			fmt.Fprintf(out, "rows: %d\n", len(records))
			fmt.Fprintf(out, "columns: %d\n", len(columns))
			for _, c := range columns {
				fmt.Fprintf(out, "  %s\t%s\n", c.Name, c.Type())
			}

			enc := json.NewEncoder(out)
			for i := 0; i < show && i < len(records); i++ {
				if err := enc.Encode(records[i]); err != nil {
					return fmt.Errorf("print record: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&show, "show", 0, "also print the first N records as JSON lines")
	return cmd
}
