package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link <fileA> <fileB>",
	Short: "Create patches between two already-added ROMs",
	Long:  "Both files must already be known nodes. Produces an A→B patch and a B→A patch.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := mgr.Link(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Printf("linked: %d bytes (A→B), %d bytes (B→A)\n", result.SizeAB, result.SizeBA)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}
