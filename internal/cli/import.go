package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/internal/format"
	"github.com/danbrakeley/dromos/lib/exchange"
)

var importOverwrite bool

var importCmd = &cobra.Command{
	Use:   "import <folder>",
	Short: "Import a previously exported folder",
	Long: `Inserts every node and patch the folder has that isn't already known.
If a local node's metadata conflicts with the import, the conflicts are
printed and, without --overwrite, the command refuses and imports
nothing; with --overwrite the import proceeds and the imported metadata
replaces the local metadata.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		manifest, conflicts, err := exchange.AnalyzeImport(args[0], mgr.Repository())
		if err != nil {
			return err
		}

		if len(conflicts) > 0 {
			fmt.Println(format.WarnStyle.Render(fmt.Sprintf("%d node(s) have conflicting metadata:", len(conflicts))))
			for _, c := range conflicts {
				fmt.Printf("  %s (%s)\n", c.SHA256[:16], c.Title)
				for _, d := range c.Diffs {
					fmt.Printf("    %s: local=%q import=%q\n", d.Field, d.LocalValue, d.ImportValue)
				}
			}
			if !importOverwrite {
				return fmt.Errorf("refusing to import: %d conflict(s) found, rerun with --overwrite to accept the imported metadata", len(conflicts))
			}
		}

		result, err := exchange.ExecuteImport(args[0], manifest, importOverwrite, mgr.Repository(), mgr.Graph(), mgr.Config().DiffsDir)
		if err != nil {
			return err
		}

		fmt.Printf("imported: %d node(s) added, %d overwritten, %d skipped; %d edge(s) added, %d skipped; %d patch(es) copied\n",
			result.NodesAdded, result.NodesOverwritten, result.NodesSkipped,
			result.EdgesAdded, result.EdgesSkipped, result.DiffsCopied)
		return nil
	},
}

func init() {
	importCmd.Flags().BoolVar(&importOverwrite, "overwrite", false, "accept the imported metadata for nodes with conflicting local metadata")
	rootCmd.AddCommand(importCmd)
}
