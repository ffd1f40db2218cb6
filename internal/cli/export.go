package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/exchange"
)

var (
	exportComponent  string
	exportOnConflict string
)

var exportCmd = &cobra.Command{
	Use:   "export <output-dir>",
	Short: "Write a self-contained folder of nodes and patches",
	Long:  "By default every node is exported. --component restricts the export to the connected component containing the given hash.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var componentHash *[32]byte
		if exportComponent != "" {
			node, ok := mgr.FindNodeByHashPrefix(exportComponent)
			if !ok {
				return &dromoserr.RomNotFound{Hash: exportComponent}
			}
			h := node.SHA256
			componentHash = &h
		}

		onConflict, err := conflictActionFromFlag(exportOnConflict)
		if err != nil {
			return err
		}

		stats, err := exchange.WriteFolder(args[0], mgr.Repository(), mgr.Graph(), mgr.Config().DiffsDir, componentHash, onConflict)
		if err != nil {
			return err
		}
		if stats.Aborted {
			return fmt.Errorf("export aborted by conflict at %s", args[0])
		}
		fmt.Printf("exported %d node(s), %d patch(es) -> %s\n", stats.Nodes, stats.Edges, args[0])
		return nil
	},
}

func conflictActionFromFlag(s string) (exchange.ConflictFunc, error) {
	var action exchange.OverwriteAction
	switch s {
	case "overwrite":
		action = exchange.Overwrite
	case "skip":
		action = exchange.Skip
	case "abort", "":
		action = exchange.Abort
	default:
		return nil, fmt.Errorf("invalid --on-conflict value %q (want overwrite, skip, or abort)", s)
	}
	return func(path string) (exchange.OverwriteAction, error) { return action, nil }, nil
}

func init() {
	exportCmd.Flags().StringVar(&exportComponent, "component", "", "restrict the export to the connected component containing this hash or prefix")
	exportCmd.Flags().StringVar(&exportOnConflict, "on-conflict", "abort", "what to do when a destination file already exists: overwrite, skip, or abort")
	rootCmd.AddCommand(exportCmd)
}
