package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/internal/format"
	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/rom"
)

var linksCmd = &cobra.Command{
	Use:   "links <hash-or-prefix>",
	Short: "List the outgoing patches from a node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, ok := mgr.FindNodeByHashPrefix(args[0])
		if !ok {
			return &dromoserr.RomNotFound{Hash: args[0]}
		}

		neighbors, ok := mgr.GetNeighbors(node.SHA256)
		if !ok {
			return &dromoserr.RomNotFound{Hash: args[0]}
		}

		fmt.Println(format.HeaderStyle.Render(fmt.Sprintf("Links from %s (%s):", node.Title, rom.FormatHash(node.SHA256)[:16])))
		for _, n := range neighbors {
			fmt.Printf("  -> %s  %s  (%d bytes)\n",
				format.DimStyle.Render(rom.FormatHash(n.Node.SHA256)[:16]),
				format.ValueStyle.Render(n.Node.Title),
				n.Edge.DiffSize)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linksCmd)
}
