package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/rom"
)

var rmCmd = &cobra.Command{
	Use:   "rm <hash-or-prefix>",
	Short: "Remove a node and every patch incident to it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, ok := mgr.FindNodeByHashPrefix(args[0])
		if !ok {
			return &dromoserr.RomNotFound{Hash: args[0]}
		}
		if err := mgr.Remove(node.SHA256); err != nil {
			return err
		}
		fmt.Printf("removed %s\n", rom.FormatHash(node.SHA256))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
}
