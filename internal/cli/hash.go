package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/lib/rom"
)

var hashCmd = &cobra.Command{
	Use:   "hash <file>",
	Short: "Print a file's content-addressing hash without adding it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := rom.ReadBody(args[0])
		if err != nil {
			return err
		}
		fmt.Println(rom.FormatHash(rom.HashBody(body)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hashCmd)
}
