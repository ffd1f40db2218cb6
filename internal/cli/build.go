package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/lib/dromoserr"
)

var buildOutput string

var buildCmd = &cobra.Command{
	Use:   "build <source-file> <target-hash-or-prefix>",
	Short: "Reconstruct a target ROM from a source file and the shortest patch path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, ok := mgr.FindNodeByHashPrefix(args[1])
		if !ok {
			return &dromoserr.RomNotFound{Hash: args[1]}
		}

		result, err := mgr.Build(args[0], target.SHA256)
		if err != nil {
			return err
		}

		out := buildOutput
		if out == "" {
			out = target.Filename
			if out == "" {
				out = target.Title + ".nes"
			}
		}
		if err := os.WriteFile(out, result.Bytes, 0o644); err != nil {
			return err
		}
		fmt.Printf("built %s (%d bytes, %d patch(es) applied) -> %s\n", target.Title, len(result.Bytes), result.StepsApplied, out)
		return nil
	},
}

func init() {
	buildCmd.Flags().StringVarP(&buildOutput, "output", "o", "", "output file path (defaults to the target's stored filename)")
	rootCmd.AddCommand(buildCmd)
}
