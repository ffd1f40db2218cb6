package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/internal/format"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify every patch file referenced by an edge exists and matches its stored size",
	RunE: func(cmd *cobra.Command, args []string) error {
		edges, err := mgr.Repository().LoadAllEdges()
		if err != nil {
			return err
		}

		problems := 0
		for _, e := range edges {
			path := filepath.Join(mgr.Config().DiffsDir, e.DiffPath)
			info, err := os.Stat(path)
			switch {
			case os.IsNotExist(err):
				fmt.Println(format.WarnStyle.Render(fmt.Sprintf("missing patch file: %s", e.DiffPath)))
				problems++
			case err != nil:
				fmt.Println(format.WarnStyle.Render(fmt.Sprintf("cannot stat %s: %v", e.DiffPath, err)))
				problems++
			case info.Size() != e.DiffSize:
				fmt.Println(format.WarnStyle.Render(fmt.Sprintf("size mismatch for %s: stored %d, on disk %d", e.DiffPath, e.DiffSize, info.Size())))
				problems++
			}
		}

		if problems == 0 {
			fmt.Printf("checked %d patch(es), no problems found\n", len(edges))
			return nil
		}
		return fmt.Errorf("found %d problem(s) across %d patch(es)", problems, len(edges))
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
