package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/internal/format"
	"github.com/danbrakeley/dromos/lib/rom"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every node in the graph",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := mgr.Graph().IterNodes()

		if jsonOut {
			type row struct {
				SHA256  string `json:"sha256"`
				Title   string `json:"title"`
				Version string `json:"version,omitempty"`
				RomType string `json:"rom_type"`
			}
			rows := make([]row, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, row{
					SHA256:  rom.FormatHash(e.Node.SHA256),
					Title:   e.Node.Title,
					Version: e.Node.Version,
					RomType: e.Node.RomType,
				})
			}
			enc, err := json.MarshalIndent(rows, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(enc))
			return nil
		}

		fmt.Println(format.HeaderStyle.Render(fmt.Sprintf("Nodes (%d):", len(entries))))
		for _, e := range entries {
			hash := rom.FormatHash(e.Node.SHA256)
			fmt.Printf("  %s %s  %s\n", format.LabelStyle.Render("hash:"), format.DimStyle.Render(hash[:16]), format.ValueStyle.Render(e.Node.Title))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
