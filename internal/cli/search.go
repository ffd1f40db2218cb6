package cli

import (
	"fmt"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/internal/format"
	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/rom"
)

// searchContext is the environment a search expression runs against, one
// instance per node. Example expressions:
//   - `title contains "Mario"`
//   - `rom_type == "NES" and len(tags) > 0`
//   - `"demo" in tags`
type searchContext struct {
	SHA256      string   `expr:"sha256"`
	Filename    string   `expr:"filename"`
	Title       string   `expr:"title"`
	RomType     string   `expr:"rom_type"`
	Version     string   `expr:"version"`
	SourceURL   string   `expr:"source_url"`
	ReleaseDate string   `expr:"release_date"`
	Description string   `expr:"description"`
	Tags        []string `expr:"tags"`
}

func searchContextFromRow(n db.NodeRow) searchContext {
	return searchContext{
		SHA256:      rom.FormatHash(n.SHA256),
		Filename:    n.Filename,
		Title:       n.Title,
		RomType:     string(n.RomType),
		Version:     n.Version,
		SourceURL:   n.SourceURL,
		ReleaseDate: n.ReleaseDate,
		Description: n.Description,
		Tags:        n.Tags,
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <expression>",
	Short: "List nodes matching an expr-lang boolean expression",
	Long: `The expression is evaluated once per node with these variables in scope:
sha256, filename, title, rom_type, version, source_url, release_date,
description, tags (a list of strings).

Examples:
  dromos search 'title contains "Mario"'
  dromos search 'rom_type == "NES" and "demo" in tags'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		program, err := compileSearch(args[0])
		if err != nil {
			return err
		}

		nodes, err := mgr.Repository().LoadAllNodes()
		if err != nil {
			return err
		}

		var matched []db.NodeRow
		for _, n := range nodes {
			ok, err := expr.Run(program, searchContextFromRow(n))
			if err != nil {
				return fmt.Errorf("evaluating search expression: %w", err)
			}
			if b, _ := ok.(bool); b {
				matched = append(matched, n)
			}
		}

		fmt.Println(format.HeaderStyle.Render(fmt.Sprintf("Matches (%d):", len(matched))))
		for _, n := range matched {
			hash := rom.FormatHash(n.SHA256)
			tags := strings.Join(n.Tags, ", ")
			fmt.Printf("  %s  %s", format.DimStyle.Render(hash[:16]), format.ValueStyle.Render(n.Title))
			if tags != "" {
				fmt.Printf("  [%s]", tags)
			}
			fmt.Println()
		}
		return nil
	},
}

func compileSearch(expression string) (*vm.Program, error) {
	program, err := expr.Compile(expression, expr.Env(searchContext{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid search expression: %w", err)
	}
	return program, nil
}

func init() {
	rootCmd.AddCommand(searchCmd)
}
