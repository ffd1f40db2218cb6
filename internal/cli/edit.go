package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/dromoserr"
	"github.com/danbrakeley/dromos/lib/rom"
)

var (
	editTitle       string
	editTags        string
	editVersion     string
	editSourceURL   string
	editReleaseDate string
	editDescription string
)

var editCmd = &cobra.Command{
	Use:   "edit <hash-or-prefix>",
	Short: "Update a node's user-editable metadata",
	Long:  "Only fields whose flags are given are changed; the rest keep their stored values.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		node, ok := mgr.FindNodeByHashPrefix(args[0])
		if !ok {
			return &dromoserr.RomNotFound{Hash: args[0]}
		}

		row, err := mgr.Repository().GetNodeByHash(node.SHA256)
		if err != nil {
			return err
		}
		if row == nil {
			return &dromoserr.RomNotFound{Hash: args[0]}
		}

		user := db.UserMetadata{
			Title:       row.Title,
			SourceURL:   row.SourceURL,
			Version:     row.Version,
			ReleaseDate: row.ReleaseDate,
			Tags:        row.Tags,
			Description: row.Description,
		}
		if cmd.Flags().Changed("title") {
			user.Title = editTitle
		}
		if cmd.Flags().Changed("tags") {
			user.Tags = splitTags(editTags)
		}
		if cmd.Flags().Changed("version") {
			user.Version = editVersion
		}
		if cmd.Flags().Changed("source-url") {
			user.SourceURL = editSourceURL
		}
		if cmd.Flags().Changed("release-date") {
			user.ReleaseDate = editReleaseDate
		}
		if cmd.Flags().Changed("description") {
			user.Description = editDescription
		}

		if err := mgr.UpdateMetadata(node.SHA256, user); err != nil {
			return err
		}
		fmt.Printf("updated %s\n", rom.FormatHash(node.SHA256))
		return nil
	},
}

func init() {
	editCmd.Flags().StringVar(&editTitle, "title", "", "display title")
	editCmd.Flags().StringVar(&editTags, "tags", "", "comma-separated tags")
	editCmd.Flags().StringVar(&editVersion, "version", "", "version label")
	editCmd.Flags().StringVar(&editSourceURL, "source-url", "", "where this file came from")
	editCmd.Flags().StringVar(&editReleaseDate, "release-date", "", "release date (YYYY-MM-DD)")
	editCmd.Flags().StringVar(&editDescription, "description", "", "free-form description")
	rootCmd.AddCommand(editCmd)
}
