package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danbrakeley/dromos/lib/db"
	"github.com/danbrakeley/dromos/lib/rom"
)

var (
	addTitle       string
	addTags        string
	addVersion     string
	addSourceURL   string
	addReleaseDate string
	addDescription string
)

var addCmd = &cobra.Command{
	Use:   "add <file>",
	Short: "Add a ROM file as a new node",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user := db.UserMetadata{
			Title:       addTitle,
			Tags:        splitTags(addTags),
			Version:     addVersion,
			SourceURL:   addSourceURL,
			ReleaseDate: addReleaseDate,
			Description: addDescription,
		}
		meta, err := mgr.Add(args[0], addTitle, user)
		if err != nil {
			return err
		}
		fmt.Printf("added %s (%s)\n", rom.FormatHash(meta.SHA256), meta.Type)
		return nil
	},
}

func splitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

func init() {
	addCmd.Flags().StringVar(&addTitle, "title", "", "display title (defaults to filename)")
	addCmd.Flags().StringVar(&addTags, "tags", "", "comma-separated tags")
	addCmd.Flags().StringVar(&addVersion, "version", "", "version label")
	addCmd.Flags().StringVar(&addSourceURL, "source-url", "", "where this file came from")
	addCmd.Flags().StringVar(&addReleaseDate, "release-date", "", "release date (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addDescription, "description", "", "free-form description")
	rootCmd.AddCommand(addCmd)
}
