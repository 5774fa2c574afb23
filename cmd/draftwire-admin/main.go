package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/draftwire/draftwire/config"
	"github.com/draftwire/draftwire/draft"
	"github.com/draftwire/draftwire/globals"
	"github.com/draftwire/draftwire/persistence"
	"github.com/draftwire/draftwire/types"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// A very simple CLI tool for the administration of draftwire rooms and blogs.

var (
	configPath  string
	publishDate string

	persister persistence.Persister
	editor    *draft.Editor
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "draftwire-admin",
		Short: "inspect and administer draftwire rooms and blog documents",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			globalConfig, err := config.ReadConfiguration(configPath, config.GetFlagSet())
			if err != nil {
				return err
			}
			if globalConfig.LogLevel != "" {
				globals.AppLogger.SetLevel(hclog.LevelFromString(globalConfig.LogLevel))
			}
			persister, err = persistence.NewPersister(globalConfig)
			if err != nil {
				return err
			}
			if persister == nil {
				return fmt.Errorf("no persistence configured")
			}
			editor = draft.NewEditor(persister, nil)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if persister != nil {
				persister.Close()
			}
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file or directory")

	roomsCmd := &cobra.Command{
		Use:   "rooms",
		Short: "list persisted rooms and their members",
		RunE: func(cmd *cobra.Command, args []string) error {
			rooms, err := persister.GetRooms()
			if err != nil {
				return err
			}
			for _, room := range rooms {
				fmt.Printf("%s (%d members)\n", room.Name, len(room.Users))
				for _, u := range room.Users {
					fmt.Printf("  %s %s\n", u.Id, u.UserName)
				}
			}
			return nil
		},
	}

	blogsCmd := &cobra.Command{
		Use:   "blogs",
		Short: "list blog documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			blogs, err := persister.GetBlogs()
			if err != nil {
				return err
			}
			for _, blog := range blogs {
				status := blog.Status
				if status == "" {
					status = "DRAFT"
				}
				scheduled := ""
				if blog.PublishedDate != nil {
					scheduled = blog.PublishedDate.Format(time.RFC3339)
				}
				fmt.Printf("%s\t%s\t%s\t%s\tdraft_changed=%t\n", blog.Id, blog.Title, status, scheduled, blog.DraftChanged)
			}
			return nil
		},
	}

	showCmd := &cobra.Command{
		Use:   "show <blog-id>",
		Short: "print one blog document as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			blog := &types.Blog{Id: args[0]}
			if err := persister.GetBlog(blog); err != nil {
				return err
			}
			out, err := json.MarshalIndent(blog, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	publishCmd := &cobra.Command{
		Use:   "publish <blog-id>",
		Short: "promote the draft fields of a blog into its published fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date *time.Time
			if publishDate != "" {
				t, err := time.Parse(time.RFC3339, publishDate)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				date = &t
			}
			if err := editor.Publish(args[0], date); err != nil {
				return err
			}
			fmt.Printf("published %s\n", args[0])
			return nil
		},
	}
	publishCmd.Flags().StringVar(&publishDate, "date", "", "published date (RFC3339), stored date is kept when omitted")

	rootCmd.AddCommand(roomsCmd, blogsCmd, showCmd, publishCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
