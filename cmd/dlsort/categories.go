package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fenilsonani/dlsort/internal/reporter"
	"github.com/fenilsonani/dlsort/internal/rules"
)

var categoriesCmd = &cobra.Command{
	Use:     "categories",
	Aliases: []string{"ls"},
	Short:   "List categories, their extensions and target folders",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		outFmt, err := format(reporter.FormatTable)
		if err != nil {
			return err
		}

		eng, closeEngine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer closeEngine()

		fmt.Fprintf(cmd.OutOrStdout(), "Downloads folder: %s\n\n", eng.BaseDirectory())
		return reporter.New(cmd.OutOrStdout(), outFmt).Categories(eng.Categories())
	},
}

var setDirCmd = &cobra.Command{
	Use:   "set-dir <category> <folder>",
	Short: "Change the folder a category sorts into",
	Long: `Change the folder a category sorts into. Files already sorted into the old
folder are moved along.`,
	Example: `  dlsort set-dir Music ~/Music/Downloads`,
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer closeEngine()

		moved, err := eng.SetCategoryDirectory(args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s now sorts into %s (%d files moved)\n", args[0], args[1], moved)
		return nil
	},
}

var setExtCmd = &cobra.Command{
	Use:   "set-ext <category> <extensions>...",
	Short: "Replace the extensions of a category",
	Long: `Replace the extensions of a category. Extensions may be given with or
without the leading dot, separated by spaces or commas. An extension listed
under several categories goes to the one listed first. An unknown category is
created.`,
	Example: `  dlsort set-ext Music mp3 flac ogg
  dlsort set-ext Images ".png,.jpg,.webp"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		exts := rules.ParseExtensions(strings.Join(args[1:], " "))
		if len(exts) == 0 {
			return fmt.Errorf("no extensions given for %s", args[0])
		}

		eng, closeEngine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer closeEngine()

		if err := eng.SetCategoryExtensions(args[0], exts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], strings.Join(exts, " "))
		return nil
	},
}

var addCmd = &cobra.Command{
	Use:     "add <category> [extensions]...",
	Short:   "Add a category",
	Example: `  dlsort add Fonts .ttf .otf`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exts := rules.ParseExtensions(strings.Join(args[1:], " "))

		eng, closeEngine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer closeEngine()

		if err := eng.AddCategory(args[0], exts); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <category>",
	Aliases: []string{"rm"},
	Short:   "Remove a category",
	Long: `Remove a category. Its extensions fall back to Other. Files already sorted
into its folder stay where they are.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer closeEngine()

		if err := eng.RemoveCategory(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var baseCmd = &cobra.Command{
	Use:   "base [folder]",
	Short: "Show or change the downloads folder",
	Long: `Show or change the downloads folder. Category folders that were never
customized follow it. No files are moved.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, closeEngine, err := openEngine(false)
		if err != nil {
			return err
		}
		defer closeEngine()

		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), eng.BaseDirectory())
			return nil
		}

		if err := eng.ChangeBaseDirectory(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Downloads folder is now %s\n", eng.BaseDirectory())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(categoriesCmd)
	rootCmd.AddCommand(setDirCmd)
	rootCmd.AddCommand(setExtCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(baseCmd)
}
