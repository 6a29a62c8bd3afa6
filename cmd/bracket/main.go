// Command bracket renders, lints, and watches bracket templates from the
// command line. Error formatting follows the teacher's own cmd/yparse:
// a colorized message on a Windows-safe writer (fatih/color +
// mattn/go-colorable) rather than a bare fmt.Println.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/mattn/go-colorable"
	"github.com/spf13/cobra"

	"github.com/ravenq/bracket/loader"
)

var (
	stdout = colorable.NewColorableStdout()
	stderr = colorable.NewColorableStderr()
)

func printErr(err error) {
	red := color.New(color.FgHiRed, color.Bold).SprintFunc()
	fmt.Fprintf(stderr, "%s %v\n", red("error:"), err)
}

func loadData(path string) (any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return v, nil
}

func newRenderCmd() *cobra.Command {
	var dataPath string
	cmd := &cobra.Command{
		Use:   "render <dir> <template>",
		Short: "render a template from a directory of *.hbs files to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loader.FromLocalDir(args[0])
			if err != nil {
				return err
			}
			data, err := loadData(dataPath)
			if err != nil {
				return err
			}
			return reg.Render(stdout, args[1], data)
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "path to a JSON data file")
	return cmd
}

func newLintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lint <dir>",
		Short: "lint every *.hbs template under dir for dangling partials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := loader.FromLocalDir(args[0])
			if err != nil {
				return err
			}
			var failed bool
			for _, name := range reg.TemplateNames() {
				if err := reg.Lint(name); err != nil {
					failed = true
					printErr(err)
				}
			}
			if failed {
				return fmt.Errorf("lint failed")
			}
			fmt.Fprintln(stdout, "ok")
			return nil
		},
	}
	return cmd
}

func newWatchCmd() *cobra.Command {
	var dataPath string
	cmd := &cobra.Command{
		Use:   "watch <dir> <template>",
		Short: "re-render a template to stdout whenever dir changes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watch(args[0], args[1], dataPath)
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "path to a JSON data file")
	return cmd
}

func watch(dir, name, dataPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	}); err != nil {
		return err
	}

	renderOnce := func() {
		reg, err := loader.FromLocalDir(dir)
		if err != nil {
			printErr(err)
			return
		}
		data, err := loadData(dataPath)
		if err != nil {
			printErr(err)
			return
		}
		if err := reg.Render(stdout, name, data); err != nil {
			printErr(err)
		}
	}
	renderOnce()

	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				renderOnce()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printErr(err)
		}
	}
}

func main() {
	root := &cobra.Command{
		Use:   "bracket",
		Short: "a Handlebars-compatible template engine",
	}
	root.AddCommand(newRenderCmd(), newLintCmd(), newWatchCmd())
	if err := root.Execute(); err != nil {
		printErr(err)
		os.Exit(1)
	}
}
