package main

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/xtxerr/archivist/internal/archive"
)

func newShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell <dir>",
		Short: "Browse an archive directory interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opener, err := archive.NewFileOpener(args[0], archive.DefaultFileOptions())
			if err != nil {
				return err
			}
			sh := &shell{opener: opener, out: cmd.OutOrStdout()}

			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return sh.runScript(cmd.InOrStdin())
			}
			sh.runPrompt()
			return nil
		},
	}
}

// shell is a small command interpreter over one archive directory.
type shell struct {
	opener *archive.FileOpener
	out    io.Writer
}

var shellCommands = []prompt.Suggest{
	{Text: "ls", Description: "list archives"},
	{Text: "cat", Description: "print an archive"},
	{Text: "stats", Description: "summarize an archive"},
	{Text: "exit", Description: "leave the shell"},
}

func (s *shell) runPrompt() {
	p := prompt.New(
		func(line string) { s.exec(line) },
		s.complete,
		prompt.OptionPrefix("archive> "),
		prompt.OptionTitle("archivectl"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && strings.TrimSpace(in) == "exit"
		}),
	)
	p.Run()
}

// runScript executes one command per line until EOF or exit.
func (s *shell) runScript(r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if s.exec(sc.Text()) {
			return nil
		}
	}
	return sc.Err()
}

func (s *shell) complete(d prompt.Document) []prompt.Suggest {
	fields := strings.Fields(d.TextBeforeCursor())
	word := d.GetWordBeforeCursor()
	if len(fields) == 0 || (len(fields) == 1 && word != "") {
		return prompt.FilterHasPrefix(shellCommands, word, true)
	}
	paths, err := s.list()
	if err != nil {
		return nil
	}
	suggests := make([]prompt.Suggest, len(paths))
	for i, p := range paths {
		suggests[i] = prompt.Suggest{Text: p}
	}
	return prompt.FilterHasPrefix(suggests, word, false)
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	var err error
	switch cmd, args := fields[0], fields[1:]; cmd {
	case "exit", "quit":
		return true
	case "ls":
		var paths []string
		paths, err = s.list()
		for _, p := range paths {
			fmt.Fprintln(s.out, p)
		}
	case "cat", "stats":
		if len(args) != 1 {
			err = fmt.Errorf("usage: %s <archive>", cmd)
			break
		}
		var entries []archive.Entry
		entries, err = s.load(args[0])
		if err != nil {
			break
		}
		if cmd == "cat" {
			err = printEntries(s.out, entries, false)
		} else {
			err = summarize(entries).print(s.out)
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
	return false
}

// list returns the archive paths below the directory, sorted.
func (s *shell) list() ([]string, error) {
	root := s.opener.Dir()
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	slices.Sort(paths)
	return paths, err
}

func (s *shell) load(path string) ([]archive.Entry, error) {
	full, err := s.opener.Resolve(path)
	if err != nil {
		return nil, err
	}
	return archive.ReadFile(full)
}
