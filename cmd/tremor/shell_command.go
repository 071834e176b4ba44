package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"

	"github.com/xtxerr/tremor/config"
	"github.com/xtxerr/tremor/internal/logging"
	"github.com/xtxerr/tremor/internal/storage/query"
)

const historyFile = ".tremor_history"

var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "GROUP BY", "ORDER BY", "LIMIT", "AND", "OR",
	"AS", "SUM", "AVG", "COUNT", "MIN", "MAX", "DESC", "ASC", "JOIN", "ON",
	"DISTINCT", "HAVING", "LIKE", "DESCRIBE",
}

func newShellCommand() *cobra.Command {
	opts := &queryOptions{}

	cmd := &cobra.Command{
		Use:   "shell DIR",
		Short: "Interactive SQL shell over an export directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isTerminal(os.Stdin) {
				return fmt.Errorf("shell requires an interactive terminal; use `tremor query` instead")
			}

			dir := args[0]
			svc, err := opts.open(dir)
			if err != nil {
				return err
			}
			defer svc.Close()

			sh := newShell(cmd.Context(), svc, cmd.OutOrStdout(), filepath.Join(dir, historyFile))
			sh.run()
			return nil
		},
	}

	opts.register(cmd)
	return cmd
}

type shell struct {
	ctx         context.Context
	svc         *query.Service
	out         io.Writer
	historyPath string
	history     []string
	completer   *completer
}

func newShell(ctx context.Context, svc *query.Service, out io.Writer, historyPath string) *shell {
	sh := &shell{
		ctx:         ctx,
		svc:         svc,
		out:         out,
		historyPath: historyPath,
		history:     loadHistory(historyPath, config.DefaultShellHistorySize),
	}
	sh.completer = newCompleter(svc.Views(), sh.columns())
	return sh
}

// columns lists the column names of every view.
func (s *shell) columns() []string {
	res, err := s.svc.ExecuteSQL(s.ctx,
		"SELECT DISTINCT column_name FROM information_schema.columns ORDER BY column_name")
	if err != nil {
		logging.Component("shell").Debug("list columns", "error", err)
		return nil
	}
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) > 0 {
			out = append(out, formatValue(row[0]))
		}
	}
	return out
}

func (s *shell) run() {
	fmt.Fprintf(s.out, "tremor %s SQL shell. Views: %s\n", Version, strings.Join(s.svc.Views(), ", "))
	fmt.Fprintln(s.out, "Type .quit or press Ctrl-D to exit.")

	p := prompt.New(
		s.execute,
		s.completer.Complete,
		prompt.OptionPrefix("tremor> "),
		prompt.OptionTitle("tremor"),
		prompt.OptionHistory(s.history),
		prompt.OptionMaxSuggestion(10),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return breakline && isQuit(in)
		}),
	)
	p.Run()

	if err := saveHistory(s.historyPath, s.history, config.DefaultShellHistorySize); err != nil {
		logging.Component("shell").Warn("save history", "error", err)
	}
}

func (s *shell) execute(line string) {
	line = strings.TrimSpace(line)
	if line == "" || isQuit(line) {
		return
	}
	s.history = append(s.history, line)

	if line == ".views" {
		for _, v := range s.svc.Views() {
			fmt.Fprintln(s.out, v)
		}
		return
	}

	res, err := s.svc.ExecuteSQL(s.ctx, strings.TrimSuffix(line, ";"))
	if err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return
	}
	if err := writeResult(s.out, res); err != nil {
		fmt.Fprintln(s.out, "error:", err)
		return
	}
	fmt.Fprintf(s.out, "(%d rows)\n", len(res.Rows))
}

func isQuit(in string) bool {
	switch strings.TrimSpace(in) {
	case ".quit", ".exit", "exit", "quit":
		return true
	}
	return false
}

// completer suggests SQL keywords, view names and column names.
type completer struct {
	suggestions []prompt.Suggest
}

func newCompleter(views, columns []string) *completer {
	var s []prompt.Suggest
	for _, v := range views {
		s = append(s, prompt.Suggest{Text: v, Description: "view"})
	}
	for _, c := range columns {
		s = append(s, prompt.Suggest{Text: c, Description: "column"})
	}
	for _, k := range sqlKeywords {
		s = append(s, prompt.Suggest{Text: k})
	}
	s = append(s, prompt.Suggest{Text: ".views", Description: "list views"},
		prompt.Suggest{Text: ".quit", Description: "exit the shell"})

	sort.SliceStable(s, func(i, j int) bool { return s[i].Text < s[j].Text })
	return &completer{suggestions: s}
}

// Complete returns the suggestions matching the word before the cursor.
func (c *completer) Complete(d prompt.Document) []prompt.Suggest {
	word := d.GetWordBeforeCursor()
	if word == "" {
		return nil
	}
	return prompt.FilterHasPrefix(c.suggestions, word, true)
}

func loadHistory(path string, max int) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	return lines
}

func saveHistory(path string, lines []string, max int) error {
	if len(lines) > max {
		lines = lines[len(lines)-max:]
	}
	if len(lines) == 0 {
		return nil
	}
	return os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644)
}
