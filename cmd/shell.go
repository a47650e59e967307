package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/wkalt/teeql/output"
)

/*
The shell is an interactive loop over readline. Input accumulates across lines
until one ends with a semicolon, and the accumulated text is executed as a
script. Lines starting with a backslash are shell commands and execute
immediately.

An interrupt during a query cancels that query only. The tee it was feeding is
aborted and the shell stays up.
*/

////////////////////////////////////////////////////////////////////////////////

const (
	prompt             = "teeql> "
	continuationPrompt = "   ...> "
)

var shellHelp = `Statements end with a semicolon and may span lines.

  \h            show this help
  \f [format]   show or set the output format (table, csv, json)
  \history [n]  show the n most recent tee invocations
  \q            quit

Example:
  SELECT count(*) FROM tee((SELECT * FROM range(10)), path='out.csv');
`

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := newEnvironment()
		if err != nil {
			return err
		}
		defer env.Close()
		return runShell(cmd.Context(), env)
	},
}

func runShell(ctx context.Context, env *environment) error {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     filepath.Join(os.TempDir(), "teeql-history.tmp"),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to start shell: %w", err)
	}
	defer l.Close()
	color.New(color.Bold).Fprint(l.Stdout(), "teeql")
	fmt.Fprintln(l.Stdout(), ` shell. Type "\h" for help.`)

	lines := []string{}
	for {
		line, err := l.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				lines = lines[:0]
				l.SetPrompt(prompt)
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		trimmed := strings.TrimSpace(line)
		if len(lines) == 0 {
			if trimmed == "" {
				continue
			}
			if strings.HasPrefix(trimmed, `\`) {
				quit, err := env.command(ctx, trimmed, l.Stdout())
				if err != nil {
					printError(l.Stderr(), err)
				}
				if quit {
					return nil
				}
				continue
			}
		}
		lines = append(lines, line)
		if !strings.HasSuffix(trimmed, ";") {
			l.SetPrompt(continuationPrompt)
			continue
		}
		script := strings.Join(lines, "\n")
		lines = lines[:0]
		l.SetPrompt(prompt)
		if err := l.SaveHistory(script); err != nil {
			printError(l.Stderr(), err)
		}
		if err := env.interruptible(ctx, script, l.Stdout()); err != nil {
			printError(l.Stderr(), err)
		}
	}
}

// interruptible executes script, canceling it on SIGINT.
func (e *environment) interruptible(ctx context.Context, script string, w io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	return e.exec(ctx, script, w)
}

// command runs a backslash command, reporting whether the shell should exit.
func (e *environment) command(ctx context.Context, line string, w io.Writer) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case `\q`, `\quit`:
		return true, nil
	case `\h`, `\help`, `\?`:
		fmt.Fprint(w, shellHelp)
		return false, nil
	case `\f`, `\format`:
		if arg == "" {
			fmt.Fprintln(w, format)
			return false, nil
		}
		f, err := output.ParseFormat(arg)
		if err != nil {
			return false, err
		}
		format = string(f)
		return false, nil
	case `\history`:
		limit := defaultHistoryLimit
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return false, fmt.Errorf("invalid history limit %q", arg)
			}
			limit = n
		}
		return false, e.printHistory(ctx, limit, w)
	default:
		return false, fmt.Errorf("unrecognized command: %s", line)
	}
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
