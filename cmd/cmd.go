// Package cmd implements the convo command line: compile scripts to
// their binary form, run them as console conversations, and inspect
// what the parser produced.
package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/convolang/convo/cache"
	"github.com/convolang/convo/engine"
	"github.com/convolang/convo/host"
	"github.com/convolang/convo/parser"
)

// Execute runs the convo CLI with the given version string.
func Execute(version string) {
	root := &cli.Command{
		Name:                   "convo",
		Usage:                  "A line-oriented conversational scripting language",
		Version:                version,
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to config.toml",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Enable debug logging",
			},
		},
		// Allow `convo script.cv` as shorthand for `convo run script.cv`
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() > 0 {
				arg := cmd.Args().First()
				if strings.HasSuffix(arg, ".cv") || isConvoScript(arg) {
					return runScript(cmd, arg)
				}
			}
			return cli.DefaultShowRootCommandHelp(cmd)
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "Run a script as a console conversation",
				ArgsUsage: "<file.cv | script name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "at",
						Usage: "Start at a named tag instead of the top",
					},
				},
				Action: runAction,
			},
			{
				Name:      "compile",
				Usage:     "Compile a .cv file to its binary .cvc form",
				ArgsUsage: "<file.cv>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file name",
					},
				},
				Action: compileAction,
			},
			{
				Name:      "inspect",
				Usage:     "Show the compiled form of a script",
				ArgsUsage: "<file.cv | file.cvc>",
				Action:    inspectAction,
			},
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setup(cmd *cli.Command) (host.Config, *log.Logger, error) {
	logger := log.New(os.Stderr)
	if cmd.Bool("verbose") {
		logger.SetLevel(log.DebugLevel)
	}
	cfg, err := host.LoadConfig(cmd.String("config"))
	return cfg, logger, err
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: convo run <file.cv | script name>")
	}
	return runScript(cmd, cmd.Args().First())
}

// runScript drives one conversation over stdin and stdout. Each input
// line is one utterance; the loop ends when the conversation stack
// drains or input does.
func runScript(cmd *cli.Command, target string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	h := host.New(cfg, logger, os.Stdout)
	eng := engine.New(engine.Config{
		Collaborators:   h,
		Loader:          h,
		ResponseTimeout: cfg.ResponseTimeout(),
		WakeWord:        cfg.WakeWord,
		AudioDir:        cfg.AudioDir,
		Logger:          logger,
	})
	h.SetResolver(eng.ResolveRequest)

	const user = "console"
	if err := eng.StartScript(user, target, cmd.String("at")); err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	scanner := bufio.NewScanner(os.Stdin)
	for eng.Active(user) {
		if interactive {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			break
		}
		eng.HandleUtterance(user, scanner.Text())
	}
	return scanner.Err()
}

func compileAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: convo compile [-o output] <file.cv>")
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	path := cmd.Args().First()
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	p := parser.New(parser.Options{
		DefaultLanguage: cfg.DefaultLanguage,
		DefaultGender:   cfg.DefaultGender,
		SpeakerName:     cfg.SpeakerName,
		Logger:          logger,
	})
	script := p.Parse(string(src))
	for _, d := range script.Diagnostics {
		fmt.Fprintf(os.Stderr, "%s:%d: %s\n", path, d.Line, d.Message)
	}
	out := cmd.String("output")
	if out == "" {
		out = strings.TrimSuffix(path, ".cv") + ".cvc"
	}
	if err := cache.WriteFile(out, script); err != nil {
		return err
	}
	fmt.Printf("compiled %s (%d instructions) to %s\n", path, len(script.Instructions), out)
	return nil
}

func inspectAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: convo inspect <file.cv | file.cvc>")
	}
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	path := cmd.Args().First()
	var script *parser.Script
	if strings.HasSuffix(path, ".cvc") {
		script, err = cache.ReadFile(path)
	} else {
		script, err = host.New(cfg, logger, os.Stdout).Load(path)
	}
	if err != nil {
		return err
	}

	fmt.Printf("title: %s\n", script.Meta.Title)
	if script.Meta.Author != "" {
		fmt.Printf("author: %s\n", script.Meta.Author)
	}
	fmt.Printf("compiler: %s\n", script.Meta.CompilerVersion)
	fmt.Printf("speaker: %s (%s, %s)\n", script.Speaker.Name, script.Speaker.Language, script.Speaker.Gender)
	if script.TimeoutSeconds > 0 {
		fmt.Printf("timeout: %ds %s\n", script.TimeoutSeconds, script.TimeoutAction)
	}
	fmt.Printf("variables: %s\n", strings.Join(script.Variables, ", "))
	for name, lp := range script.Loops {
		fmt.Printf("loop %s: lines %d-%d", name, lp.Start, lp.End)
		if lp.EndVariable != "" {
			fmt.Printf(" until %s is %s", lp.EndVariable, lp.EndValue)
		}
		fmt.Println()
	}
	for tag, line := range script.Tags {
		fmt.Printf("tag @%s: line %d\n", tag, line)
	}
	fmt.Println()
	for _, inst := range script.Instructions {
		fmt.Printf("%4d %s%-12s %s\n", inst.LineNumber, strings.Repeat("    ", inst.Indent), inst.Command, inst.Text)
	}
	for _, d := range script.Diagnostics {
		fmt.Printf("warning line %d: %s\n", d.Line, d.Message)
	}
	return nil
}

// isConvoScript checks if a file exists and looks like a conversation
// script.
func isConvoScript(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 256)
	n, _ := f.Read(buf)
	return strings.Contains(strings.ToLower(string(buf[:n])), "script:")
}
