// Package main is the entrypoint of the luna interpreter.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	luna "github.com/airtrack/luna-sub000"
	"github.com/airtrack/luna-sub000/src/conf"
	"github.com/airtrack/luna-sub000/src/runtime"
)

var (
	listOpcodes bool
	showVersion bool
	configPath  string
	verbosity   int
	errColor    = color.New(color.FgRed)
)

func main() {
	if err := newCommand().Execute(); err != nil {
		errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "luna [script]",
		Short:         "Run lua scripts or start an interactive prompt",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().BoolVarP(&listOpcodes, "list", "l", false, "list the bytecode of the script before running it")
	cmd.Flags().BoolVarP(&showVersion, "version", "V", false, "show version information")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a luna.toml configuration file")
	cmd.Flags().CountVarP(&verbosity, "verbose", "v", "log collector activity, repeat for more detail")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	commonlog.Configure(verbosity, nil)
	cfg := conf.Default()
	if configPath != "" {
		var err error
		if cfg, err = conf.Load(configPath); err != nil {
			return err
		}
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	state := luna.NewState(ctx, cfg)

	if showVersion {
		printVersion()
	}
	switch {
	case len(args) > 0:
		src, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("%s: can not open file %s", os.Args[0], args[0])
		}
		defer func() { _ = src.Close() }()
		return execute(state, args[0], src)
	case !term.IsTerminal(int(os.Stdin.Fd())):
		return execute(state, "stdin", os.Stdin)
	case !showVersion:
		printVersion()
		fmt.Fprint(os.Stderr, "Press ctrl-c to quit or clear current buffer.\n")
		return state.REPL()
	}
	return nil
}

func execute(state *runtime.State, module string, src io.Reader) error {
	proto, err := luna.Compile(state, module, src)
	if err != nil {
		return err
	}
	if listOpcodes {
		fmt.Fprintln(os.Stderr, proto.String())
	}
	_, err = state.Call(state.NewClosure(proto))
	return err
}

func printVersion() {
	color.New(color.Bold).Fprintf(os.Stderr, "%v\n", conf.FullVersion())
}
