// uvftool converts ASCII STL meshes into UVF scenes and inspects the
// resulting manifests.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/uvfconv/internal/config"
	"github.com/Faultbox/uvfconv/internal/convert"
	"github.com/Faultbox/uvfconv/internal/logger"
	"github.com/Faultbox/uvfconv/pkg/formats"
	"github.com/Faultbox/uvfconv/pkg/source"
	"github.com/Faultbox/uvfconv/pkg/uvf"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "convert", "c":
		cmdConvert(args)
	case "info", "analyze":
		cmdInfo(args)
	case "format", "fmt":
		cmdFormat(args)
	case "init-config":
		cmdInitConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`uvftool - ASCII STL to UVF converter

Usage:
  uvftool <command> [options]

Commands:
  convert [options] <file.stl>        Convert an STL file (.gz/.zst/.lz4/.zz accepted)
  info <manifest.json>                Print a manifest analysis report
  format <manifest.json> [out.json]   Pretty-print a manifest
  init-config [path]                  Write the default config file

Convert options:
  -o <dir>          Output directory (default: stl_output)
  -n <name>         Base name for output files (default: input file name)
  -no-dedup         Disable per-solid vertex deduplication
  -color <#RRGGBB>  Face color
  -config <file>    Config file (default: ./uvftool.yaml, then user config dir)
  -debug            Enable debug logging
  -log-file <file>  Also write logs to a rotating file

Examples:
  uvftool convert -o out bracket.stl
  uvftool convert -no-dedup -n part part.stl.gz
  uvftool info out/manifest.json
  uvftool format out/manifest.json pretty.json`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// parseInterspersed parses flags that may appear before or after
// positional arguments and returns the positionals.
func parseInterspersed(fs *flag.FlagSet, args []string) []string {
	var positional []string
	for {
		fs.Parse(args)
		if fs.NArg() == 0 {
			return positional
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func cmdConvert(args []string) {
	var flags config.Flags
	fs := flag.NewFlagSet("convert", flag.ExitOnError)
	flags.Register(fs)
	positional := parseInterspersed(fs, args)

	if len(positional) != 1 {
		fmt.Fprintln(os.Stderr, "Usage: uvftool convert [options] <file.stl>")
		os.Exit(1)
	}
	input := positional[0]

	cfg, err := config.Load(&flags)
	if err != nil {
		fatal(err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatal(err)
	}
	defer logger.Sync()
	logger.Debug("config loaded",
		zap.String("output_dir", cfg.Convert.OutputDir),
		zap.Bool("dedup", cfg.Convert.Deduplicate),
		zap.String("log_level", cfg.Logging.Level))

	summary, err := convert.Run(cfg, input, logger.Named("convert"))
	if err != nil {
		logger.Error("conversion failed", zap.String("path", input), zap.Error(err))
		logger.Sync()
		switch {
		case errors.Is(err, source.ErrNotFound):
			fmt.Fprintf(os.Stderr, "Error: file %s not found\n", input)
		case formats.IsGrammarError(err):
			fmt.Fprintf(os.Stderr, "STL parse error: %v\n", err)
		default:
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}

	summary.Print(os.Stdout)
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: uvftool info <manifest.json>")
		os.Exit(1)
	}

	m, err := uvf.ReadManifest(args[0])
	if err != nil {
		fatal(err)
	}
	uvf.Analyze(m).Print(os.Stdout)
}

func cmdFormat(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: uvftool format <manifest.json> [output.json]")
		os.Exit(1)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal(err)
	}
	formatted, err := uvf.Format(data)
	if err != nil {
		fatal(err)
	}

	if len(args) < 2 {
		os.Stdout.Write(formatted)
		return
	}
	if err := os.WriteFile(args[1], formatted, 0644); err != nil {
		fatal(err)
	}
	fmt.Printf("Formatted manifest written to: %s\n", args[1])
}

func cmdInitConfig(args []string) {
	cfg := config.Default()

	if len(args) > 0 {
		if err := cfg.SaveTo(args[0]); err != nil {
			fatal(err)
		}
		fmt.Printf("Config written to: %s\n", args[0])
		return
	}

	path, err := cfg.Save()
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Config written to: %s\n", path)
}
