package config

import "flag"

// Flags are the command-line overrides of the convert command. Zero
// values mean "not given".
type Flags struct {
	Config    string
	OutputDir string
	Name      string
	NoDedup   bool
	Debug     bool
	LogFile   string
	Color     string
}

// Register binds the flags to fs.
func (f *Flags) Register(fs *flag.FlagSet) {
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.StringVar(&f.OutputDir, "o", "", "Output directory")
	fs.StringVar(&f.Name, "n", "", "Base name for output files (default: input file name)")
	fs.BoolVar(&f.NoDedup, "no-dedup", false, "Disable vertex deduplication")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.LogFile, "log-file", "", "Also write logs to this file")
	fs.StringVar(&f.Color, "color", "", "Face color as #RRGGBB")
}

// apply applies CLI flag overrides to the config.
func (f *Flags) apply(cfg *Config) error {
	if f.OutputDir != "" {
		cfg.Convert.OutputDir = f.OutputDir
	}
	if f.Name != "" {
		cfg.Convert.BaseName = f.Name
	}
	if f.NoDedup {
		cfg.Convert.Deduplicate = false
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.LogFile != "" {
		cfg.Logging.LogFile = f.LogFile
	}
	if f.Color != "" {
		c, err := ParseColor(f.Color)
		if err != nil {
			return err
		}
		cfg.Face.Color = c
	}
	return nil
}
