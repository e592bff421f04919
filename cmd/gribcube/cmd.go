package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/golang/glog"
	"github.com/iancoleman/orderedmap"
	"github.com/pkg/errors"
	"github.com/sdifrance/gribcube"
	"github.com/sdifrance/gribcube/gribio"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// settings holds the values of the persistent flags.
type settings struct {
	config      string
	warn        bool
	hindcast    bool
	skipErrors  bool
	workers     int
	cacheSize   int
	packingBits int
}

func (s *settings) options() gribcube.Options {
	return gribcube.Options{
		WarnOnUnsupported:     s.warn,
		SupportHindcastValues: s.hindcast,
		SkipUntranslatable:    s.skipErrors,
		Workers:               s.workers,
		CacheSize:             s.cacheSize,
		PackingBits:           s.packingBits,
	}
}

func newRoot() *cobra.Command {
	return new(settings).command()
}

// command returns the root command with its flags bound to s.
func (s *settings) command() *cobra.Command {
	root := &cobra.Command{
		Use:   "gribcube",
		Short: "Inspect and convert GRIB files.",
		Long: `gribcube reads GRIB edition 1 and 2 files, translates their messages
to cubes of gridded data and writes cubes back out as GRIB2.

Any persistent flag can also be given in a TOML file named by --config,
using the flag name as the key. Flags on the command line take precedence.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if s.config == "" {
				return nil
			}
			return applyConfig(cmd.Flags(), s.config)
		},
	}

	def := gribcube.DefaultOptions
	pf := root.PersistentFlags()
	pf.StringVar(&s.config, "config", "", "TOML file of flag values")
	pf.BoolVar(&s.warn, "warn-unsupported", def.WarnOnUnsupported, "log message content that cannot be translated")
	pf.BoolVar(&s.hindcast, "hindcast", def.SupportHindcastValues, "read sign and magnitude forecast times")
	pf.BoolVar(&s.skipErrors, "skip-errors", def.SkipUntranslatable, "skip messages that fail to translate")
	pf.IntVar(&s.workers, "workers", def.Workers, "messages translated at once")
	pf.IntVar(&s.cacheSize, "cache-size", def.CacheSize, "data arrays cached per load")
	pf.IntVar(&s.packingBits, "packing-bits", def.PackingBits, "bits per saved value, 0 for the default")
	pf.AddGoFlagSet(flag.CommandLine)

	root.AddCommand(inspectCmd(), dumpCmd(s), convertCmd(s))
	return root
}

// applyConfig sets every flag of fs named in the TOML file at path that
// was not set on the command line.
func applyConfig(fs *pflag.FlagSet, path string) error {
	var cfg map[string]interface{}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return errors.Wrapf(err, "reading config %s", path)
	}
	for key, v := range cfg {
		f := fs.Lookup(key)
		if f == nil {
			return fmt.Errorf("config %s: unknown option %q", path, key)
		}
		if f.Changed {
			continue
		}
		val, err := flagValue(v)
		if err != nil {
			return errors.Wrapf(err, "config %s: option %q", path, key)
		}
		if err := f.Value.Set(val); err != nil {
			return errors.Wrapf(err, "config %s: option %q", path, key)
		}
		glog.V(1).Infof("config %s: %s = %s", path, key, val)
	}
	return nil
}

// flagValue renders a TOML value in the form pflag parses.
func flagValue(v interface{}) (string, error) {
	if l, ok := v.([]interface{}); ok {
		s, err := cast.ToStringSliceE(l)
		if err != nil {
			return "", err
		}
		return strings.Join(s, ","), nil
	}
	return cast.ToStringE(v)
}

func inspectCmd() *cobra.Command {
	var (
		asJSON   bool
		sections []int
	)
	cmd := &cobra.Command{
		Use:   "inspect file...",
		Short: "Print the keys of each section of each message.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				if err := inspect(cmd.OutOrStdout(), path, asJSON, sections); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print one JSON object per message")
	cmd.Flags().IntSliceVar(&sections, "sections", nil, "section numbers to print, all if empty")
	return cmd
}

func inspect(w io.Writer, path string, asJSON bool, only []int) error {
	src, err := gribio.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer src.Close()
	want := map[int]bool{}
	for _, n := range only {
		want[n] = true
	}
	enc := json.NewEncoder(w)
	for {
		m, err := src.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if asJSON {
			sections := orderedmap.New()
			for _, s := range m.Sections() {
				if len(want) == 0 || want[s.Number] {
					sections.Set(strconv.Itoa(s.Number), s)
				}
			}
			out := orderedmap.New()
			out.Set("location", m.Location.String())
			out.Set("edition", m.Edition)
			out.Set("sections", sections)
			if err := enc.Encode(out); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(w, "message %d (edition %d) %v\n", m.Location.Index, m.Edition, m.Location)
		for _, s := range m.Sections() {
			if len(want) == 0 || want[s.Number] {
				fmt.Fprintf(w, "  %v\n", s)
			}
		}
	}
}

func dumpCmd(s *settings) *cobra.Command {
	var merge bool
	cmd := &cobra.Command{
		Use:   "dump file...",
		Short: "Print the cube each message translates to.",
		Long: `dump prints a one line summary of the cube of each message, or with
--merge the full description of each merged cube.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			opts := s.options()
			if merge {
				cubes, err := opts.LoadCubes(context.Background(), args...)
				if err != nil {
					return err
				}
				for _, c := range cubes {
					fmt.Fprintln(w, c)
				}
				return nil
			}
			sc := opts.LoadPairs(args...)
			defer sc.Close()
			for sc.Scan() {
				p := sc.Pair()
				fmt.Fprintf(w, "%v: %s\n", p.Message.Location, p.Cube.Summary())
			}
			return sc.Err()
		},
	}
	cmd.Flags().BoolVar(&merge, "merge", false, "merge the cubes before printing")
	return cmd
}

func convertCmd(s *settings) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "convert -o output file...",
		Short: "Load and merge GRIB files and save the cubes as GRIB2.",
		Long: `convert writes the merged cubes of the input files to output. An output
ending in ` + gribio.ArchiveExt + ` is written as a keyed archive, any other as
GRIB2.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("convert: --output is required")
			}
			opts := s.options()
			cubes, err := opts.LoadCubes(context.Background(), args...)
			if err != nil {
				return err
			}
			glog.Infof("saving %d cubes to %s", len(cubes), output)
			return opts.Save(cubes, output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "path of the file to write")
	return cmd
}
