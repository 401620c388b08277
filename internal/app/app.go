// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"annovcf/internal/appcore"
	"annovcf/internal/cli"
	"annovcf/internal/cmdutil"
	"annovcf/internal/config"
	"annovcf/internal/version"
	"annovcf/internal/writers"
)

const long = `annovcf annotates the variants of a VCF file with CADD scores, population
frequencies and gene/exon regions, then prints them in rank, coordinate or
input order.

Records are annotated in parallel, spilled to a temp file and restored to the
requested order with an external merge sort, so memory stays bounded.`

// NewCommand builds the root command. The exit code of a run is stored in *code.
func NewCommand(stdout, stderr io.Writer, code *int) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "annovcf [flags] <vcf_file|->",
		Short:         "Annotate and sort the variants of a VCF file",
		Long:          long,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			opts, err := cli.FromViper(v, args)
			if err != nil {
				return err
			}
			if opts.Version {
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "annovcf version %s\n", version.Version)
				if writers.IsBrokenPipe(err) {
					return nil
				}
				return err
			}
			for _, k := range config.UnknownKeys(v, cmd.Flags()) {
				cmdutil.Warnf(stderr, opts.Quiet, "config key %q matches no flag; ignored", k)
			}
			log, err := cmdutil.NewLogger(stderr, opts.LogLevel, opts.Quiet)
			if err != nil {
				return err
			}
			for _, w := range cli.Warnings(opts) {
				log.Warn(w)
			}
			*code = appcore.Run(cmd.Context(), stdout, CoreOptions(opts), log)
			return nil
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	fs := cmd.Flags()
	fs.SortFlags = false
	cli.Register(fs)
	return cmd
}

// CoreOptions maps parsed flags to the driver options.
func CoreOptions(o cli.Options) appcore.Options {
	return appcore.Options{
		Input:        o.Input,
		OutFile:      o.OutFile,
		Silent:       o.Silent,
		Processes:    o.Processes,
		QueueSize:    o.QueueSize,
		ChunkRecords: o.ChunkRecords,
		FanIn:        o.FanIn,
		ChunkCodec:   o.ChunkCodec,
		TempDir:      o.TempDir,
		Sort:         o.Sort,
		FamilyID:     o.FamilyID,
		Sources:      o.Sources(),
		MetricsFile:  o.MetricsFile,
	}
}

func RunContext(parent context.Context, argv []string, stdout, stderr io.Writer) int {
	code := appcore.ExitOK
	cmd := NewCommand(stdout, stderr, &code)

	if len(argv) == 0 {
		if err := cmd.Usage(); err != nil && !writers.IsBrokenPipe(err) {
			_, _ = fmt.Fprintln(stderr, err)
			return appcore.ExitFailure
		}
		return appcore.ExitOK
	}

	cmd.SetArgs(argv)
	if err := cmd.ExecuteContext(parent); err != nil {
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		_, _ = fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", cmd.Name())
		return appcore.ExitUsage
	}
	return code
}

func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}
