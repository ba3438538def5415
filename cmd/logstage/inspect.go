package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dd0wney/cluso-logstage/pkg/columnar"
	"github.com/dd0wney/cluso-logstage/pkg/staging"
)

func newInspectCmd() *cobra.Command {
	var (
		stream     string
		stagingDir string
		showSchema bool
	)

	cmd := &cobra.Command{
		Use:   "inspect [file...]",
		Short: "Print batches, rows and footer state of staged files",
		Long: "inspect reads staged Arrow IPC files. Files that were never finalized are read " +
			"up to their last complete batch and reported without a footer, or as truncated " +
			"when they end inside a batch. With --stream every " +
			"staged file of that stream under --staging-dir is inspected.",
		RunE: func(cmd *cobra.Command, args []string) error {
			files := args
			if stream != "" {
				dir, err := staging.NewDir(stagingDir)
				if err != nil {
					return err
				}
				listed, err := dir.ListFiles(stream)
				if err != nil {
					return err
				}
				files = append(files, listed...)
			}
			if len(files) == 0 {
				return errors.New("no files to inspect: pass file paths or --stream")
			}
			return inspectFiles(cmd.OutOrStdout(), files, showSchema)
		},
	}
	cmd.Flags().StringVar(&stream, "stream", "", "inspect every staged file of this stream")
	cmd.Flags().StringVar(&stagingDir, "staging-dir", "./staging", "staging root used with --stream")
	cmd.Flags().BoolVar(&showSchema, "schema", false, "print each file's schema")
	return cmd
}

func inspectFiles(out io.Writer, files []string, showSchema bool) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSCHEMA KEY\tBATCHES\tROWS\tFOOTER")

	var errs []error
	for _, path := range files {
		contents, err := columnar.ReadFile(path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		footer := "missing"
		switch {
		case contents.Finalized:
			footer = "present"
		case contents.Truncated:
			footer = "truncated"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n",
			path, columnar.SchemaKey(contents.Schema), len(contents.Batches), contents.Rows, footer)
		if showSchema {
			tw.Flush()
			fmt.Fprintln(out, contents.Schema)
		}
		contents.Release()
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	return errors.Join(errs...)
}
