package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/pybundle/pkg/observability"
	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
	"github.com/Sumatoshi-tech/pybundle/pkg/strip"
)

type stripFlags struct {
	src       []string
	write     bool
	diff      bool
	allParams bool
	jobs      int
}

// stripResult is the outcome for one input file.
type stripResult struct {
	path   string
	before []byte
	after  []byte
	mode   os.FileMode
	stats  strip.Stats
}

func newStripCommand(global *globalFlags) *cobra.Command {
	flags := &stripFlags{}

	cmd := &cobra.Command{
		Use:   "strip --src <file> [file...]",
		Short: "Remove function annotations and typing imports",
		Long: `Remove parameter and return annotations from function signatures and
delete imports of annotation-only modules (typing by default).

Examples:
  pybundle strip --src app.py
  pybundle strip --diff src/*.py
  pybundle strip --write --jobs 8 src/*.py`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := global.open(cmd, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			return runStrip(cmd, sess, flags, append(flags.src, args...))
		},
	}

	cmd.Flags().StringSliceVar(&flags.src, "src", nil, "files to strip (also accepted as arguments)")
	cmd.Flags().BoolVar(&flags.write, "write", false, "rewrite files in place")
	cmd.Flags().BoolVar(&flags.diff, "diff", false, "print a line diff instead of the stripped source")
	cmd.Flags().BoolVar(&flags.allParams, "all-params", false, "also strip positional-only, variadic and keyword-only parameters")
	cmd.Flags().IntVar(&flags.jobs, "jobs", 0, "files stripped in parallel (default from config)")

	return cmd
}

func runStrip(cmd *cobra.Command, sess *session, flags *stripFlags, files []string) error {
	if len(files) == 0 {
		return ErrNoInput
	}

	if len(files) > 1 && !flags.write && !flags.diff {
		return ErrMultipleFiles
	}

	opts := sess.cfg.StripOptions(sess.logger())
	opts.AllParameters = opts.AllParameters || flags.allParams

	jobs := flags.jobs
	if jobs <= 0 {
		jobs = sess.cfg.Strip.Jobs
	}

	results, err := stripFiles(cmd.Context(), strip.New(opts), files, jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	for _, res := range results {
		switch {
		case flags.diff:
			fmt.Fprint(out, lineDiff(res.path, string(res.before), string(res.after)))
		case !flags.write:
			_, _ = out.Write(res.after)
		}

		if flags.write && res.stats.Changed() {
			writeErr := os.WriteFile(res.path, res.after, res.mode.Perm())
			if writeErr != nil {
				return fmt.Errorf("write %s: %w", res.path, writeErr)
			}
		}

		sess.logger().InfoContext(cmd.Context(), "stripped",
			"file", res.path,
			"functions", res.stats.Functions,
			"parameters", res.stats.Parameters,
			"returns", res.stats.Returns,
			"imports", res.stats.Imports)
	}

	return nil
}

// stripFiles strips every file with at most jobs running at once. Results
// keep the input order. Nothing is written unless every file succeeds.
func stripFiles(ctx context.Context, stripper *strip.Stripper, files []string, jobs int) ([]stripResult, error) {
	parser := pysyntax.NewParser()
	results := make([]stripResult, len(files))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(jobs)

	for i, file := range files {
		group.Go(func() error {
			content, path, err := safeReadPython(file)
			if err != nil {
				return err
			}

			info, err := os.Stat(path)
			if err != nil {
				return fmt.Errorf("stat %s: %w", path, err)
			}

			out, stats, err := stripper.StripSource(ctx, parser, path, content)
			if err != nil {
				return err
			}

			results[i] = stripResult{path: path, before: content, after: out, mode: info.Mode(), stats: stats}

			return nil
		})
	}

	err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

// lineDiff renders a line-oriented diff of before and after. Unchanged
// input yields an empty string.
func lineDiff(path, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	chars1, chars2, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(chars1, chars2, false), lines)

	removed := color.New(color.FgRed)
	added := color.New(color.FgGreen)

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "--- %s\n+++ %s\n", path, path)

	for _, diff := range diffs {
		for _, line := range splitLines(diff.Text) {
			switch diff.Type {
			case diffmatchpatch.DiffDelete:
				removed.Fprintf(&buf, "-%s\n", line)
			case diffmatchpatch.DiffInsert:
				added.Fprintf(&buf, "+%s\n", line)
			case diffmatchpatch.DiffEqual:
				fmt.Fprintf(&buf, " %s\n", line)
			}
		}
	}

	return buf.String()
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}

	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
