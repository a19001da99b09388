package commands

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pybundle/internal/watch"
	"github.com/Sumatoshi-tech/pybundle/pkg/bundle"
	"github.com/Sumatoshi-tech/pybundle/pkg/observability"
	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
	"github.com/Sumatoshi-tech/pybundle/pkg/resolve"
)

type bundleFlags struct {
	src         string
	main        string
	output      string
	watch       bool
	allowCycles bool
}

func newBundleCommand(global *globalFlags) *cobra.Command {
	flags := &bundleFlags{}

	cmd := &cobra.Command{
		Use:   "bundle --src <root> --main <entry>",
		Short: "Inline local imports into one script",
		Long: `Inline every module under the source root that the entry script imports,
directly or transitively, into one flat script. External imports are kept,
deduplicated, at the top of the output.

Examples:
  pybundle bundle --src . --main main.py
  pybundle bundle --src src --main src/app.py -o dist/app.py
  pybundle bundle --src src --main src/app.py -o dist/app.py --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mode := observability.ModeCLI
			if flags.watch {
				mode = observability.ModeWatch
			}

			sess, err := global.open(cmd, mode)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			return runBundle(cmd, sess, flags)
		},
	}

	cmd.Flags().StringVar(&flags.src, "src", ".", "local source root")
	cmd.Flags().StringVar(&flags.main, "main", "", "entry script")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (default: stdout)")
	cmd.Flags().BoolVar(&flags.watch, "watch", false, "rebuild when sources under the root change")
	cmd.Flags().BoolVar(&flags.allowCycles, "allow-cycles", false, "bundle even when local modules import each other in a cycle")

	return cmd
}

// bundleTarget is a validated root and entry script.
type bundleTarget struct {
	root  string
	entry string
}

func resolveTarget(src, main string) (bundleTarget, error) {
	root, err := resolveUserDir(src)
	if err != nil {
		return bundleTarget{}, fmt.Errorf("source root: %w", err)
	}

	_, entry, err := safeReadPython(main)
	if err != nil {
		return bundleTarget{}, fmt.Errorf("entry script: %w", err)
	}

	return bundleTarget{root: root, entry: entry}, nil
}

// bundleOnce runs one bundling pipeline. A fresh classifier is built per
// run so watch rebuilds never see cached sources.
func bundleOnce(ctx context.Context, sess *session, parser *pysyntax.Parser, target bundleTarget, allowCycles bool) (*bundle.Result, error) {
	classifier, err := resolve.NewClassifier(sess.cfg.ClassifierConfig(target.root, filepath.Dir(target.entry), sess.logger()))
	if err != nil {
		return nil, err
	}

	opts := sess.cfg.BundleOptions(sess.logger())
	opts.AllowCycles = opts.AllowCycles || allowCycles

	return bundle.Bundle(ctx, classifier, parser, target.entry, opts)
}

func runBundle(cmd *cobra.Command, sess *session, flags *bundleFlags) error {
	target, err := resolveTarget(flags.src, flags.main)
	if err != nil {
		return err
	}

	parser := pysyntax.NewParser()

	build := func(ctx context.Context) error {
		result, buildErr := bundleOnce(ctx, sess, parser, target, flags.allowCycles)
		if buildErr != nil {
			return buildErr
		}

		var buf bytes.Buffer

		renderErr := bundle.Render(&buf, result.Document)
		if renderErr != nil {
			return renderErr
		}

		writeErr := writeOutput(flags.output, buf.Bytes(), func(data []byte) error {
			_, err := cmd.OutOrStdout().Write(data)

			return err
		})
		if writeErr != nil {
			return writeErr
		}

		if flags.output != "" {
			sess.logger().InfoContext(ctx, "bundle written",
				"output", flags.output, "size", humanize.Bytes(uint64(buf.Len())))
		}

		return nil
	}

	if !flags.watch {
		return build(cmd.Context())
	}

	err = build(cmd.Context())
	if err != nil {
		sess.logger().ErrorContext(cmd.Context(), "initial build failed", "error", err)
	}

	var ignore []string
	if flags.output != "" {
		ignore = append(ignore, flags.output)
	}

	watcher, err := watch.New(watch.Config{
		Root:     target.root,
		Debounce: sess.cfg.Watch.Debounce,
		Ignore:   ignore,
		Logger:   sess.logger(),
	})
	if err != nil {
		return err
	}

	sess.logger().InfoContext(cmd.Context(), "watching for changes", "root", target.root)

	return watcher.Run(cmd.Context(), build)
}
