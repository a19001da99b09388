package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/pybundle/pkg/bundle"
	"github.com/Sumatoshi-tech/pybundle/pkg/observability"
	"github.com/Sumatoshi-tech/pybundle/pkg/pysyntax"
	"github.com/Sumatoshi-tech/pybundle/pkg/resolve"
)

const (
	graphFormatDot   = "dot"
	graphFormatYAML  = "yaml"
	graphFormatTable = "table"
	graphName        = "pybundle"
)

type graphFlags struct {
	src    string
	main   string
	format string
}

// graphEdge is an importer to imported module edge.
type graphEdge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to"   yaml:"to"`
}

// graphReport is the serialized form of a module graph.
type graphReport struct {
	Entry   string              `json:"entry"           yaml:"entry"`
	Modules []bundle.ModuleInfo `json:"modules"         yaml:"modules"`
	Edges   []graphEdge         `json:"edges"           yaml:"edges"`
	Cycle   []string            `json:"cycle,omitempty" yaml:"cycle,omitempty"`
}

func newGraphCommand(global *globalFlags) *cobra.Command {
	flags := &graphFlags{}

	cmd := &cobra.Command{
		Use:   "graph --src <root> --main <entry>",
		Short: "Print the module import graph",
		Long: `Walk the imports of the entry script like bundle does and print every
module met with its classification and import edges. Cycles are reported,
not fatal.

Examples:
  pybundle graph --src . --main main.py
  pybundle graph --src . --main main.py --format table
  pybundle graph --src . --main main.py --format dot | dot -Tsvg > deps.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := global.open(cmd, observability.ModeCLI)
			if err != nil {
				return err
			}
			defer sess.close(cmd.Context())

			return runGraph(cmd, sess, flags)
		},
	}

	cmd.Flags().StringVar(&flags.src, "src", ".", "local source root")
	cmd.Flags().StringVar(&flags.main, "main", "", "entry script")
	cmd.Flags().StringVarP(&flags.format, "format", "f", graphFormatDot, "output format (dot, yaml, table, json)")

	return cmd
}

func runGraph(cmd *cobra.Command, sess *session, flags *graphFlags) error {
	switch flags.format {
	case graphFormatDot, graphFormatYAML, graphFormatTable, formatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, flags.format)
	}

	target, err := resolveTarget(flags.src, flags.main)
	if err != nil {
		return err
	}

	result, err := bundleOnce(cmd.Context(), sess, pysyntax.NewParser(), target, true)
	if err != nil {
		return err
	}

	return writeGraph(cmd.OutOrStdout(), flags.format, target.entry, result)
}

func writeGraph(w io.Writer, format, entry string, result *bundle.Result) error {
	switch format {
	case graphFormatDot:
		_, err := io.WriteString(w, result.Graph.Serialize(graphName, dotAttrs(result.Modules)))

		return err
	case graphFormatTable:
		_, err := io.WriteString(w, graphTable(result)+"\n")

		return err
	case graphFormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		err := enc.Encode(newGraphReport(entry, result))
		if err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}

		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		err := enc.Encode(newGraphReport(entry, result))
		if err != nil {
			return fmt.Errorf("encode json: %w", err)
		}

		return nil
	}
}

func newGraphReport(entry string, result *bundle.Result) graphReport {
	report := graphReport{Entry: entry, Modules: result.Modules, Cycle: result.Cycle}

	for _, from := range result.Graph.Nodes() {
		for _, to := range result.Graph.Children(from) {
			report.Edges = append(report.Edges, graphEdge{From: from, To: to})
		}
	}

	return report
}

// dotAttrs draws external modules as dashed boxes.
func dotAttrs(modules []bundle.ModuleInfo) func(string) string {
	classes := make(map[string]resolve.Classification, len(modules))
	for _, mod := range modules {
		classes[mod.Name] = mod.Class
	}

	return func(node string) string {
		if classes[node] == resolve.External {
			return "shape=box, style=dashed"
		}

		return ""
	}
}

func graphTable(result *bundle.Result) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"Module", "Class", "Reason", "Imports", "Path"})

	local := 0

	for _, mod := range result.Modules {
		if mod.Class == resolve.Local {
			local++
		}

		tbl.AppendRow(table.Row{
			mod.Name,
			mod.Class,
			mod.Reason,
			strings.Join(result.Graph.Children(mod.Name), ", "),
			mod.Path,
		})
	}

	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d modules, %d local", len(result.Modules), local)})

	return tbl.Render()
}
