package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/delaneyj/phylflow/dataflow"
	"github.com/delaneyj/phylflow/numeric"
	"github.com/delaneyj/phylflow/pkg/graphfile"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"
)

const (
	nodeKey     = "node"
	setKey      = "set"
	ofKey       = "of"
	wrtKey      = "wrt"
	outKey      = "out"
	detailedKey = "detailed"
	upwardKey   = "upward"
	indexKey    = "index"
)

func nodeFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  nodeKey,
		Usage: "Node to work on, may be repeated (default: every node of the file)",
	}
}

func setFlag() cli.Flag {
	return &cli.StringSliceFlag{
		Name:  setKey,
		Usage: "Parameter assignment name=value applied after loading, may be repeated",
	}
}

func newCommand(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "dfgraph",
		Usage:  "Evaluate, derive and inspect dataflow graph files",
		Writer: out,
		Commands: []*cli.Command{
			{
				Name:      "eval",
				Usage:     "Print the value of nodes",
				ArgsUsage: "FILE",
				Flags:     []cli.Flag{nodeFlag(), setFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return eval(cmd, out)
				},
			},
			{
				Name:      "derive",
				Usage:     "Build and evaluate a derivative",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: ofKey, Usage: "Node to derive", Required: true},
					&cli.StringFlag{Name: wrtKey, Usage: "Variable to derive with respect to", Required: true},
					&cli.StringFlag{Name: outKey, Usage: "Also write the derivative graph in DOT format to this file"},
					setFlag(),
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return derive(cmd, out)
				},
			},
			{
				Name:      "dot",
				Usage:     "Export the graph in graphviz DOT format",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					nodeFlag(),
					setFlag(),
					&cli.StringFlag{Name: outKey, Usage: "Output file (default: stdout)"},
					&cli.BoolFlag{Name: detailedKey, Usage: "Show ids, validity, tags and debug info"},
					&cli.BoolFlag{Name: upwardKey, Usage: "Follow dependent links too"},
					&cli.BoolFlag{Name: indexKey, Usage: "Label edges with the dependency index"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return dot(cmd, out)
				},
			},
			{
				Name:      "nodes",
				Usage:     "List the nodes of a graph file",
				ArgsUsage: "FILE",
				Flags:     []cli.Flag{nodeFlag(), setFlag()},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return nodes(cmd, out)
				},
			},
		},
	}
}

func loadGraph(cmd *cli.Command) (*graphfile.Graph, error) {
	path := cmd.Args().First()
	if path == "" {
		return nil, errors.New("missing graph file argument")
	}
	start := time.Now()
	g, err := graphfile.Load(path)
	if err != nil {
		return nil, err
	}
	for _, a := range cmd.StringSlice(setKey) {
		if err := g.SetAssignment(a); err != nil {
			return nil, err
		}
	}
	log.Printf("Loaded %d names from %s in %v", len(g.Names()), path, time.Since(start))
	return g, nil
}

func selectedNodes(cmd *cli.Command, g *graphfile.Graph) ([]string, []dataflow.Node, error) {
	names := cmd.StringSlice(nodeKey)
	if len(names) == 0 {
		names = g.Names()
	}
	ns, err := g.Nodes(names...)
	return names, ns, err
}

func eval(cmd *cli.Command, out io.Writer) error {
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	names, ns, err := selectedNodes(cmd, g)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"name", "type", "value"})
	table.SetAutoWrapText(false)
	for i, n := range ns {
		table.Append([]string{names[i], n.Description(), numeric.Format(n)})
	}
	table.Render()
	return nil
}

func derive(cmd *cli.Command, out io.Writer) error {
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	of, wrt := cmd.String(ofKey), cmd.String(wrtKey)
	d, err := g.Derive(of, wrt)
	if err != nil {
		return err
	}

	stats := g.Context().Stats()
	log.Printf("Derivative built: %d derivations, %d reused", stats.Derivations, stats.DerivationHits)
	fmt.Fprintf(out, "d%s/d%s = %s\n", of, wrt, numeric.Format(d))

	if path := cmd.String(outKey); path != "" {
		if err := dataflow.WriteGraphToDotFile(path, []dataflow.Node{d}, dataflow.DetailedNodeInfo); err != nil {
			return err
		}
		log.Printf("Derivative graph written to %s", path)
	}
	return nil
}

func dot(cmd *cli.Command, out io.Writer) error {
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	_, ns, err := selectedNodes(cmd, g)
	if err != nil {
		return err
	}

	opt := dataflow.DotNone
	if cmd.Bool(detailedKey) {
		opt |= dataflow.DetailedNodeInfo
	}
	if cmd.Bool(upwardKey) {
		opt |= dataflow.FollowUpwardLinks
	}
	if cmd.Bool(indexKey) {
		opt |= dataflow.ShowDependencyIndex
	}

	if path := cmd.String(outKey); path != "" {
		if err := dataflow.WriteGraphToDotFile(path, ns, opt); err != nil {
			return err
		}
		log.Printf("Graph written to %s", path)
		return nil
	}
	return dataflow.WriteGraphToDot(out, ns, opt)
}

func nodes(cmd *cli.Command, out io.Writer) error {
	g, err := loadGraph(cmd)
	if err != nil {
		return err
	}
	_, ns, err := selectedNodes(cmd, g)
	if err != nil {
		return err
	}

	export := dataflow.ExportGraph(ns, false)
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"id", "name", "type", "deps", "dependents", "valid", "tags", "info"})
	for _, n := range export.Nodes {
		tags := make([]string, len(n.Properties))
		for i, p := range n.Properties {
			tags[i] = p.String()
		}
		name := g.NameOf(n.Node)
		if name == "" {
			name = "-"
		}
		table.Append([]string{
			fmt.Sprint(n.ID),
			name,
			n.Description,
			fmt.Sprint(n.Dependencies),
			fmt.Sprint(n.Dependents),
			fmt.Sprint(n.Valid),
			strings.Join(tags, " "),
			n.DebugInfo,
		})
	}
	table.Render()
	return nil
}
