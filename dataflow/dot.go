package dataflow

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// DotOptions control the DOT output of WriteGraphToDot.
type DotOptions uint8

const (
	DetailedNodeInfo DotOptions = 1 << iota
	FollowUpwardLinks
	ShowDependencyIndex

	DotNone DotOptions = 0
)

func (o DotOptions) Has(flag DotOptions) bool {
	return o&flag != 0
}

// WriteGraphToDot writes the graph reachable from nodes in graphviz format.
func WriteGraphToDot(w io.Writer, nodes []Node, opt DotOptions) error {
	g := ExportGraph(nodes, opt.Has(FollowUpwardLinks))
	ew := &errWriter{w: w}
	writedotGraph(ew, g, opt)
	if ew.err != nil {
		return fmt.Errorf("writing dot graph: %w", ew.err)
	}
	return nil
}

// errWriter keeps the first write error, which the template writer drops.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.err = err
	return n, err
}

// WriteGraphToDotFile is WriteGraphToDot to a file created at filename.
func WriteGraphToDotFile(filename string, nodes []Node, opt DotOptions) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("creating dot file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing dot file: %w", cerr)
		}
	}()
	return WriteGraphToDot(f, nodes, opt)
}

func dotNodeLabel(n NodeInfo, opt DotOptions) string {
	var sb strings.Builder
	sb.WriteString(n.Description)
	if !opt.Has(DetailedNodeInfo) {
		return sb.String()
	}
	fmt.Fprintf(&sb, "\n#%d", n.ID)
	if n.Valid {
		sb.WriteString(" valid")
	} else {
		sb.WriteString(" invalid")
	}
	if len(n.Properties) > 0 {
		names := make([]string, len(n.Properties))
		for i, p := range n.Properties {
			names[i] = p.String()
		}
		fmt.Fprintf(&sb, "\n[%s]", strings.Join(names, " "))
	}
	if n.DebugInfo != "" {
		sb.WriteString("\n")
		sb.WriteString(n.DebugInfo)
	}
	return sb.String()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func dotQuote(s string) string {
	return `"` + dotEscaper.Replace(s) + `"`
}
