package format

import (
	"fmt"
	"strings"
)

// Generate renders the sink calls performed by e.Encode as Go statements, one per line, e.g.
// "sink.Put1(0x48)".
func Generate(e Encodable) string {
	var g generatingSink
	e.Encode(&g)
	return strings.Join(g.stmts, "\n")
}

// GenerateFunc renders a Go function named name which encodes e to its ByteSink argument.
func GenerateFunc(name string, e Encodable) string {
	var g generatingSink
	e.Encode(&g)

	var sb strings.Builder
	fmt.Fprintf(&sb, "func %s(sink format.ByteSink) {\n", name)
	for _, stmt := range g.stmts {
		sb.WriteByte('\t')
		sb.WriteString(stmt)
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

// generatingSink implements ByteSink by recording the calls as Go source.
type generatingSink struct {
	stmts []string
}

func (g *generatingSink) Put1(v uint8) {
	g.stmts = append(g.stmts, fmt.Sprintf("sink.Put1(0x%02x)", v))
}

func (g *generatingSink) Put2(v uint16) {
	g.stmts = append(g.stmts, fmt.Sprintf("sink.Put2(0x%04x)", v))
}

func (g *generatingSink) Put4(v uint32) {
	g.stmts = append(g.stmts, fmt.Sprintf("sink.Put4(0x%08x)", v))
}
