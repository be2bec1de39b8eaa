package render

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// Background is the canvas color behind the graph. Labels are white.
const Background = "#1e1e1e"

// SVG draws the scene as a standalone SVG document. All elements sit in one
// transform group: links first, then nodes, then labels.
func SVG(s *Scene) []byte {
	var b bytes.Buffer
	w, h := s.Viewport.Width, s.Viewport.Height

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%g" height="%g" viewBox="0 0 %g %g">`+"\n", w, h, w, h)
	fmt.Fprintf(&b, `  <rect width="100%%" height="100%%" fill="%s"/>`+"\n", Background)
	fmt.Fprintf(&b, `  <g transform="%s">`+"\n", s.Transform)

	b.WriteString(`    <g class="links">` + "\n")
	for _, l := range s.Links {
		src, dst := s.Nodes[l.Source], s.Nodes[l.Target]
		fmt.Fprintf(&b, `      <line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="%.3f"/>`+"\n",
			src.X, src.Y, dst.X, dst.Y, s.Stroke, l.Width)
	}
	b.WriteString("    </g>\n")

	b.WriteString(`    <g class="nodes">` + "\n")
	for _, n := range s.Nodes {
		fmt.Fprintf(&b, `      <circle cx="%.2f" cy="%.2f" r="%g" fill="%s"><title>`, n.X, n.Y, n.Style.Radius, n.Style.Fill)
		escape(&b, n.ID+" ("+n.InteractionFrequency.String()+")")
		b.WriteString("</title></circle>\n")
	}
	b.WriteString("    </g>\n")

	b.WriteString(`    <g class="labels">` + "\n")
	for _, n := range s.Nodes {
		fmt.Fprintf(&b, `      <text x="%.2f" y="%.2f" dx="%d" dy="%s" font-size="%s" fill="%s">`,
			n.X, n.Y, LabelDX, LabelDY, LabelFontSize, LabelFill)
		escape(&b, n.ID)
		b.WriteString("</text>\n")
	}
	b.WriteString("    </g>\n")

	b.WriteString("  </g>\n</svg>\n")
	return b.Bytes()
}

func escape(b *bytes.Buffer, s string) {
	_ = xml.EscapeText(b, []byte(s))
}
