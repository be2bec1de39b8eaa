package render

import (
	"bytes"
	_ "embed"
	"html/template"
	"io"

	"github.com/msalah0e/ripple/internal/interact"
)

//go:embed page.html.tmpl
var pageSource string

var page = template.Must(template.New("page").Parse(pageSource))

// Page configures the HTML output.
type Page struct {
	Title   string
	Live    bool   // search box and websocket; a static page only shows its scene
	WSPath  string // live mode endpoint
	Address string // prefilled search field, or the static page's caption
	Zoom    interact.Zoom
}

type pageData struct {
	Title   string
	Live    bool
	WSPath  string
	Address string
	MinZoom float64
	MaxZoom float64
	Scene   *Scene
}

// LivePage returns the settings for the page served by the live server.
func LivePage(zoom interact.Zoom) Page {
	return Page{Title: "ripple", Live: true, WSPath: "/ws", Zoom: zoom}
}

// StaticPage returns the settings for a standalone page around one scene.
func StaticPage(address string, zoom interact.Zoom) Page {
	return Page{Title: "ripple · " + address, Address: address, Zoom: zoom}
}

// WriteHTML renders the page to w. s may be nil for an empty live page.
func WriteHTML(w io.Writer, p Page, s *Scene) error {
	if p.Zoom == (interact.Zoom{}) {
		p.Zoom = interact.DefaultZoom
	}
	if p.Address == "" && s != nil {
		p.Address = s.Hub
	}
	return page.Execute(w, pageData{
		Title:   p.Title,
		Live:    p.Live,
		WSPath:  p.WSPath,
		Address: p.Address,
		MinZoom: p.Zoom.Min,
		MaxZoom: p.Zoom.Max,
		Scene:   s,
	})
}

// HTML renders the page into a byte slice.
func HTML(p Page, s *Scene) ([]byte, error) {
	var b bytes.Buffer
	if err := WriteHTML(&b, p, s); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}
