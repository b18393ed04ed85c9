// Package dom implements an offline, static HTML driver. Pages are parsed
// with htmlquery and queried with XPath; clicking an element that carries a
// data-href attribute (or an ancestor that does) navigates to that route.
package dom

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/pilot/api/schemas"
)

// ErrNotFound is returned when an action's XPath matches nothing.
var ErrNotFound = errors.New("no element matches")

// Document is a schemas.Driver over static pages. It is safe for concurrent use.
type Document struct {
	mu      sync.Mutex
	logger  *zap.Logger
	routes  map[string]string
	current string
	root    *html.Node
	history []string
	clicks  []string
}

var _ schemas.Driver = (*Document)(nil)

// NewDocument creates an empty document driver; add pages with AddPage or Load.
func NewDocument(logger *zap.Logger) *Document {
	return &Document{logger: logger.Named("dom"), routes: make(map[string]string)}
}

// Parse is a convenience for a single-page document opened at route "index".
func Parse(markup string, logger *zap.Logger) (*Document, error) {
	d := NewDocument(logger)
	d.AddPage("index", markup)
	if err := d.Navigate(context.Background(), "index"); err != nil {
		return nil, err
	}
	return d, nil
}

// AddPage registers markup under route.
func (d *Document) AddPage(route, markup string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[route] = markup
}

// Load registers one page per .html file. A file path registers a single
// page; a directory registers every .html file in it. Routes are file names
// without the extension. It returns the routes added.
func (d *Document) Load(p string) ([]string, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat static pages: %w", err)
	}
	files := []string{p}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(p, "*.html"))
		if err != nil {
			return nil, err
		}
	}

	var routes []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read static page %s: %w", f, err)
		}
		route := strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))
		d.AddPage(route, string(data))
		routes = append(routes, route)
	}
	return routes, nil
}

// Navigate opens route. URLs are matched exactly, then by their last path element.
func (d *Document) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	prev := d.current
	if err := d.open(url); err != nil {
		return err
	}
	if prev != "" {
		d.history = append(d.history, prev)
	}
	return nil
}

// open must be called with mu held.
func (d *Document) open(url string) error {
	route := url
	markup, ok := d.routes[route]
	if !ok {
		route = strings.TrimSuffix(path.Base(url), path.Ext(url))
		markup, ok = d.routes[route]
	}
	if !ok {
		return fmt.Errorf("no static page for %q", url)
	}
	root, err := htmlquery.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse static page %q: %w", route, err)
	}
	d.root, d.current = root, route
	d.logger.Debug("Opened static page", zap.String("route", route))
	return nil
}

// Current returns the route being displayed.
func (d *Document) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// Clicks returns the node paths of every clicked element, in order.
func (d *Document) Clicks() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.clicks...)
}

// Value returns the value attribute of the first node matching xpath.
func (d *Document) Value(xpath string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.first(xpath)
	if err != nil {
		return "", err
	}
	return htmlquery.SelectAttr(n, "value"), nil
}

func (d *Document) Click(ctx context.Context, xpath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.first(xpath)
	if err != nil {
		return err
	}
	d.clicks = append(d.clicks, NodePath(n))

	for el := n; el != nil; el = el.Parent {
		if target := htmlquery.SelectAttr(el, "data-href"); target != "" {
			prev := d.current
			if err := d.open(target); err != nil {
				return err
			}
			d.history = append(d.history, prev)
			return nil
		}
	}
	return nil
}

func (d *Document) Type(ctx context.Context, xpath, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.first(xpath)
	if err != nil {
		return err
	}
	setAttr(n, "value", htmlquery.SelectAttr(n, "value")+text)
	return nil
}

func (d *Document) Clear(ctx context.Context, xpath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.first(xpath)
	if err != nil {
		return err
	}
	setAttr(n, "value", "")
	return nil
}

func (d *Document) Count(ctx context.Context, xpath string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes, err := d.query(xpath)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}

func (d *Document) Texts(ctx context.Context, xpath string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	nodes, err := d.query(xpath)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, renderText(n))
	}
	return out, nil
}

func (d *Document) ScrollIntoView(ctx context.Context, xpath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.first(xpath)
	return err
}

// Screenshot has no pixels to offer; it returns the current markup instead.
func (d *Document) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.root == nil {
		return nil, errors.New("no page open")
	}
	return []byte(htmlquery.OutputHTML(d.root, true)), nil
}

// Reload re-parses the current page, discarding typed values.
func (d *Document) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current == "" {
		return errors.New("no page open")
	}
	return d.open(d.current)
}

func (d *Document) Back(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return errors.New("no previous page")
	}
	prev := d.history[len(d.history)-1]
	d.history = d.history[:len(d.history)-1]
	return d.open(prev)
}

func (d *Document) Close() error { return nil }

// query must be called with mu held.
func (d *Document) query(xpath string) ([]*html.Node, error) {
	if d.root == nil {
		return nil, errors.New("no page open")
	}
	nodes, err := htmlquery.QueryAll(d.root, xpath)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", xpath, err)
	}
	return nodes, nil
}

func (d *Document) first(xpath string) (*html.Node, error) {
	nodes, err := d.query(xpath)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNotFound, xpath)
	}
	return nodes[0], nil
}

// renderText approximates innerText: every text node and input value on its
// own line.
func renderText(n *html.Node) string {
	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if s := strings.TrimSpace(n.Data); s != "" {
				lines = append(lines, strings.Join(strings.Fields(s), " "))
			}
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "input", "textarea":
				if v := htmlquery.SelectAttr(n, "value"); v != "" {
					lines = append(lines, v)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(lines, "\n")
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}
