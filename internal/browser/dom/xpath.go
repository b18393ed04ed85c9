package dom

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// anchorAttrs are attributes stable enough to root a path at, in priority order.
var anchorAttrs = []string{"id", "data-autoid"}

// NodePath builds an XPath that selects exactly node. The walk stops at the
// nearest ancestor carrying an anchor attribute.
func NodePath(node *html.Node) string {
	if node == nil {
		return ""
	}

	var steps []string
	anchored := false
	for n := node; n != nil && n.Type != html.DocumentNode; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		tag := strings.ToLower(n.Data)

		if attr, val := anchorOf(n); attr != "" {
			steps = append(steps, fmt.Sprintf("//*[@%s=%s]", attr, literal(val)))
			anchored = true
			break
		}
		steps = append(steps, fmt.Sprintf("%s[%d]", tag, siblingIndex(n, tag)))
	}
	if len(steps) == 0 {
		return "/"
	}

	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	path := strings.Join(steps, "/")
	if !anchored {
		path = "/" + path
	}
	return path
}

// anchorOf returns the first anchor attribute whose value is unique in the document.
func anchorOf(n *html.Node) (string, string) {
	root := n
	for root.Parent != nil {
		root = root.Parent
	}
	for _, attr := range anchorAttrs {
		val := htmlquery.SelectAttr(n, attr)
		if val == "" {
			continue
		}
		matches, err := htmlquery.QueryAll(root, fmt.Sprintf("//*[@%s=%s]", attr, literal(val)))
		if err == nil && len(matches) == 1 {
			return attr, val
		}
	}
	return "", ""
}

func siblingIndex(n *html.Node, tag string) int {
	index := 1
	for prev := n.PrevSibling; prev != nil; prev = prev.PrevSibling {
		if prev.Type == html.ElementNode && strings.ToLower(prev.Data) == tag {
			index++
		}
	}
	return index
}

func literal(s string) string {
	if strings.Contains(s, "'") {
		return `"` + s + `"`
	}
	return "'" + s + "'"
}
