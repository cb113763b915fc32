package parser

import "golang.org/x/net/html"

// directText returns the first text node that is a direct child of n.
func directText(n *html.Node) (string, bool) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			return c.Data, true
		}
	}
	return "", false
}

// attr looks up an attribute on n, distinguishing absent from empty.
func attr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// textNodes appends every text node below n to out in document order.
func textNodes(n *html.Node, out []string) []string {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			out = append(out, c.Data)
			continue
		}
		out = textNodes(c, out)
	}
	return out
}
