package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// JSONFromScript scans the page's <script> elements for the first one
// containing key and decodes the object literal that follows it. Shops
// commonly embed their product state this way.
func JSONFromScript(content []byte, key string) (json.RawMessage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var raw json.RawMessage
	doc.Find("script").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := sel.Text()
		obj := TextBetween(text, key, "{", "};")
		if obj == "" {
			return true
		}
		raw = json.RawMessage(obj)
		return false
	})
	if raw == nil {
		return nil, fmt.Errorf("script data container %q not found", key)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("script data after %q is not valid json", key)
	}
	return raw, nil
}

// TextBetween cuts the text between the first open marker after key and
// the following close marker, keeping the braces themselves. Returns ""
// when the markers are not found.
func TextBetween(text, key, open, close string) string {
	idx := strings.Index(text, key)
	if idx == -1 {
		return ""
	}
	text = text[idx+len(key):]
	idxOpen := strings.Index(text, open)
	if idxOpen == -1 {
		return ""
	}
	after := idxOpen + len(open)
	idxClose := strings.Index(text[after:], close)
	if idxClose == -1 {
		return ""
	}
	return text[idxOpen : after+idxClose+1]
}
