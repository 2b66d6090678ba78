package textutil

import (
	"regexp"
	"strings"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeSpace trims s and collapses inner whitespace to single spaces.
func NormalizeSpace(s string) string {
	return whitespaceRegex.ReplaceAllString(strings.TrimSpace(s), " ")
}

// NormalizeName lowercases a name and collapses its whitespace to single spaces, for
// comparing runner names typed by people against scraped ones.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.TrimSpace(name)
	name = whitespaceRegex.ReplaceAllString(name, " ")
	return name
}

// LastPathSegment returns what follows the final '/' of a link, ignoring any query or
// fragment: "/en/runner/1234.jane.doe?x=1" -> "1234.jane.doe".
func LastPathSegment(link string) string {
	if i := strings.IndexAny(link, "?#"); i >= 0 {
		link = link[:i]
	}
	link = strings.TrimRight(link, "/")
	if i := strings.LastIndex(link, "/"); i >= 0 {
		return link[i+1:]
	}
	return link
}

// LastField returns the last whitespace separated field of s, or "" if there is none.
func LastField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
