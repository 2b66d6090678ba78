// Package extract turns UTMB Index pages into records. Selectors follow the site's
// generated class names and are expected to drift, so every extractor treats a missing
// element as an absent field rather than an error.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("utmbindex.internal.extract")

const (
	selTableRow  = "div.my-table_row__nlm_j"
	selTableCell = "div.my-table_cell__z__zN"
)

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

func cellText(cells *goquery.Selection, i int) string {
	return strings.TrimSpace(cells.Eq(i).Text())
}
