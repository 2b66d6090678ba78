package extract

import (
	"context"
	"strconv"
	"strings"
	"utmbindex-backend/lib/htmlutil"
	"utmbindex-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/net/html"
)

// IDPage is one page of the runner search listing.
type IDPage struct {
	IDs []string
	// HasNext is false on the last page, where the "next" link is missing or disabled.
	HasNext bool
	// MaxPage is the highest page number linked from the pagination bar, 0 if none is.
	MaxPage int
}

func RunnerIDPage(ctx context.Context, body []byte) (IDPage, error) {
	ctx, span := tracer.Start(ctx, "RunnerIDPage")
	defer span.End()

	doc, err := parseDocument(body)
	if err != nil {
		return IDPage{}, err
	}

	// only the first runner link of a row names the row's runner
	var links []*html.Node
	doc.Find(selTableRow).Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a[href*='/en/runner/']").First()
		if link.Length() > 0 {
			links = append(links, link.Nodes[0])
		}
	})

	page := IDPage{}
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.FindNodes(links...)) {
		id := textutil.LastPathSegment(anchor.Href)
		if id != "" {
			page.IDs = append(page.IDs, id)
		}
	}

	next := doc.Find("a[rel='next']").First()
	if next.Length() > 0 {
		disabled, _ := next.Attr("aria-disabled")
		page.HasNext = disabled != "true"
	}

	doc.Find(".pagination_paginate_link__c9A6i").Each(func(_ int, link *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(link.Text()))
		if err == nil && n > page.MaxPage {
			page.MaxPage = n
		}
	})

	span.SetAttributes(
		attribute.Int("ids", len(page.IDs)),
		attribute.Bool("has_next", page.HasNext),
	)
	return page, nil
}
