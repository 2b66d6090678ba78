package extract

import (
	"context"
	"strings"
	"utmbindex-backend/internal/records"
	"utmbindex-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	selIndexStat     = ".performance_stat__hcZM_"
	selDetail        = ".runner-more-details_details_element__3rIxF"
	selDetailTitle   = ".runner-more-details_details_title__RIv1N"
	selDetailContent = ".runner-more-details_details_content__ZiSil"

	// race, category, time, rank, gender rank
	minParticipationCells = 5
)

// RunnerProfile extracts the profile on a runner page. Only the id is guaranteed to be
// set, everything the page lacks is left absent.
func RunnerProfile(ctx context.Context, id string, body []byte) (records.RunnerProfile, error) {
	_, span := tracer.Start(ctx, "RunnerProfile")
	defer span.End()

	doc, err := parseDocument(body)
	if err != nil {
		return records.RunnerProfile{}, err
	}

	profile := records.RunnerProfile{
		ID:          id,
		Name:        records.Text(textutil.NormalizeSpace(doc.Find("h1").First().Text())),
		AgeGroup:    labelled(doc, "Age", "span"),
		Nationality: labelled(doc, "Nationality", "span"),
	}

	// the stats come in the order of records.IndexLabels, a page may show fewer
	stats := doc.Find(selIndexStat)
	for i, label := range records.IndexLabels {
		if i >= stats.Length() {
			break
		}
		value := strings.TrimSpace(stats.Eq(i).Text())
		if value == "" {
			continue
		}
		if profile.Index == nil {
			profile.Index = records.UTMBIndex{}
		}
		profile.Index[label] = records.IndexText(value)
	}

	doc.Find(selDetail).Each(func(_ int, detail *goquery.Selection) {
		title := strings.TrimSpace(detail.Find(selDetailTitle).First().Text())
		content := records.Text(textutil.NormalizeSpace(detail.Find(selDetailContent).First().Text()))
		switch title {
		case "Club":
			profile.Club = content
		case "Sponsor(s)":
			profile.Sponsor = content
		}
	})

	doc.Find(selTableRow).Each(func(_ int, row *goquery.Selection) {
		participation, ok := participationRow(row)
		if ok {
			profile.Races = append(profile.Races, participation)
		}
	})

	return profile, nil
}

func participationRow(row *goquery.Selection) (records.Participation, bool) {
	cells := row.Find(selTableCell)
	if cells.Length() < minParticipationCells {
		return records.Participation{}, false
	}
	href, ok := cells.Eq(0).Find("a[href*='/races/']").First().Attr("href")
	if !ok {
		return records.Participation{}, false
	}
	key, err := records.ParseRaceKey(textutil.LastPathSegment(href))
	if err != nil {
		return records.Participation{}, false
	}
	return records.Participation{
		Race:       key.String(),
		Category:   records.Text(cellText(cells, 1)),
		Time:       records.Text(cellText(cells, 2)),
		Rank:       records.Text(cellText(cells, 3)),
		GenderRank: records.Text(cellText(cells, 4)),
	}, true
}
