package extract

import (
	"context"
	"strconv"
	"utmbindex-backend/internal/records"
	"utmbindex-backend/lib/htmlutil"
	"utmbindex-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
)

// a result row has rank, time, runner, nationality, (club) and category cells
const minResultCells = 6

// Race extracts the meta fields and results of a race page. Whether the race is worth
// keeping is up to the caller (see records.Race.Complete).
func Race(ctx context.Context, body []byte) (records.Race, error) {
	_, span := tracer.Start(ctx, "Race")
	defer span.End()

	doc, err := parseDocument(body)
	if err != nil {
		return records.Race{}, err
	}

	race := records.Race{
		Location:      labelled(doc, "City / Country", "p"),
		Date:          labelled(doc, "Date", "span"),
		Distance:      labelled(doc, "Distance", "span"),
		ElevationGain: labelled(doc, "Elevation Gain", "span"),
	}

	doc.Find(selTableRow).Each(func(_ int, row *goquery.Selection) {
		result, ok := raceResult(row)
		if ok {
			race.Results = append(race.Results, result)
		}
	})
	return race, nil
}

func labelled(doc *goquery.Document, label, valueTag string) records.Optional[string] {
	value, ok := htmlutil.LabelledValue(doc, "p", label, valueTag)
	if !ok {
		return records.None[string]()
	}
	return records.Text(value)
}

func raceResult(row *goquery.Selection) (records.Result, bool) {
	cells := row.Find(selTableCell)
	if cells.Length() < minResultCells {
		return records.Result{}, false
	}

	rank := cellText(cells, 0)
	runner := cells.Eq(2).Find("a").First()
	name := cellText(cells, 2)
	runnerID := records.None[string]()
	if runner.Length() > 0 {
		name = textutil.NormalizeSpace(runner.Text())
		href, _ := runner.Attr("href")
		runnerID = records.Text(textutil.LastPathSegment(href))
	}
	nationality := records.Text(textutil.LastField(cellText(cells, 3)))
	age := records.Text(cellText(cells, 5))

	if rank == string(records.StatusDNF) {
		return records.Result{
			Status:      records.StatusDNF,
			Name:        name,
			Nationality: nationality,
			AgeCategory: age,
		}, true
	}

	position, err := strconv.Atoi(rank)
	if err != nil || position < 1 {
		// header rows and statuses other than DNF
		return records.Result{}, false
	}
	return records.Result{
		Rank:        position,
		Time:        records.Text(cellText(cells, 1)),
		Name:        name,
		RunnerID:    runnerID,
		Nationality: nationality,
		AgeCategory: age,
	}, true
}
