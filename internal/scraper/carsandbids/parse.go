// Package carsandbids scrapes auction listings and detail pages from carsandbids.com.
package carsandbids

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
)

// Selectors the browser waits on before the HTML is read.
const (
	listingReadySelector = "ul.auctions-list, div.no-results"
	detailReadySelector  = "div.auction-title"
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9]+`)
	whitespace = regexp.MustCompile(`\s+`)
	digits     = regexp.MustCompile(`[0-9][0-9,]*`)
)

// ParseListing extracts auction links from a rendered listing page in
// document order. Relative links are resolved against base.
func ParseListing(html string, base *url.URL) ([]auction.Identifier, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}
	var ids []auction.Identifier
	doc.Find("ul.auctions-list li.auction-item").Each(func(_ int, item *goquery.Selection) {
		href, ok := item.Find(`a[href*="/auctions/"]`).First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		ids = append(ids, auction.Identifier(base.ResolveReference(ref).String()))
	})
	return ids, nil
}

// ParseDetail extracts a record from a rendered auction detail page.
func ParseDetail(html string, id auction.Identifier) (auction.Record, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse detail html: %w", err)
	}
	title := cleanText(doc.Find("div.auction-title h1").First().Text())
	if title == "" {
		return nil, auction.ErrEmptyPage
	}

	record := auction.Record{
		auction.FieldURL: id.String(),
		"title":          title,
	}
	if subtitle := cleanText(doc.Find("div.auction-subtitle").First().Text()); subtitle != "" {
		record["subtitle"] = subtitle
	}
	record["no_reserve"] = doc.Find("div.auction-title .no-reserve").Length() > 0

	doc.Find("div.quick-facts dl dt").Each(func(_ int, dt *goquery.Selection) {
		key := fieldName(dt.Text())
		if key == "" {
			return
		}
		value := cleanText(dt.NextFiltered("dd").Text())
		if value == "" {
			return
		}
		if key == "mileage" {
			if n, ok := parseAmount(value); ok {
				record[key] = n
				return
			}
		}
		record[key] = value
	})

	parseOutcome(doc, record)

	if n, ok := parseAmount(doc.Find(".bid-stats .num-bids .value").First().Text()); ok {
		record["bid_count"] = n
	}
	if n, ok := parseAmount(doc.Find(".bid-stats .num-comments .value").First().Text()); ok {
		record["comment_count"] = n
	}
	if ended := doc.Find(".auction-ends time").First(); ended.Length() > 0 {
		if stamp, ok := ended.Attr("datetime"); ok && stamp != "" {
			record["end_date"] = stamp
		} else if text := cleanText(ended.Text()); text != "" {
			record["end_date"] = text
		}
	}
	return record, nil
}

// parseOutcome fills status plus sold_price or high_bid from the bid bar.
func parseOutcome(doc *goquery.Document, record auction.Record) {
	bar := doc.Find(".current-bid").First()
	if bar.Length() == 0 {
		return
	}
	status := strings.ToLower(cleanText(bar.Find(".status").First().Text()))
	amount, hasAmount := parseAmount(bar.Find(".bid-value").First().Text())
	switch {
	case strings.Contains(status, "sold"):
		record["status"] = "sold"
		if hasAmount {
			record["sold_price"] = amount
		}
	case strings.Contains(status, "bid to"):
		record["status"] = "reserve_not_met"
		if hasAmount {
			record["high_bid"] = amount
		}
	default:
		if status != "" {
			record["status"] = fieldName(status)
		}
		if hasAmount {
			record["high_bid"] = amount
		}
	}
}

// fieldName turns a label such as "Title Status" into "title_status".
func fieldName(label string) string {
	name := nonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "_")
	return strings.Trim(name, "_")
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// parseAmount reads the first number in s, ignoring "$" and thousands separators.
func parseAmount(s string) (int64, bool) {
	match := digits.FindString(s)
	if match == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
