// internal/scrape/htmlfetcher.go
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	commonerrors "stayprice/internal/common/errors"
	commonhttp "stayprice/internal/common/http"
	"stayprice/internal/common/logger"
	"stayprice/internal/models"
	"stayprice/pkg/registry"

	"github.com/PuerkitoBio/goquery"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// HTMLFetcher is a PageFetcher over plain HTTP and a site profile's CSS
// selectors.
type HTMLFetcher struct {
	client  *commonhttp.Client
	profile registry.SiteProfile
	logger  logger.Logger
}

// NewHTMLFetcher creates a fetcher for one site profile.
func NewHTMLFetcher(client *commonhttp.Client, profile registry.SiteProfile, log logger.Logger) *HTMLFetcher {
	return &HTMLFetcher{
		client:  client,
		profile: profile,
		logger:  log.WithFields(map[string]interface{}{"component": "html-fetcher", "site": profile.Name}),
	}
}

// SearchListings runs a destination search and parses every result card on
// the page. Cards without a name are skipped; every other field is best
// effort.
func (f *HTMLFetcher) SearchListings(ctx context.Context, query models.SearchQuery) ([]models.PropertyListing, error) {
	searchURL := f.profile.BuildSearchURL(url.QueryEscape(query.Destination), query.Adults, query.Rooms)

	doc, err := f.getDocument(ctx, searchURL)
	if err != nil {
		return nil, err
	}

	sel := f.profile.Listing
	var listings []models.PropertyListing
	doc.Find(sel.Card).Each(func(_ int, card *goquery.Selection) {
		name := text(card, sel.Name)
		if name == "" {
			return
		}
		listings = append(listings, models.PropertyListing{
			Name:                 name,
			HotelLink:            f.resolveLink(searchURL, attr(card, sel.Link, "href")),
			Address:              text(card, sel.Address),
			StarRating:           attrOrText(card, sel.StarRating, "aria-label"),
			GuestRatingScore:     text(card, sel.GuestRatingScore),
			Reviews:              text(card, sel.Reviews),
			DistanceFromDowntown: text(card, sel.DistanceFromDowntown),
			DistanceFromBeach:    text(card, sel.DistanceFromBeach),
			RoomType:             text(card, sel.RoomType),
			BedDetails:           text(card, sel.BedDetails),
			CancellationPolicy:   text(card, sel.CancellationPolicy),
			OriginalPrice:        text(card, sel.OriginalPrice),
			DiscountedPrice:      text(card, sel.DiscountedPrice),
			TaxesAndFees:         text(card, sel.TaxesAndFees),
		})
	})

	f.logger.Info("parsed search results", map[string]interface{}{
		"destination": query.Destination,
		"listings":    len(listings),
	})
	return listings, nil
}

// FetchDetails retrieves and parses one property detail page.
func (f *HTMLFetcher) FetchDetails(ctx context.Context, pageURL string) (*models.PropertyDetails, error) {
	doc, err := f.getDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	sel := f.profile.Detail
	root := doc.Selection

	details := &models.PropertyDetails{
		URL:             pageURL,
		Name:            text(root, sel.Name),
		StarRating:      attrOrText(root, sel.StarRating, "aria-label"),
		GuestRating:     text(root, sel.GuestRating),
		ReviewCount:     text(root, sel.ReviewCount),
		ReviewScoreText: text(root, sel.ReviewScoreText),
		Address:         text(root, sel.Address),
		LocationScore:   text(root, sel.LocationScore),
		Description:     text(root, sel.Description),
		Price:           text(root, sel.Price),
		CheckInTime:     text(root, sel.CheckInTime),
		CheckOutTime:    text(root, sel.CheckOutTime),
	}

	if sel.Facility != "" {
		root.Find(sel.Facility).Each(func(_ int, s *goquery.Selection) {
			if v := strings.TrimSpace(s.Text()); v != "" {
				details.Facilities = append(details.Facilities, v)
			}
		})
	}
	if sel.RoomType != "" {
		root.Find(sel.RoomType).Each(func(_ int, s *goquery.Selection) {
			if v := strings.TrimSpace(s.Text()); v != "" {
				details.RoomTypes = append(details.RoomTypes, v)
			}
		})
	}

	if details.Name == "" {
		return nil, commonerrors.NewFetchFailedError(pageURL, fmt.Errorf("detail page has no recognizable property name"))
	}
	return details, nil
}

func (f *HTMLFetcher) getDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequest(http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, commonerrors.NewFetchFailedError(pageURL, err)
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.DoWithContext(ctx, req)
	if err != nil {
		return nil, commonerrors.NewFetchFailedError(pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, commonerrors.NewFetchFailedError(pageURL, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, commonerrors.NewFetchFailedError(pageURL, err)
	}
	return doc, nil
}

func (f *HTMLFetcher) resolveLink(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

func attr(s *goquery.Selection, selector, name string) string {
	if selector == "" {
		return ""
	}
	v, _ := s.Find(selector).First().Attr(name)
	return strings.TrimSpace(v)
}

// attrOrText prefers the attribute (star ratings often live in aria-label)
// and falls back to the element text.
func attrOrText(s *goquery.Selection, selector, name string) string {
	if v := attr(s, selector, name); v != "" {
		return v
	}
	return text(s, selector)
}
