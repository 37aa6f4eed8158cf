// internal/normalize/features.go
package normalize

import (
	"strings"

	"stayprice/internal/models"
)

// FeatureRow is one normalized training sample. Every column is numeric;
// absent inputs become zero so the trainer never sees nulls.
type FeatureRow struct {
	Name                 string  `json:"name"`
	Price                float64 `json:"price"`
	Currency             string  `json:"currency"`
	DistanceFromDowntown float64 `json:"distance_from_downtown_km"`
	DistanceFromBeach    float64 `json:"distance_from_beach_km"`
	StarRating           float64 `json:"star_rating"`
	GuestRating          float64 `json:"guest_rating"`
	ReviewCount          float64 `json:"review_count"`
	FacilityCount        float64 `json:"facility_count"`
	DescriptionLength    float64 `json:"description_length"`
	HasFreeWifi          float64 `json:"has_free_wifi"`
	HasPool              float64 `json:"has_pool"`
	HasBreakfast         float64 `json:"has_breakfast"`
}

// BuildFeatures joins listings with their detail pages (by name, falling
// back to listing-only rows) and normalizes everything through the price
// and distance parsers. Rows with no recoverable price are dropped: price
// is the regression target.
func BuildFeatures(listings []models.PropertyListing, details []models.PropertyDetails) []FeatureRow {
	detailsByName := make(map[string]*models.PropertyDetails, len(details))
	for i := range details {
		key := strings.ToLower(strings.TrimSpace(details[i].Name))
		if key != "" {
			detailsByName[key] = &details[i]
		}
	}

	rows := make([]FeatureRow, 0, len(listings))
	for _, listing := range listings {
		price := ParsePrice(listing.DiscountedPrice)
		if price.Value == nil {
			price = ParsePrice(listing.OriginalPrice)
		}
		if price.Value == nil {
			continue
		}

		row := FeatureRow{
			Name:     listing.Name,
			Price:    *price.Value,
			Currency: price.Currency,
		}

		if d := ParseDistance(listing.DistanceFromDowntown); d != nil {
			row.DistanceFromDowntown = *d
		}
		if d := ParseDistance(listing.DistanceFromBeach); d != nil {
			row.DistanceFromBeach = *d
		}
		if v := ExtractFloat(listing.StarRating); v != nil {
			row.StarRating = *v
		}
		if v := ExtractFloat(listing.GuestRatingScore); v != nil {
			row.GuestRating = *v
		}
		if v := ExtractFloat(listing.Reviews); v != nil {
			row.ReviewCount = *v
		}

		if detail, ok := detailsByName[strings.ToLower(strings.TrimSpace(listing.Name))]; ok {
			row.FacilityCount = float64(len(detail.Facilities))
			row.DescriptionLength = float64(len(detail.Description))
			row.HasFreeWifi = boolFeature(containsFacility(detail.Facilities, "free wifi"))
			row.HasPool = boolFeature(containsFacility(detail.Facilities, "pool"))
			row.HasBreakfast = boolFeature(containsFacility(detail.Facilities, "breakfast"))
			if row.GuestRating == 0 {
				if v := ExtractFloat(detail.GuestRating); v != nil {
					row.GuestRating = *v
				}
			}
			if row.ReviewCount == 0 {
				if v := ExtractFloat(detail.ReviewCount); v != nil {
					row.ReviewCount = *v
				}
			}
		}

		rows = append(rows, row)
	}
	return rows
}

func containsFacility(facilities []string, keyword string) bool {
	for _, f := range facilities {
		if strings.Contains(strings.ToLower(f), keyword) {
			return true
		}
	}
	return false
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
