// internal/models/listing.go
package models

// PropertyListing holds the raw text fields extracted from a single result
// card. Everything is kept as scraped; the normalize package turns these
// into numeric features.
type PropertyListing struct {
	Name                 string `json:"name"`
	HotelLink            string `json:"hotel_link,omitempty"`
	Address              string `json:"address,omitempty"`
	StarRating           string `json:"star_rating,omitempty"`
	GuestRatingScore     string `json:"guest_rating_score,omitempty"`
	Reviews              string `json:"reviews,omitempty"`
	DistanceFromDowntown string `json:"distance_from_downtown,omitempty"`
	DistanceFromBeach    string `json:"distance_from_beach,omitempty"`
	RoomType             string `json:"room_type,omitempty"`
	BedDetails           string `json:"bed_details,omitempty"`
	CancellationPolicy   string `json:"cancellation_policy,omitempty"`
	OriginalPrice        string `json:"original_price,omitempty"`
	DiscountedPrice      string `json:"discounted_price,omitempty"`
	TaxesAndFees         string `json:"taxes_and_fees,omitempty"`
}
