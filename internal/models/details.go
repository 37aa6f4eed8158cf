// internal/models/details.go
package models

// PropertyDetails holds the raw fields extracted from a property's own page.
type PropertyDetails struct {
	URL             string   `json:"url"`
	Name            string   `json:"name,omitempty"`
	StarRating      string   `json:"star_rating,omitempty"`
	GuestRating     string   `json:"guest_rating,omitempty"`
	ReviewCount     string   `json:"review_count,omitempty"`
	ReviewScoreText string   `json:"review_score_text,omitempty"`
	Address         string   `json:"address,omitempty"`
	LocationScore   string   `json:"location_score,omitempty"`
	Description     string   `json:"description,omitempty"`
	Facilities      []string `json:"facilities,omitempty"`
	RoomTypes       []string `json:"room_types,omitempty"`
	Price           string   `json:"price,omitempty"`
	CheckInTime     string   `json:"check_in_time,omitempty"`
	CheckOutTime    string   `json:"check_out_time,omitempty"`
}
