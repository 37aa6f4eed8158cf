// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ListingSelectors are the CSS selectors that carve one result card into
// raw listing fields. Empty selectors leave the field blank.
type ListingSelectors struct {
	Card                 string `json:"card"`
	Name                 string `json:"name"`
	Link                 string `json:"link"`
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

// DetailSelectors carve a property detail page.
type DetailSelectors struct {
	Name            string `json:"name"`
	StarRating      string `json:"star_rating,omitempty"`
	GuestRating     string `json:"guest_rating,omitempty"`
	ReviewCount     string `json:"review_count,omitempty"`
	ReviewScoreText string `json:"review_score_text,omitempty"`
	Address         string `json:"address,omitempty"`
	LocationScore   string `json:"location_score,omitempty"`
	Description     string `json:"description,omitempty"`
	Facility        string `json:"facility,omitempty"`
	RoomType        string `json:"room_type,omitempty"`
	Price           string `json:"price,omitempty"`
	CheckInTime     string `json:"check_in_time,omitempty"`
	CheckOutTime    string `json:"check_out_time,omitempty"`
}

// SiteProfile describes how to scrape one booking site: where to search
// and how to read the markup. SearchURL carries {destination}, {adults}
// and {rooms} placeholders.
type SiteProfile struct {
	Name      string           `json:"name"`
	SearchURL string           `json:"search_url"`
	Listing   ListingSelectors `json:"listing"`
	Detail    DetailSelectors  `json:"detail"`
}

// BuildSearchURL substitutes the query placeholders into the profile's
// search URL.
func (p SiteProfile) BuildSearchURL(destination string, adults, rooms int) string {
	r := strings.NewReplacer(
		"{destination}", destination,
		"{adults}", fmt.Sprintf("%d", adults),
		"{rooms}", fmt.Sprintf("%d", rooms),
	)
	return r.Replace(p.SearchURL)
}

// Registry holds the loaded site profiles, keyed by name.
type Registry struct {
	profiles map[string]SiteProfile
}

const profileSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "array",
	"items": {
		"type": "object",
		"required": ["name", "search_url", "listing", "detail"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"search_url": {"type": "string", "minLength": 1},
			"listing": {
				"type": "object",
				"required": ["card", "name", "link"],
				"properties": {
					"card": {"type": "string", "minLength": 1},
					"name": {"type": "string", "minLength": 1},
					"link": {"type": "string", "minLength": 1}
				}
			},
			"detail": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1}
				}
			}
		}
	}
}`

// Load reads a profile file, validates it against the profile schema and
// returns the registry. A file that fails validation is rejected whole.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site profiles: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes raw profile JSON.
func Parse(data []byte) (*Registry, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(profileSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validate site profiles: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("invalid site profiles: %s", strings.Join(msgs, "; "))
	}

	var profiles []SiteProfile
	if err := json.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("decode site profiles: %w", err)
	}

	reg := &Registry{profiles: make(map[string]SiteProfile, len(profiles))}
	for _, p := range profiles {
		if _, exists := reg.profiles[p.Name]; exists {
			return nil, fmt.Errorf("duplicate site profile %q", p.Name)
		}
		reg.profiles[p.Name] = p
	}
	return reg, nil
}

// Get returns the profile for a site name.
func (r *Registry) Get(name string) (SiteProfile, error) {
	p, ok := r.profiles[name]
	if !ok {
		return SiteProfile{}, fmt.Errorf("unknown site profile %q (have: %s)", name, strings.Join(r.Names(), ", "))
	}
	return p, nil
}

// Names lists the registered profile names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
