// Package similarity decides whether two location mentions describe the same
// physical place. Two mentions match when they are geographically close and
// their names are similar enough.
package similarity

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/openagenda-tools/uniqloc/pkg/constants"
	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/locations"
)

// EarthRadiusMeters is the mean earth radius used for great-circle distances.
const EarthRadiusMeters = 6371008.8

// Config holds the matching thresholds.
type Config struct {
	// GeoDistanceThreshold is the maximum distance in meters.
	GeoDistanceThreshold float64 `mapstructure:"geo_distance_threshold" yaml:"geo_distance_threshold" json:"geo_distance_threshold"`
	// PercentSimilarThreshold is the minimum name similarity, 0 to 100.
	PercentSimilarThreshold float64 `mapstructure:"percent_similar_threshold" yaml:"percent_similar_threshold" json:"percent_similar_threshold"`
}

// DefaultConfig returns the default thresholds (100 m, 70%).
func DefaultConfig() Config {
	return Config{
		GeoDistanceThreshold:    constants.DefaultGeoDistanceThreshold,
		PercentSimilarThreshold: constants.DefaultPercentSimilarThreshold,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if math.IsNaN(c.GeoDistanceThreshold) || math.IsInf(c.GeoDistanceThreshold, 0) || c.GeoDistanceThreshold < 0 {
		return errors.NewValidationError("geo_distance_threshold", c.GeoDistanceThreshold, "must be a finite non-negative number of meters")
	}
	if math.IsNaN(c.PercentSimilarThreshold) || c.PercentSimilarThreshold < 0 || c.PercentSimilarThreshold > 100 {
		return errors.NewValidationError("percent_similar_threshold", c.PercentSimilarThreshold, "must be between 0 and 100")
	}
	return nil
}

// Comparator implements the location matching rule. It is immutable and safe
// for concurrent use.
type Comparator struct {
	cfg Config
}

// New creates a Comparator after validating cfg.
func New(cfg Config) (*Comparator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Comparator{cfg: cfg}, nil
}

// Config returns the thresholds in use.
func (c *Comparator) Config() Config {
	return c.cfg
}

// IsSameLocation reports whether a and b are close and similarly named.
// Mentions missing a name or usable coordinates never match.
func (c *Comparator) IsSameLocation(a, b locations.Mention) bool {
	if !hasCoordinates(a) || !hasCoordinates(b) {
		return false
	}
	nameA, nameB := c.normalize(a.Name), c.normalize(b.Name)
	if nameA == "" || nameB == "" {
		return false
	}
	if Distance(*a.Latitude, *a.Longitude, *b.Latitude, *b.Longitude) > c.cfg.GeoDistanceThreshold {
		return false
	}
	return score(nameA, nameB) >= c.cfg.PercentSimilarThreshold
}

// NameSimilarity returns the percent similarity of two names after normalization.
func (c *Comparator) NameSimilarity(a, b string) float64 {
	return score(c.normalize(a), c.normalize(b))
}

// normalize applies NFC, trims surrounding space and case-folds.
func (c *Comparator) normalize(name string) string {
	// a Caser is stateful and must not be shared between goroutines
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(name)))
}

func score(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 100
	}
	dist := levenshtein.ComputeDistance(a, b)
	return (1 - float64(dist)/float64(longest)) * 100
}

// Distance returns the haversine distance in meters between two points
// given in decimal degrees.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	const rad = math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	a := sinLat*sinLat + math.Cos(lat1*rad)*math.Cos(lat2*rad)*sinLon*sinLon
	return 2 * EarthRadiusMeters * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func hasCoordinates(m locations.Mention) bool {
	if m.Latitude == nil || m.Longitude == nil {
		return false
	}
	lat, lon := *m.Latitude, *m.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
