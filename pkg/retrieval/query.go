package retrieval

import (
	"strconv"
	"strings"
	"time"

	"github.com/roverlens/marsphotos/pkg/storage"
)

// earthDateLayout is the canonical form; earthDateInput also accepts
// unpadded months and days.
const (
	earthDateLayout = "2006-01-02"
	earthDateInput  = "2006-1-2"
)

// RawQuery is a search as the user typed it.
type RawQuery struct {
	Rover     string
	Sol       string
	EarthDate string
	Camera    string
	Page      string
}

// Query is a normalized search. Exactly one of Sol and EarthDate is set.
type Query struct {
	Rover     string
	Sol       *int
	EarthDate string
	Camera    string
	Page      int
}

// Normalize validates raw and converts it to the canonical shape used both as
// the cache key and as the origin request. When both sol and earth_date are
// given, sol wins.
func Normalize(raw RawQuery) (Query, error) {
	q := Query{
		Rover:  strings.ToLower(strings.TrimSpace(raw.Rover)),
		Camera: strings.ToUpper(strings.TrimSpace(raw.Camera)),
		Page:   parsePage(raw.Page),
	}
	if q.Rover == "" {
		return Query{}, ValidationError("rover required")
	}

	sol := strings.TrimSpace(raw.Sol)
	earthDate := strings.TrimSpace(raw.EarthDate)
	switch {
	case sol != "":
		n, err := strconv.Atoi(sol)
		if err != nil || n < 0 {
			return Query{}, ValidationError("sol must be a non-negative integer")
		}
		q.Sol = &n
	case earthDate != "":
		d, err := time.Parse(earthDateInput, earthDate)
		if err != nil {
			return Query{}, ValidationError("earth_date must be formatted as YYYY-MM-DD")
		}
		q.EarthDate = d.Format(earthDateLayout)
	default:
		return Query{}, ValidationError("missionDay or earthDate required")
	}
	return q, nil
}

// parsePage falls back to the first page for anything that is not a positive integer.
func parsePage(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Filter is the cache lookup for q. It carries every normalized field.
func (q Query) Filter() storage.Filter {
	return storage.Filter{
		Rover:     q.Rover,
		Sol:       q.Sol,
		EarthDate: q.EarthDate,
		Camera:    q.Camera,
		Page:      q.Page,
	}
}
