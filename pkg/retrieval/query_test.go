package retrieval

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name      string
		raw       RawQuery
		want      Query
		wantError string
	}{
		{
			name: "sol",
			raw:  RawQuery{Rover: "curiosity", Sol: "1000"},
			want: Query{Rover: "curiosity", Sol: intp(1000), Page: 1},
		},
		{
			name: "sol zero is valid",
			raw:  RawQuery{Rover: "spirit", Sol: "0"},
			want: Query{Rover: "spirit", Sol: intp(0), Page: 1},
		},
		{
			name: "sol beyond int32",
			raw:  RawQuery{Rover: "curiosity", Sol: "3000000000"},
			want: Query{Rover: "curiosity", Sol: intp(3000000000), Page: 1},
		},
		{
			name: "unpadded earth date canonicalized",
			raw:  RawQuery{Rover: "opportunity", EarthDate: "2015-6-3"},
			want: Query{Rover: "opportunity", EarthDate: "2015-06-03", Page: 1},
		},
		{
			name: "partly padded earth date canonicalized",
			raw:  RawQuery{Rover: "opportunity", EarthDate: "2015-06-3"},
			want: Query{Rover: "opportunity", EarthDate: "2015-06-03", Page: 1},
		},
		{
			name: "earth date",
			raw:  RawQuery{Rover: "opportunity", EarthDate: "2015-06-03", Page: "2"},
			want: Query{Rover: "opportunity", EarthDate: "2015-06-03", Page: 2},
		},
		{
			name: "sol wins over earth date",
			raw:  RawQuery{Rover: "curiosity", Sol: "12", EarthDate: "2015-06-03"},
			want: Query{Rover: "curiosity", Sol: intp(12), Page: 1},
		},
		{
			name: "camera upper-cased",
			raw:  RawQuery{Rover: "curiosity", Sol: "1000", Camera: "fhaz"},
			want: Query{Rover: "curiosity", Sol: intp(1000), Camera: "FHAZ", Page: 1},
		},
		{
			name: "unknown camera passes through",
			raw:  RawQuery{Rover: "perseverance", Sol: "10", Camera: "skycam_v2"},
			want: Query{Rover: "perseverance", Sol: intp(10), Camera: "SKYCAM_V2", Page: 1},
		},
		{
			name: "rover trimmed and lower-cased",
			raw:  RawQuery{Rover: "  Curiosity ", Sol: " 7 "},
			want: Query{Rover: "curiosity", Sol: intp(7), Page: 1},
		},
		{
			name: "bad page falls back to one",
			raw:  RawQuery{Rover: "curiosity", Sol: "1", Page: "abc"},
			want: Query{Rover: "curiosity", Sol: intp(1), Page: 1},
		},
		{
			name: "negative page falls back to one",
			raw:  RawQuery{Rover: "curiosity", Sol: "1", Page: "-3"},
			want: Query{Rover: "curiosity", Sol: intp(1), Page: 1},
		},
		{
			name:      "missing rover",
			raw:       RawQuery{Sol: "1000"},
			wantError: "rover required",
		},
		{
			name:      "blank rover",
			raw:       RawQuery{Rover: "   ", Sol: "1000"},
			wantError: "rover required",
		},
		{
			name:      "missing sol and earth date",
			raw:       RawQuery{Rover: "curiosity"},
			wantError: "missionDay or earthDate required",
		},
		{
			name:      "non-numeric sol",
			raw:       RawQuery{Rover: "curiosity", Sol: "ten"},
			wantError: "sol must be a non-negative integer",
		},
		{
			name:      "negative sol",
			raw:       RawQuery{Rover: "curiosity", Sol: "-1"},
			wantError: "sol must be a non-negative integer",
		},
		{
			name:      "malformed earth date",
			raw:       RawQuery{Rover: "curiosity", EarthDate: "06/03/2015"},
			wantError: "earth_date must be formatted as YYYY-MM-DD",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.raw)
			if tt.wantError != "" {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				if !IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				if Message(err) != tt.wantError {
					t.Fatalf("got message %q want %q", Message(err), tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if !equalQuery(got, tt.want) {
				t.Fatalf("got %s want %s", describe(got), describe(tt.want))
			}
		})
	}
}

// Every accepted query carries exactly one addressing field.
func TestNormalizeSetsExactlyOneAddress(t *testing.T) {
	raws := []RawQuery{
		{Rover: "curiosity", Sol: "1"},
		{Rover: "curiosity", EarthDate: "2020-02-29"},
		{Rover: "curiosity", Sol: "1", EarthDate: "2020-02-29"},
		{Rover: "curiosity", Sol: "", EarthDate: "2020-02-29"},
	}
	for _, raw := range raws {
		q, err := Normalize(raw)
		if err != nil {
			t.Fatalf("Normalize(%+v): %v", raw, err)
		}
		if (q.Sol != nil) == (q.EarthDate != "") {
			t.Fatalf("Normalize(%+v) = %s: want exactly one of sol and earth date", raw, describe(q))
		}
	}
}

func TestQueryFilterCarriesEveryField(t *testing.T) {
	q := Query{Rover: "curiosity", Sol: intp(1000), Camera: "FHAZ", Page: 3}
	f := q.Filter()
	if f.Rover != q.Rover || f.Sol != q.Sol || f.EarthDate != q.EarthDate || f.Camera != q.Camera || f.Page != q.Page {
		t.Fatalf("filter %+v does not mirror query %s", f, describe(q))
	}
}
