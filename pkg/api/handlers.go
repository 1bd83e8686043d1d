package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/roverlens/marsphotos/pkg/retrieval"
	"github.com/roverlens/marsphotos/pkg/storage"
)

const (
	msgRoverRequired = "Rover is required"
	msgNoPhotos      = "No photos found"
	msgFetchFailed   = "Failed to fetch photos"
)

type errorResponse struct {
	Error string `json:"error"`
}

type searchResponse struct {
	Source string     `json:"source"`
	Photos []photoDTO `json:"photos"`
}

// photoDTO is the wire form of a photo. Absent fields encode as null.
type photoDTO struct {
	Rover     string  `json:"rover"`
	Sol       *int    `json:"sol"`
	EarthDate *string `json:"earth_date"`
	Camera    *string `json:"camera"`
	PhotoID   int64   `json:"photo_id"`
	ImgSrc    string  `json:"img_src"`
	Page      int     `json:"page"`
}

func newPhotoDTO(r storage.ImageRecord) photoDTO {
	d := photoDTO{
		Rover:   r.Rover,
		Sol:     r.Sol,
		PhotoID: r.ExternalID,
		ImgSrc:  r.ImageURL,
		Page:    r.Page,
	}
	if r.EarthDate != "" {
		d.EarthDate = &r.EarthDate
	}
	if r.Camera != "" {
		d.Camera = &r.Camera
	}
	return d
}

func (s *Server) root(c echo.Context) error {
	return c.String(http.StatusOK, "Mars Photo API is running")
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// searchPhotos handles GET /api/photos/search.
func (s *Server) searchPhotos(c echo.Context) error {
	raw := retrieval.RawQuery{
		Rover:     c.QueryParam("rover"),
		Sol:       c.QueryParam("sol"),
		EarthDate: c.QueryParam("earth_date"),
		Camera:    c.QueryParam("camera"),
		Page:      c.QueryParam("page"),
	}

	res, err := s.retriever.Retrieve(c.Request().Context(), raw)
	if err != nil {
		return s.searchError(c, raw, err)
	}
	if len(res.Photos) == 0 {
		return c.JSON(http.StatusNotFound, errorResponse{Error: msgNoPhotos})
	}

	photos := make([]photoDTO, len(res.Photos))
	for i, p := range res.Photos {
		photos[i] = newPhotoDTO(p)
	}
	return c.JSON(http.StatusOK, searchResponse{Source: string(res.Source), Photos: photos})
}

func (s *Server) searchError(c echo.Context, raw retrieval.RawQuery, err error) error {
	if retrieval.IsValidation(err) {
		msg := retrieval.Message(err)
		if strings.TrimSpace(raw.Rover) == "" {
			msg = msgRoverRequired
		}
		return c.JSON(http.StatusBadRequest, errorResponse{Error: msg})
	}

	// Every other failure is a 500; the component tag tells them apart.
	component := "api"
	switch {
	case retrieval.IsOriginError(err):
		component = "origin"
	case retrieval.IsStoreError(err):
		component = "store"
	}
	s.logger.Error("photo search failed",
		zap.String("rover", raw.Rover),
		zap.String("component", component),
		zap.Error(err))
	s.reporter.CaptureError(err, component)
	return c.JSON(http.StatusInternalServerError, errorResponse{Error: msgFetchFailed})
}
