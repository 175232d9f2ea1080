package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/i474232898/agritech-envdata/internal/acquisition"
	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/binding"
	"github.com/i474232898/agritech-envdata/internal/climate"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

// WeatherUpstream is what the /api service proxies for weather and air quality.
type WeatherUpstream interface {
	Current(ctx context.Context, c geo.Coordinate) (weather.Current, error)
	AirPollution(ctx context.Context, c geo.Coordinate) (airquality.Sample, error)
}

// SoilUpstream is what the /api service proxies for soil readings.
type SoilUpstream interface {
	Soil(ctx context.Context, polygon geo.Polygon) (climate.Reading, error)
}

// Deps are the collaborators of the HTTP handlers. Layer is optional; without
// it /api/v1/snapshot is not registered.
type Deps struct {
	Weather WeatherUpstream
	Soil    SoilUpstream
	Layer   *acquisition.Layer
	Logger  *zap.Logger
	Now     func() time.Time
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, d Deps) {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	h := &handlers{Deps: d}

	api := app.Group("/api")
	api.Get("/health", h.health)
	api.Get("/weather", h.weather)
	api.Get("/airquality", h.airQuality)
	api.Post("/climate", h.climate)

	if d.Layer != nil {
		v1 := api.Group("/v1")
		v1.Get("/snapshot", h.snapshot)
	}

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
}

type handlers struct {
	Deps
}

func (h *handlers) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "agritech-envdata",
	})
}

// weatherResponse is the reduced payload the backend tier consumes.
type weatherResponse struct {
	Temperature   float64 `json:"temperature"`
	FeelsLike     float64 `json:"feels_like"`
	Humidity      float64 `json:"humidity"`
	Pressure      float64 `json:"pressure"`
	Description   string  `json:"description"`
	Icon          string  `json:"icon"`
	WindSpeed     float64 `json:"windSpeed"`
	WindDirection float64 `json:"windDirection"`
	City          string  `json:"city"`
	Visibility    float64 `json:"visibility"`
	Clouds        float64 `json:"clouds"`
	Timestamp     int64   `json:"timestamp"`
}

func (h *handlers) weather(c *fiber.Ctx) error {
	coord, err := parsePointQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	cur, err := h.Weather.Current(c.UserContext(), coord)
	if err != nil {
		h.Logger.Warn("weather upstream failed", zap.String("key", coord.Key()), zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	return c.JSON(weatherResponse{
		Temperature:   cur.Temperature,
		FeelsLike:     cur.FeelsLike,
		Humidity:      cur.Humidity,
		Pressure:      cur.Pressure,
		Description:   cur.Description,
		Icon:          cur.Icon,
		WindSpeed:     cur.WindSpeed,
		WindDirection: cur.WindDirection,
		City:          cur.CityName,
		Visibility:    cur.Visibility,
		Clouds:        cur.Clouds,
		Timestamp:     h.Now().Unix(),
	})
}

type airQualityResponse struct {
	AQI            int                   `json:"aqi"`
	Category       string                `json:"category"`
	Components     airquality.Components `json:"components"`
	Timestamp      int64                 `json:"timestamp"`
	Description    string                `json:"description,omitempty"`
	Recommendation string                `json:"recommendation,omitempty"`
}

func (h *handlers) airQuality(c *fiber.Ctx) error {
	coord, err := parsePointQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	s, err := h.Weather.AirPollution(c.UserContext(), coord)
	if err != nil {
		h.Logger.Warn("air quality upstream failed", zap.String("key", coord.Key()), zap.Error(err))
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}

	desc, rec := airquality.OrdinalAdvice(s.Index)
	return c.JSON(airQualityResponse{
		AQI:            s.Index,
		Category:       airquality.EuropeanLabel(s.Index),
		Components:     s.Components,
		Timestamp:      s.Timestamp,
		Description:    desc,
		Recommendation: rec,
	})
}

type climateRequest struct {
	Polygon geo.Polygon `json:"polygon"`
}

// climate asks the soil provider first and estimates from the weather at the
// polygon centroid when it fails.
func (h *handlers) climate(c *fiber.Ctx) error {
	var req climateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	if len(req.Polygon) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "polygon is required")
	}
	if err := req.Polygon.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	reading, err := h.Soil.Soil(ctx, req.Polygon)
	if err == nil {
		return c.JSON(newClimateResponse(reading))
	}
	h.Logger.Info("soil provider failed; estimating from weather", zap.Error(err))

	center := req.Polygon.Centroid()
	cur, werr := h.Weather.Current(ctx, center)
	if werr != nil {
		h.Logger.Warn("climate estimate failed", zap.String("key", center.Key()), zap.Error(werr))
		return fiber.NewError(fiber.StatusServiceUnavailable, "climate data unavailable: "+werr.Error())
	}

	signals := climate.WeatherSignals{
		Humidity: cur.Humidity,
		Pressure: cur.Pressure,
		Clouds:   cur.Clouds,
	}
	if cur.Rain1h != nil {
		signals.Rain1h = *cur.Rain1h
	}
	return c.JSON(newClimateResponse(climate.DeriveFromWeather(signals, h.Now().Month())))
}

// climateResponse is a climate.Reading plus its agronomic categories. The
// backend tier decodes only the reading fields.
type climateResponse struct {
	climate.Reading
	SoilMoistureStatus  string `json:"soilMoistureStatus"`
	VegetationStatus    string `json:"vegetationStatus"`
	PrecipitationStatus string `json:"precipitationStatus"`
}

func newClimateResponse(r climate.Reading) climateResponse {
	return climateResponse{
		Reading:             r,
		SoilMoistureStatus:  r.SoilMoistureCategory(),
		VegetationStatus:    r.NDVICategory(),
		PrecipitationStatus: r.PrecipitationCategory(),
	}
}

// snapshot drives one weather and one air-quality binding through the shared
// acquisition layer, so repeated calls are served from its caches.
func (h *handlers) snapshot(c *fiber.Ctx) error {
	coord, err := parsePointQuery(c)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	wb := h.Layer.WeatherBinding()
	defer wb.Close()
	ab := h.Layer.AirQualityBinding()
	defer ab.Close()

	var (
		ws binding.State[weather.Report]
		as binding.State[airquality.Report]
	)
	g, ctx := errgroup.WithContext(c.UserContext())
	g.Go(func() error {
		ws = wb.Refetch(ctx, coord)
		return nil
	})
	g.Go(func() error {
		as = ab.Refetch(ctx, coord)
		return nil
	})
	_ = g.Wait()

	body := fiber.Map{
		"key":        coord.Key(),
		"location":   coord,
		"weather":    ws,
		"airQuality": as,
	}
	if ws.Data != nil {
		cur := ws.Data.Current
		body["conditions"] = fiber.Map{
			"daytime":     cur.IsDaytime(h.Now()),
			"windCompass": cur.WindCompass(),
		}
	}
	// A failed refresh clears the binding's data; the last reading still in
	// the cache is reported separately.
	if as.Data == nil {
		if last, ok := h.Layer.AirQuality.Latest(coord); ok {
			body["lastKnownAirQuality"] = last
		}
	}
	return c.JSON(body)
}

var errMissingPoint = errors.New("lat and lon query parameters are required")

func parsePointQuery(c *fiber.Ctx) (geo.Coordinate, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" || lonStr == "" {
		return geo.Coordinate{}, errMissingPoint
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return geo.Coordinate{}, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return geo.Coordinate{}, errors.New("lon must be a number")
	}

	coord := geo.Coordinate{Lat: lat, Lon: lon}
	if err := coord.Validate(); err != nil {
		return geo.Coordinate{}, err
	}
	return coord, nil
}
