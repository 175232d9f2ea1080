package acquisition

import (
	"context"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/i474232898/agritech-envdata/internal/airquality"
	"github.com/i474232898/agritech-envdata/internal/geo"
	"github.com/i474232898/agritech-envdata/internal/observability"
	"github.com/i474232898/agritech-envdata/internal/providers"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	currentParis = `{
		"main": {"temp": 18.2, "feels_like": 17.9, "humidity": 62, "pressure": 1016},
		"wind": {"speed": 4.1, "deg": 250},
		"weather": [{"main": "Clear", "description": "clear sky", "icon": "01d"}],
		"sys": {"sunrise": 1717214400, "sunset": 1717272000, "country": "FR"},
		"name": "Paris", "visibility": 10000, "clouds": {"all": 0}
	}`
	forecastParis = `{"list": [{"dt": 1717225200, "main": {"temp": 19}, "weather": [{"main": "Clear", "icon": "01d"}]}], "city": {"name": "Paris", "country": "FR"}}`
	backendWeather = `{"temperature": 12.5, "humidity": 70, "description": "light rain", "icon": "10d", "city": "Paris"}`
)

// route is a canned response for one path.
type route struct {
	status int
	body   string
}

// fakeUpstream serves canned responses and records the order of requests.
type fakeUpstream struct {
	name string
	srv  *httptest.Server

	mu     sync.Mutex
	routes map[string]route
	log    *[]string
	logMu  *sync.Mutex
	counts map[string]int
}

func newFakeUpstream(t *testing.T, name string, order *[]string, orderMu *sync.Mutex) *fakeUpstream {
	t.Helper()
	u := &fakeUpstream{name: name, routes: map[string]route{}, log: order, logMu: orderMu, counts: map[string]int{}}
	u.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		rt, ok := u.routes[r.URL.Path]
		u.counts[r.URL.Path]++
		u.mu.Unlock()

		u.logMu.Lock()
		*u.log = append(*u.log, u.name+" "+r.URL.Path)
		u.logMu.Unlock()

		if !ok {
			rt = route{status: http.StatusInternalServerError, body: `{"error": "no route"}`}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(rt.status)
		_, _ = io.WriteString(w, rt.body)
	}))
	t.Cleanup(u.srv.Close)
	return u
}

func (u *fakeUpstream) set(path string, status int, body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.routes[path] = route{status: status, body: body}
}

func (u *fakeUpstream) count(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.counts[path]
}

type harness struct {
	clock     *clockwork.FakeClock
	layer     *Layer
	ow        *fakeUpstream
	airvisual *fakeUpstream
	agro      *fakeUpstream
	backend   *fakeUpstream

	orderMu sync.Mutex
	order   []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{clock: clockwork.NewFakeClockAt(time.Date(2024, time.June, 1, 12, 0, 0, 0, time.UTC))}
	h.ow = newFakeUpstream(t, "openweather", &h.order, &h.orderMu)
	h.airvisual = newFakeUpstream(t, "airvisual", &h.order, &h.orderMu)
	h.agro = newFakeUpstream(t, "agromonitoring", &h.order, &h.orderMu)
	h.backend = newFakeUpstream(t, "backend", &h.order, &h.orderMu)

	opts := func(u *fakeUpstream) providers.Options {
		return providers.Options{
			BaseURL: u.srv.URL,
			APIKey:  "test-key",
			HTTP:    providers.HTTPClientConfig{Client: u.srv.Client()},
		}
	}

	h.layer = NewLayer(Settings{
		WeatherTTL:    10 * time.Minute,
		AirQualityTTL: 30 * time.Minute,
		ClimateTTL:    0,
		MaxEntries:    100,
		MaxAge:        24 * time.Hour,
	}, Providers{
		OpenWeather:    providers.NewOpenWeather(opts(h.ow)),
		AirVisual:      providers.NewAirVisual(opts(h.airvisual)),
		Agromonitoring: providers.NewAgromonitoring(opts(h.agro)),
		Backend:        providers.NewBackend(opts(h.backend)),
		Simulator:      weather.NewSimulator(rand.New(rand.NewPCG(1, 2)), h.clock.Now),
	}, h.clock, zaptest.NewLogger(t), observability.NewMetricsForTesting())
	return h
}

// calls returns the recorded requests whose path is one of paths, in order.
func (h *harness) calls(paths ...string) []string {
	h.orderMu.Lock()
	defer h.orderMu.Unlock()
	var out []string
	for _, c := range h.order {
		for _, p := range paths {
			if len(c) >= len(p) && c[len(c)-len(p):] == p {
				out = append(out, c)
			}
		}
	}
	return out
}

func TestWeather_ParisScenarioServedFromBucket(t *testing.T) {
	h := newHarness(t)
	h.ow.set("/weather", http.StatusOK, currentParis)
	h.ow.set("/forecast", http.StatusOK, forecastParis)

	b := h.layer.WeatherBinding()
	defer b.Close()

	first := b.Refetch(context.Background(), geo.Coordinate{Lat: 48.8566, Lon: 2.3522})
	require.NotNil(t, first.Data)
	assert.Equal(t, 18.2, first.Data.Current.Temperature)
	require.NotNil(t, first.Data.Forecast)

	h.clock.Advance(2 * time.Minute)

	second := b.Refetch(context.Background(), geo.Coordinate{Lat: 48.8571, Lon: 2.3529})
	require.NotNil(t, second.Data)
	assert.Equal(t, *first.Data, *second.Data)
	assert.Equal(t, 1, h.ow.count("/weather"), "second request is served from the same cache entry")
	assert.Equal(t, 1, h.ow.count("/forecast"))
}

func TestWeather_TTLExpiryRefetches(t *testing.T) {
	h := newHarness(t)
	h.ow.set("/weather", http.StatusOK, currentParis)
	h.ow.set("/forecast", http.StatusOK, forecastParis)

	b := h.layer.WeatherBinding()
	defer b.Close()

	b.Refetch(context.Background(), geo.Paris)
	h.clock.Advance(9*time.Minute + 59*time.Second)
	b.Refetch(context.Background(), geo.Paris)
	assert.Equal(t, 1, h.ow.count("/weather"))

	h.clock.Advance(time.Second)
	s := b.Refetch(context.Background(), geo.Paris)
	require.NotNil(t, s.Data)
	assert.Equal(t, 18.2, s.Data.Current.Temperature)
	assert.Equal(t, 2, h.ow.count("/weather"), "an entry 10 minutes old is stale")
}

func TestWeather_FallbackOrder(t *testing.T) {
	h := newHarness(t)
	h.ow.set("/weather", http.StatusInternalServerError, `{}`)
	h.ow.set("/forecast", http.StatusOK, forecastParis)
	h.backend.set("/api/weather", http.StatusOK, backendWeather)

	b := h.layer.WeatherBinding()
	defer b.Close()

	s := b.Refetch(context.Background(), geo.Paris)
	require.NotNil(t, s.Data)
	assert.Empty(t, s.Error)
	assert.Equal(t, 12.5, s.Data.Current.Temperature)
	assert.Equal(t, 11.5, s.Data.Current.FeelsLike)
	assert.Equal(t, 1013.0, s.Data.Current.Pressure)
	assert.Equal(t, weather.ConditionRain, s.Data.Current.Condition)

	assert.Equal(t, []string{"openweather /weather", "backend /api/weather"}, h.calls("/weather"))
}

func TestWeather_NeverNullsOut(t *testing.T) {
	h := newHarness(t)
	// No routes: every upstream answers 500.

	b := h.layer.WeatherBinding()
	defer b.Close()

	s := b.Refetch(context.Background(), geo.Paris)
	assert.False(t, s.Loading)
	assert.Empty(t, s.Error)
	require.NotNil(t, s.Data)
	assert.GreaterOrEqual(t, s.Data.Current.Temperature, 15.0)
	assert.LessOrEqual(t, s.Data.Current.Temperature, 25.0)
	assert.Nil(t, s.Data.Forecast)
}

func TestWeather_ForecastFailureIsSilent(t *testing.T) {
	h := newHarness(t)
	h.ow.set("/weather", http.StatusOK, currentParis)
	h.ow.set("/forecast", http.StatusServiceUnavailable, `{}`)

	b := h.layer.WeatherBinding()
	defer b.Close()

	s := b.Refetch(context.Background(), geo.Paris)
	require.NotNil(t, s.Data)
	assert.Empty(t, s.Error)
	assert.Equal(t, 18.2, s.Data.Current.Temperature)
	assert.Nil(t, s.Data.Forecast)
}

func TestAirQuality_OrdinalConversion(t *testing.T) {
	h := newHarness(t)
	h.ow.set("/air_pollution", http.StatusOK, `{"list": [{"main": {"aqi": 3}, "components": {"pm2_5": 5, "pm10": 45, "o3": 60, "no2": 20, "so2": 4, "co": 250}}]}`)

	b := h.layer.AirQualityBinding()
	defer b.Close()

	s := b.Refetch(context.Background(), geo.Paris)
	require.NotNil(t, s.Data)
	assert.Equal(t, 125, s.Data.AQI)
	assert.Equal(t, "Unhealthy for Sensitive Groups", s.Data.Category)
	assert.Equal(t, "pm10", s.Data.MainPollutant)
	assert.Equal(t, 0, h.airvisual.count("/nearest_city"))
}

func TestAirQuality_SecondaryProvider(t *testing.T) {
	h := newHarness(t)
	h.ow.set("/air_pollution", http.StatusUnauthorized, `{}`)
	h.airvisual.set("/nearest_city", http.StatusOK, `{"status": "success", "data": {"current": {"pollution": {"aqius": 88, "mainus": "p2", "aqicn": 61}}}}`)

	b := h.layer.AirQualityBinding()
	defer b.Close()

	s := b.Refetch(context.Background(), geo.Paris)
	require.NotNil(t, s.Data)
	assert.Equal(t, 88, s.Data.AQI)
	assert.Equal(t, airquality.CategoryModerate, s.Data.Category)
	assert.Equal(t, 0.0, s.Data.Pollutants.O3)
}

func TestAirQuality_TotalExhaustion(t *testing.T) {
	h := newHarness(t)
	h.airvisual.set("/nearest_city", http.StatusOK, `{"status": "fail", "data": {"message": "no_nearest_station"}}`)

	b := h.layer.AirQualityBinding()
	defer b.Close()

	s := b.Refetch(context.Background(), geo.Paris)
	assert.False(t, s.Loading)
	assert.Nil(t, s.Data)
	assert.NotEmpty(t, s.Error)
	assert.Equal(t, []string{"openweather /air_pollution", "airvisual /nearest_city", "backend /api/airquality"},
		h.calls("/air_pollution", "/nearest_city", "/api/airquality"))
}

func TestAirQuality_FailureKeepsStaleEntry(t *testing.T) {
	h := newHarness(t)
	h.ow.set("/air_pollution", http.StatusOK, `{"list": [{"main": {"aqi": 1}, "components": {"pm2_5": 3}}]}`)

	b := h.layer.AirQualityBinding()
	defer b.Close()

	b.Refetch(context.Background(), geo.Paris)
	h.clock.Advance(31 * time.Minute)
	h.ow.set("/air_pollution", http.StatusBadGateway, `{}`)

	s := b.Refetch(context.Background(), geo.Paris)
	assert.Nil(t, s.Data)
	assert.NotEmpty(t, s.Error)

	latest, ok := h.layer.AirQuality.Latest(geo.Paris)
	require.True(t, ok, "failed resolution leaves the cache untouched")
	assert.Equal(t, 25, latest.AQI)
}

func TestClimate_AlwaysRefetchesButKeepsLatest(t *testing.T) {
	h := newHarness(t)
	h.agro.set("/soil", http.StatusOK, `{"moisture": 33.3, "ndvi": 0.52, "precipitation": 1.1}`)

	b := h.layer.ClimateBinding()
	defer b.Close()

	s := b.Refetch(context.Background(), geo.DefaultField)
	require.NotNil(t, s.Data)
	assert.Equal(t, 33.3, s.Data.SoilMoisture)

	b.Refetch(context.Background(), geo.DefaultField)
	assert.Equal(t, 2, h.agro.count("/soil"), "climate entries are never fresh")

	latest, ok := h.layer.Climate.Latest(geo.DefaultField)
	require.True(t, ok)
	assert.Equal(t, 0.52, latest.NDVI)
}

func TestClimate_FallsBackToBackend(t *testing.T) {
	h := newHarness(t)
	h.backend.set("/api/climate", http.StatusOK, `{"soilMoisture": 48.0, "ndvi": 0.7, "precipitation": 0}`)

	b := h.layer.ClimateBinding(geo.DefaultField)
	defer b.Close()

	require.Eventually(t, func() bool { return !b.State().Loading }, 2*time.Second, 5*time.Millisecond)
	s := b.State()
	require.NotNil(t, s.Data)
	assert.Equal(t, 48.0, s.Data.SoilMoisture)
	assert.Equal(t, 1, h.agro.count("/soil"))
}
