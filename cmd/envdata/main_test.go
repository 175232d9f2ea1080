package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/agritech-envdata/internal/binding"
	"github.com/i474232898/agritech-envdata/internal/weather"
)

// failingUpstream points every provider at a server that always answers 500.
func failingUpstream(t *testing.T) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	for _, key := range []string{"OPENWEATHER_BASE_URL", "AIRVISUAL_BASE_URL", "AGROMONITORING_BASE_URL", "BACKEND_BASE_URL"} {
		t.Setenv(key, srv.URL)
	}
	t.Setenv("OPENWEATHER_API_KEY", "k")
	t.Setenv("AIRVISUAL_API_KEY", "k")
	t.Setenv("AGROMONITORING_API_KEY", "k")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestFetchWeather_FallsBackToSyntheticData(t *testing.T) {
	failingUpstream(t)

	out, err := execute(t, "fetch", "weather", "--lat", "48.8566", "--lon", "2.3522")
	require.NoError(t, err)

	var state binding.State[weather.Report]
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	require.NotNil(t, state.Data)
	assert.False(t, state.Loading)
	assert.Empty(t, state.Error)
	assert.Equal(t, "48.86, 2.35", state.Data.Current.CityName)
}

func TestFetchAirQuality_ExhaustedExitsNonZero(t *testing.T) {
	failingUpstream(t)

	out, err := execute(t, "fetch", "airquality", "--lat", "48.8566", "--lon", "2.3522")
	require.Error(t, err)

	var se stateError
	assert.ErrorAs(t, err, &se)
	assert.Contains(t, out, `"data": null`)
}

func TestFetch_InvalidInput(t *testing.T) {
	failingUpstream(t)

	_, err := execute(t, "fetch", "weather", "--lat", "123")
	assert.ErrorContains(t, err, "invalid --lat/--lon")

	_, err = execute(t, "fetch", "climate", "--polygon", "[[0,0],[1,1]]")
	assert.ErrorContains(t, err, "invalid --polygon")
}

func TestRoot_MissingEnvFileFails(t *testing.T) {
	failingUpstream(t)
	t.Cleanup(func() { envFile = "" })

	_, err := execute(t, "fetch", "weather", "--env-file", filepath.Join(t.TempDir(), "absent.env"))
	assert.ErrorContains(t, err, "failed to load env file")
}
