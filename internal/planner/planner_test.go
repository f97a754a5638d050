package planner_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusklight/duskd/internal/geo"
	"github.com/dusklight/duskd/internal/kv"
	"github.com/dusklight/duskd/internal/planner"
	"github.com/dusklight/duskd/internal/schedule"
	"github.com/dusklight/duskd/internal/storage"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const configKey = "config"

// upstreams bundles fake geolocation and daylight endpoints.
type upstreams struct {
	geoIPBody    string
	daylightBody string
}

func newTestPlanner(t *testing.T, store *storage.ConfigStore, up upstreams) *planner.Planner {
	t.Helper()

	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(up.geoIPBody))
	}))
	t.Cleanup(geoSrv.Close)

	daySrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(up.daylightBody))
	}))
	t.Cleanup(daySrv.Close)

	client := geo.NewClient(time.Second, geo.WithGeoIPURL(geoSrv.URL), geo.WithDaylightURL(daySrv.URL))
	return planner.New(store, client, false).WithClock(func() time.Time { return testNow })
}

const liveGeoBody = `{"status":"success","lat":51.5,"lon":-0.12,"timezone":"Europe/London","offset":0}`

const liveDaylightBody = `{
	"status": "OK",
	"results": {
		"sunrise": "6:45:00 AM",
		"sunset": "7:00:00 PM",
		"civil_twilight_begin": "6:15:00 AM",
		"civil_twilight_end": "7:30:00 PM"
	}
}`

func memStore() *storage.ConfigStore {
	return storage.NewConfigStore(kv.NewMemoryBucket("lights"), configKey)
}

func storedBlob(t *testing.T, store *storage.ConfigStore) map[string]any {
	t.Helper()
	blob, err := store.Load(context.Background())
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(blob, &out))
	return out
}

func entryByLabel(t *testing.T, entries []schedule.Entry, label string) schedule.Entry {
	t.Helper()
	for _, e := range entries {
		if e.Label == label {
			return e
		}
	}
	t.Fatalf("no entry with label %q", label)
	return schedule.Entry{}
}

func TestBuildSchedule_EmptyStoreNoGeo(t *testing.T) {
	store := memStore()
	p := newTestPlanner(t, store, upstreams{geoIPBody: `{"status":"fail"}`, daylightBody: `{}`})

	resp, err := p.BuildSchedule(context.Background(), "127.0.0.1")
	require.NoError(t, err)

	// Degrades to UTC with only the sleep events present.
	assert.Equal(t, schedule.ModeDayNight, resp.Mode)
	assert.Equal(t, testNow.Unix(), resp.ServerTime)
	require.Len(t, resp.BrightnessSchedule, 2)
	assert.Equal(t, "bed_time", resp.BrightnessSchedule[0].Label)
	assert.Equal(t, "night_time", resp.BrightnessSchedule[1].Label)

	// No live lookup, no cache fill: the store stays empty.
	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBuildSchedule_MergesDaylightAndFillsCache(t *testing.T) {
	store := memStore()
	seed, err := json.Marshal(map[string]any{
		"mode": "dayNight",
		"brightnessSchedule": []map[string]any{
			{"label": "sunrise", "time": "07:00", "unixTime": 0, "warmBrightness": 50, "coolBrightness": 80},
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), seed))

	p := newTestPlanner(t, store, upstreams{geoIPBody: liveGeoBody, daylightBody: liveDaylightBody})

	resp, err := p.BuildSchedule(context.Background(), "81.2.69.142")
	require.NoError(t, err)

	// Hand-tuned sunrise brightness survives the time refresh.
	sunrise := entryByLabel(t, resp.BrightnessSchedule, "sunrise")
	assert.Equal(t, "06:45", sunrise.Time)
	assert.Equal(t, 50, sunrise.WarmBrightness)
	assert.Equal(t, 80, sunrise.CoolBrightness)

	// 19:00 sunset is floored, twilight end rederived.
	sunset := entryByLabel(t, resp.BrightnessSchedule, "sunset")
	assert.Equal(t, "19:30", sunset.Time)
	assert.Equal(t, 75, sunset.WarmBrightness)
	assert.Equal(t, "20:00", entryByLabel(t, resp.BrightnessSchedule, "civil_twilight_end").Time)
	assert.Equal(t, "06:15", entryByLabel(t, resp.BrightnessSchedule, "civil_twilight_begin").Time)

	require.Len(t, resp.BrightnessSchedule, 6)
	for i := 1; i < len(resp.BrightnessSchedule); i++ {
		assert.LessOrEqual(t, resp.BrightnessSchedule[i-1].UnixTime, resp.BrightnessSchedule[i].UnixTime)
	}

	// The empty offset cache was filled from the live lookup.
	blob := storedBlob(t, store)
	assert.Equal(t, float64(0), blob["cachedTimezoneOffset"])
}

func TestBuildSchedule_CachedOffsetFallback(t *testing.T) {
	store := memStore()
	seed, err := json.Marshal(map[string]any{
		"mode":                 "dayNight",
		"brightnessSchedule":   []map[string]any{},
		"cachedTimezoneOffset": 18000,
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), seed))

	p := newTestPlanner(t, store, upstreams{geoIPBody: `{"status":"fail"}`, daylightBody: `{}`})

	resp, err := p.BuildSchedule(context.Background(), "10.0.0.1")
	require.NoError(t, err)

	// Sleep instants are resolved under the cached +05:00 offset.
	bed := entryByLabel(t, resp.BrightnessSchedule, "bed_time")
	wantInstant, err := schedule.ToInstant("23:00", 18000, schedule.AnchorToday, testNow)
	require.NoError(t, err)
	assert.Equal(t, wantInstant, bed.UnixTime)

	// Cache already filled: no rewrite happened.
	blob := storedBlob(t, store)
	assert.Equal(t, float64(18000), blob["cachedTimezoneOffset"])
	assert.Empty(t, blob["brightnessSchedule"])
}

func TestBuildSchedule_DaylightUpstreamDownKeepsPreviousEvents(t *testing.T) {
	store := memStore()
	seed, err := json.Marshal(map[string]any{
		"mode": "dayNight",
		"brightnessSchedule": []map[string]any{
			{"label": "sunset", "time": "20:10", "unixTime": 0, "warmBrightness": 60, "coolBrightness": 90},
		},
		"cachedTimezoneOffset": 0,
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), seed))

	p := newTestPlanner(t, store, upstreams{geoIPBody: liveGeoBody, daylightBody: `{"status":"ERROR"}`})

	resp, err := p.BuildSchedule(context.Background(), "81.2.69.142")
	require.NoError(t, err)

	// No daylight update this request: the stored sunset time survives.
	sunset := entryByLabel(t, resp.BrightnessSchedule, "sunset")
	assert.Equal(t, "20:10", sunset.Time)
	assert.Equal(t, 60, sunset.WarmBrightness)
}

func TestBuildSchedule_StorageFailure(t *testing.T) {
	store := storage.NewConfigStore(failingBucket{}, configKey)
	p := newTestPlanner(t, store, upstreams{geoIPBody: `{"status":"fail"}`, daylightBody: `{}`})

	_, err := p.BuildSchedule(context.Background(), "")
	assert.Error(t, err)
}

func TestSaveSchedule_CarriesCachedOffsetForward(t *testing.T) {
	store := memStore()
	seed, err := json.Marshal(map[string]any{
		"mode":                 "dayNight",
		"brightnessSchedule":   []map[string]any{},
		"cachedTimezoneOffset": -28800,
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), seed))

	p := newTestPlanner(t, store, upstreams{geoIPBody: `{}`, daylightBody: `{}`})

	body := `{"mode":"scheduled","brightnessSchedule":[
		{"time":"07:00","unixTime":100,"warmBrightness":75,"coolBrightness":100,"label":"sunrise"}
	]}`
	require.NoError(t, p.SaveSchedule(context.Background(), []byte(body)))

	blob := storedBlob(t, store)
	assert.Equal(t, "scheduled", blob["mode"])
	assert.Equal(t, float64(-28800), blob["cachedTimezoneOffset"])

	entries, ok := blob["brightnessSchedule"].([]any)
	require.True(t, ok)
	require.Len(t, entries, 1)
}

func TestSaveSchedule_RejectsInvalidPayloadUntouched(t *testing.T) {
	store := memStore()
	p := newTestPlanner(t, store, upstreams{geoIPBody: `{}`, daylightBody: `{}`})

	err := p.SaveSchedule(context.Background(), []byte(`{"mode":"party","brightnessSchedule":[]}`))

	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "invalid mode")

	_, err = store.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefreshDaylight_Persists(t *testing.T) {
	store := memStore()
	p := newTestPlanner(t, store, upstreams{geoIPBody: liveGeoBody, daylightBody: liveDaylightBody})

	require.NoError(t, p.RefreshDaylight(context.Background(), "81.2.69.142"))

	blob := storedBlob(t, store)
	assert.Equal(t, float64(0), blob["cachedTimezoneOffset"])

	entries, ok := blob["brightnessSchedule"].([]any)
	require.True(t, ok)
	assert.Len(t, entries, 6)
}

// failingBucket simulates an unreachable store.
type failingBucket struct{}

func (failingBucket) Name() string { return "broken" }

func (failingBucket) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("store unreachable")
}

func (failingBucket) Put(context.Context, string, []byte) error {
	return errors.New("store unreachable")
}

func (failingBucket) Delete(context.Context, string) (bool, error) {
	return false, errors.New("store unreachable")
}
