package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"makerspace-reservation-backend/internal/api"
	"makerspace-reservation-backend/internal/db"
	"makerspace-reservation-backend/internal/model"
	"makerspace-reservation-backend/internal/reservation"
	"makerspace-reservation-backend/internal/store"
)

type testEnv struct {
	router   *gin.Engine
	svc      *reservation.Service
	db       *gorm.DB
	machines []model.Machine
	typeID   int64
	ruleID   int64
}

// newTestEnv wires the full stack against a throwaway SQLite database: two
// machines of one type, an all-week rule and a quota for users 1 and 2.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// 1. Setup a SQLite database for testing. A file-backed database with a
	// busy timeout behaves like a real server under concurrent writers.
	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))

	// 2. Seed the machine park.
	machineType := model.MachineType{Name: "3D printer", UsageRequirement: model.RequireAuthenticated, ConcurrentMachineFraction: 1}
	require.NoError(t, testDB.Create(&machineType).Error)
	machines := []model.Machine{
		{Name: "Printer 1", MachineTypeID: machineType.ID, Status: model.StatusAvailable},
		{Name: "Printer 2", MachineTypeID: machineType.ID, Status: model.StatusAvailable},
	}
	for i := range machines {
		require.NoError(t, testDB.Create(&machines[i]).Error)
	}
	rule := model.ReservationRule{
		MachineTypeID:         machineType.ID,
		EndTime:               mustDayTime(t, "24:00"),
		StartDays:             model.WeekdaySetOf(1, 2, 3, 4, 5, 6, 7),
		MaxHours:              16,
		MaxHoursBorderCrossed: 16,
	}
	require.NoError(t, testDB.Create(&rule).Error)
	for _, userID := range []int64{1, 2} {
		uid := userID
		require.NoError(t, testDB.Create(&model.Quota{MachineTypeID: machineType.ID, UserID: &uid, NumberOfReservations: 10}).Error)
	}

	// 3. Wire store, service and router the way main does.
	st := store.NewGormStore(testDB)
	svc := reservation.NewService(st, reservation.Config{
		HorizonDays:       28,
		Location:          time.UTC,
		SlotSearchMaxDays: 90,
		Grace:             5 * time.Minute,
	}, nil)
	router := api.NewRouter(st, svc, api.RouterOptions{
		RateLimitPerSec: 1000,
		RateLimitBurst:  1000,
		CacheTTL:        time.Minute,
	})

	return &testEnv{router: router, svc: svc, db: testDB, machines: machines, typeID: machineType.ID, ruleID: rule.ID}
}

func mustDayTime(t *testing.T, s string) model.DayTime {
	t.Helper()
	dt, err := model.ParseDayTime(s)
	require.NoError(t, err)
	return dt
}

// do performs a request as the given user; userID 0 sends no auth headers.
func (e *testEnv) do(t *testing.T, method, path string, userID int64, caps string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		req.Header.Set("X-User-Id", strconv.FormatInt(userID, 10))
	}
	if caps != "" {
		req.Header.Set("X-Capabilities", caps)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func firstRejectionKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Rejections []struct {
			Kind string `json:"kind"`
		} `json:"rejections"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Rejections)
	return resp.Rejections[0].Kind
}

func TestReservationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)

	payload := gin.H{
		"machineId": env.machines[0].ID,
		"startTime": base,
		"endTime":   base.Add(2 * time.Hour),
	}

	// Unauthenticated requests are refused before any validation runs.
	w := env.do(t, http.MethodPost, "/api/reservations", 0, "", payload)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodPost, "/api/reservations", 1, "", payload)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotZero(t, created.ID)
	assert.NotNil(t, created.QuotaID)

	// Another user cannot double-book the machine.
	w = env.do(t, http.MethodPost, "/api/reservations", 2, "", gin.H{
		"machineId": env.machines[0].ID,
		"startTime": base.Add(time.Hour),
		"endTime":   base.Add(3 * time.Hour),
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Overlap", firstRejectionKind(t, w))

	// The owner may extend the reservation.
	id := strconv.FormatInt(created.ID, 10)
	w = env.do(t, http.MethodPut, "/api/reservations/"+id, 1, "", gin.H{
		"machineId": env.machines[0].ID,
		"startTime": base,
		"endTime":   base.Add(3 * time.Hour),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Nobody else may touch it.
	w = env.do(t, http.MethodPut, "/api/reservations/"+id, 2, "", payload)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = env.do(t, http.MethodDelete, "/api/reservations/"+id, 2, "", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodDelete, "/api/reservations/"+id, 1, "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodDelete, "/api/reservations/"+id, 1, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFreeSlotsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)

	w := env.do(t, http.MethodPost, "/api/reservations", 1, "", gin.H{
		"machineId": env.machines[0].ID,
		"startTime": base,
		"endTime":   base.Add(2 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	query := url.Values{}
	query.Set("duration_minutes", "60")
	query.Set("from", base.Format(time.RFC3339))
	query.Set("to", base.Add(4*time.Hour).Format(time.RFC3339))
	path := "/api/machines/" + strconv.FormatInt(env.machines[0].ID, 10) + "/free-slots?" + query.Encode()

	w = env.do(t, http.MethodGet, path, 1, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Slots []time.Time `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Slots)
	assert.True(t, resp.Slots[0].Equal(base.Add(2*time.Hour)), "the first free hour starts when the reservation ends")
}

func TestRuleEndpoints(t *testing.T) {
	env := newTestEnv(t)
	rulesPath := "/api/machine-types/" + strconv.FormatInt(env.typeID, 10) + "/rules"

	w := env.do(t, http.MethodGet, rulesPath, 0, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	firstBody := w.Body.String()

	// The second read is served from the cache and must be identical.
	w = env.do(t, http.MethodGet, rulesPath, 0, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, firstBody, w.Body.String())

	newRule := gin.H{
		"startTime":             "08:00",
		"endTime":               "12:00",
		"startDays":             []int{6},
		"maxHours":              4,
		"maxHoursBorderCrossed": 4,
	}

	// Plain users cannot edit rules.
	w = env.do(t, http.MethodPost, rulesPath, 1, "", newRule)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Validation previews run without the capability and without persisting.
	w = env.do(t, http.MethodPost, rulesPath+"/validate", 1, "", newRule)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "CrossRuleOverlap", firstRejectionKind(t, w))

	// Re-validating the existing rule against itself passes.
	w = env.do(t, http.MethodPost, rulesPath+"/validate", 1, "", gin.H{
		"ruleId":                env.ruleID,
		"startTime":             "00:00",
		"endTime":               "24:00",
		"startDays":             []int{1, 2, 3, 4, 5, 6, 7},
		"maxHours":              12,
		"maxHoursBorderCrossed": 12,
	})
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	// An operator replaces the all-week rule; the mutation must flush the
	// read cache.
	ruleID := strconv.FormatInt(env.ruleID, 10)
	w = env.do(t, http.MethodDelete, rulesPath+"/"+ruleID, 1, "manage-machines", nil)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = env.do(t, http.MethodPost, rulesPath, 1, "manage-machines", newRule)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, rulesPath, 0, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEqual(t, firstBody, w.Body.String())
}

// TestConcurrentCreate races two users for the same window; the machine lock
// must let exactly one through.
func TestConcurrentCreate(t *testing.T) {
	env := newTestEnv(t)
	base := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)

	req := func(user int64) (bool, error) {
		_, rejections, err := env.svc.Create(context.Background(), reservation.NewPrincipal(user), reservation.Request{
			MachineID: env.machines[0].ID,
			Start:     base,
			End:       base.Add(2 * time.Hour),
		})
		if err != nil {
			return false, err
		}
		return len(rejections) == 0, nil
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = req(int64(i + 1))
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.NotEqual(t, results[0], results[1], "exactly one of the competing writers may win")

	var count int64
	require.NoError(t, env.db.Model(&model.Reservation{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
