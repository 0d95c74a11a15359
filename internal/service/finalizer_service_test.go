package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/pkg/config"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
	"github.com/noah-isme/wifi-presence-api/pkg/jobs"
)

// pendingStore is an in-memory pending store that commits like the SQL
// repository: insert records then delete exactly the consumed ids.
type pendingStore struct {
	sightingStoreStub
	committed  [][]models.AttendanceRecord
	commitErrs []error
	afterRead  func()
}

func (p *pendingStore) ListPending(ctx context.Context) ([]models.Sighting, error) {
	out, err := p.sightingStoreStub.ListPending(ctx)
	if p.afterRead != nil {
		p.afterRead()
	}
	return out, err
}

func (p *pendingStore) Commit(ctx context.Context, records []models.AttendanceRecord, consumedIDs []string) (int64, error) {
	if len(p.commitErrs) > 0 {
		err := p.commitErrs[0]
		p.commitErrs = p.commitErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	drop := make(map[string]struct{}, len(consumedIDs))
	for _, id := range consumedIDs {
		drop[id] = struct{}{}
	}
	kept := p.sightings[:0]
	var deleted int64
	for _, s := range p.sightings {
		if _, ok := drop[s.ID]; ok {
			deleted++
			continue
		}
		kept = append(kept, s)
	}
	p.sightings = kept
	p.committed = append(p.committed, append([]models.AttendanceRecord(nil), records...))
	return deleted, nil
}

type classifierStub struct {
	verdicts map[string]models.AnomalyVerdict
}

func (c classifierStub) Classify(ctx context.Context, fv models.FeatureVector) models.AnomalyVerdict {
	for _, v := range c.verdicts {
		return v
	}
	return models.FallbackVerdict()
}

type deviceDirectoryStub struct {
	devices map[string]models.RegisteredDevice
	err     error
}

func (d deviceDirectoryStub) FindByDeviceIDs(ctx context.Context, ids []string) (map[string]models.RegisteredDevice, error) {
	return d.devices, d.err
}

type publisherStub struct {
	mu        sync.Mutex
	published []models.AttendanceRecord
	err       error
}

func (p *publisherStub) Publish(ctx context.Context, records []models.AttendanceRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, records...)
	return p.err
}

type invalidatorStub struct{ caches []string }

func (i *invalidatorStub) Invalidate(ctx context.Context, cache string) error {
	i.caches = append(i.caches, cache)
	return nil
}

var sessionNow = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newFinalizer(store *pendingStore, classifier anomalyClassifier, windows []models.ScheduleWindow, opts FinalizerOptions) *FinalizerService {
	schedules := NewScheduleService(&scheduleRepoStub{windows: windows}, nil, time.Minute, time.UTC, nil)
	svc := NewFinalizerService(store, store, classifier, schedules, deviceDirectoryStub{}, opts)
	svc.now = func() time.Time { return sessionNow }
	return svc
}

func ingestAll(t *testing.T, store *pendingStore, sightings ...models.Sighting) {
	t.Helper()
	ingest := NewIngestService(store, store, nil, nil, -99, nil)
	for _, s := range sightings {
		at := s.ObservedAt
		rssi := s.RSSI
		_, err := ingest.Record(context.Background(), dto.RecordSightingRequest{DeviceID: s.DeviceID, APID: s.APID, RSSI: &rssi, ObservedAt: &at})
		require.NoError(t, err)
	}
}

func TestFinalizeEndToEnd(t *testing.T) {
	store := &pendingStore{}
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	ingestAll(t, store,
		sightingAt("AA:BB:CC:DD:EE:FF", "AP-1", -65, base),
		sightingAt("AA:BB:CC:DD:EE:FF", "AP-1", -68, base.Add(300*time.Second)),
		sightingAt("AA:BB:CC:DD:EE:FF", "AP-1", -70, base.Add(900*time.Second)),
	)
	classifier := NewClassifierService(config.ClassifierConfig{Timeout: time.Second}, nil, nil)
	svc := newFinalizer(store, classifier, nil, FinalizerOptions{})

	res, err := svc.FinalizeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsEmitted)
	assert.Equal(t, 3, res.SightingsConsumed)
	assert.Equal(t, "Processed 1 records", res.Message)

	require.Len(t, store.committed, 1)
	require.Len(t, store.committed[0], 1)
	rec := store.committed[0][0]
	assert.Equal(t, 900, rec.DurationSeconds)
	assert.InDelta(t, -67.67, rec.AvgRSSI, 0.005)
	assert.Equal(t, 3, rec.SampleCount)
	assert.Equal(t, "15m 0s", rec.SessionDuration)
	assert.Equal(t, 15, rec.AttendanceDurationMinutes)
	assert.Equal(t, models.AttendanceStatusPresent, rec.Status)
	assert.False(t, rec.AnomalyFlag)
	assert.True(t, rec.ClassifierFallback)
	assert.Equal(t, 0.5, rec.AnomalyScore)
	assert.Equal(t, HashDeviceID("AA:BB:CC:DD:EE:FF"), rec.DeviceHash)
	assert.Len(t, rec.DeviceHash, 64)
	assert.Nil(t, rec.ScheduleID)

	count, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestFinalizeEmptyStore(t *testing.T) {
	store := &pendingStore{}
	svc := newFinalizer(store, classifierStub{}, nil, FinalizerOptions{})

	res, err := svc.FinalizeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, res.RecordsEmitted)
	assert.Equal(t, "No captures to process", res.Message)
	assert.Empty(t, store.committed)
}

func TestFinalizeAnomalyOverridesSchedule(t *testing.T) {
	store := &pendingStore{}
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	ingestAll(t, store,
		sightingAt("dev", "AP-1", -60, base),
		sightingAt("dev", "AP-1", -60, base.Add(10*time.Minute)),
	)
	flagged := classifierStub{verdicts: map[string]models.AnomalyVerdict{"*": {IsAnomalous: true, Score: 0.9, RawScore: -0.9}}}
	svc := newFinalizer(store, flagged, []models.ScheduleWindow{window("sched-1", 60)}, FinalizerOptions{})

	_, err := svc.FinalizeAll(context.Background())
	require.NoError(t, err)
	rec := store.committed[0][0]
	assert.True(t, rec.AnomalyFlag)
	assert.Equal(t, models.AttendanceStatusFlagged, rec.Status)
	assert.True(t, rec.IsAbsent)
	assert.Equal(t, -0.9, rec.AnomalyRawScore)
	require.NotNil(t, rec.ScheduleID)
	assert.Equal(t, "sched-1", *rec.ScheduleID)
}

func TestFinalizeAbsenceUnderSchedule(t *testing.T) {
	cases := []struct {
		name    string
		minutes int
		status  models.AttendanceStatus
		absent  bool
	}{
		{"short session", 45, models.AttendanceStatusAbsent, true},
		{"full session", 60, models.AttendanceStatusPresent, false},
		{"long session", 75, models.AttendanceStatusPresent, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &pendingStore{}
			base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
			ingestAll(t, store,
				sightingAt("dev", "AP-1", -60, base),
				sightingAt("dev", "AP-1", -60, base.Add(time.Duration(tc.minutes)*time.Minute)),
			)
			svc := newFinalizer(store, classifierStub{}, []models.ScheduleWindow{window("sched-1", 60)}, FinalizerOptions{})

			_, err := svc.FinalizeAll(context.Background())
			require.NoError(t, err)
			rec := store.committed[0][0]
			assert.Equal(t, tc.status, rec.Status)
			assert.Equal(t, tc.absent, rec.IsAbsent)
		})
	}
}

func TestFinalizeRetryAfterCommitFailure(t *testing.T) {
	store := &pendingStore{commitErrs: []error{errors.New("insert failed")}}
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	ingestAll(t, store,
		sightingAt("a", "AP-1", -60, base),
		sightingAt("b", "AP-2", -70, base.Add(time.Minute)),
		sightingAt("a", "AP-1", -62, base.Add(2*time.Minute)),
	)
	svc := newFinalizer(store, classifierStub{}, nil, FinalizerOptions{})

	_, err := svc.FinalizeAll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrPersistence)
	assert.Empty(t, store.committed)
	count, _ := store.CountPending(context.Background())
	assert.Equal(t, 3, count)

	res, err := svc.FinalizeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordsEmitted)
	assert.Equal(t, 3, res.SightingsConsumed)
	require.Len(t, store.committed, 1)
	assert.Equal(t, "a", store.committed[0][0].DeviceID)
	assert.Equal(t, "b", store.committed[0][1].DeviceID)
}

func TestFinalizeKeepsSightingsArrivingMidRun(t *testing.T) {
	store := &pendingStore{}
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	ingestAll(t, store, sightingAt("a", "AP-1", -60, base))
	store.afterRead = func() {
		store.afterRead = nil
		ingestAll(t, store, sightingAt("late", "AP-1", -60, base.Add(time.Minute)))
	}
	svc := newFinalizer(store, classifierStub{}, nil, FinalizerOptions{})

	res, err := svc.FinalizeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsEmitted)

	left, err := store.sightingStoreStub.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "late", left[0].DeviceID)
}

func TestFinalizeGroupingStrategies(t *testing.T) {
	base := time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC)
	seed := []models.Sighting{
		sightingAt("dev", "AP-1", -60, base),
		sightingAt("dev", "AP-2", -65, base.Add(time.Minute)),
		sightingAt("dev", "AP-1", -62, base.Add(2*time.Minute)),
	}

	store := &pendingStore{}
	ingestAll(t, store, seed...)
	_, err := newFinalizer(store, classifierStub{}, nil, FinalizerOptions{GroupBy: config.GroupByDevice}).FinalizeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, store.committed[0], 1)
	rec := store.committed[0][0]
	assert.Equal(t, 2, rec.APSwitches)
	assert.Equal(t, "AP-1", rec.APID)
	assert.Equal(t, 120, rec.DurationSeconds)

	legacy := &pendingStore{}
	ingestAll(t, legacy, seed...)
	_, err = newFinalizer(legacy, classifierStub{}, nil, FinalizerOptions{GroupBy: config.GroupByDeviceAP}).FinalizeAll(context.Background())
	require.NoError(t, err)
	require.Len(t, legacy.committed[0], 2)
	for _, r := range legacy.committed[0] {
		assert.Zero(t, r.APSwitches)
	}
	assert.Equal(t, "AP-1", legacy.committed[0][0].APID)
	assert.Equal(t, 2, legacy.committed[0][0].SampleCount)
	assert.Equal(t, "AP-2", legacy.committed[0][1].APID)
}

func TestFinalizeResolvesIdentityAndPublishes(t *testing.T) {
	store := &pendingStore{}
	ingestAll(t, store, sightingAt("dev", "AP-1", -60, sessionNow.Add(-time.Hour)), sightingAt("ghost", "AP-1", -60, sessionNow.Add(-time.Hour)))
	name := "Siti"
	matric := "A123"
	publisher := &publisherStub{err: errors.New("broker down")}
	cache := &invalidatorStub{}

	schedules := NewScheduleService(&scheduleRepoStub{}, nil, time.Minute, nil, nil)
	devices := deviceDirectoryStub{devices: map[string]models.RegisteredDevice{"dev": {DeviceID: "dev", StudentName: &name, MatricNumber: &matric}}}
	svc := NewFinalizerService(store, store, classifierStub{}, schedules, devices, FinalizerOptions{Publisher: publisher, Cache: cache})

	res, err := svc.FinalizeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.RecordsEmitted)

	recs := store.committed[0]
	require.NotNil(t, recs[0].StudentName)
	assert.Equal(t, "Siti", *recs[0].StudentName)
	assert.Equal(t, "A123", *recs[0].MatricNumber)
	assert.Nil(t, recs[1].StudentName)

	assert.Len(t, publisher.published, 2)
	assert.Equal(t, []string{CacheAttendance}, cache.caches)
}

func TestFinalizeDeviceLookupFailureIsSoft(t *testing.T) {
	store := &pendingStore{}
	ingestAll(t, store, sightingAt("dev", "AP-1", -60, sessionNow))
	schedules := NewScheduleService(&scheduleRepoStub{}, nil, time.Minute, nil, nil)
	svc := NewFinalizerService(store, store, classifierStub{}, schedules, deviceDirectoryStub{err: errors.New("timeout")}, FinalizerOptions{})

	res, err := svc.FinalizeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.RecordsEmitted)
}

func TestFinalizeScheduleErrorAborts(t *testing.T) {
	store := &pendingStore{}
	ingestAll(t, store, sightingAt("dev", "AP-1", -60, sessionNow))
	schedules := NewScheduleService(&scheduleRepoStub{err: errors.New("db down")}, nil, time.Minute, nil, nil)
	svc := NewFinalizerService(store, store, classifierStub{}, schedules, nil, FinalizerOptions{})

	_, err := svc.FinalizeAll(context.Background())
	require.Error(t, err)
	assert.Empty(t, store.committed)
	count, _ := store.CountPending(context.Background())
	assert.Equal(t, 1, count)
}

func TestFinalizeAsync(t *testing.T) {
	store := &pendingStore{}
	ingestAll(t, store, sightingAt("dev", "AP-1", -60, sessionNow))
	svc := newFinalizer(store, classifierStub{}, nil, FinalizerOptions{})

	_, err := svc.FinalizeAsync()
	require.Error(t, err, "queue must be started first")

	svc.Start(context.Background())
	defer svc.Stop()

	id, err := svc.FinalizeAsync()
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st, err := svc.JobStatus(id)
		return err == nil && st.State == jobs.StateSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	st, err := svc.JobStatus(id)
	require.NoError(t, err)
	res, ok := st.Result.(*models.FinalizeResult)
	require.True(t, ok)
	assert.Equal(t, 1, res.RecordsEmitted)

	_, err = svc.JobStatus("missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestFormatSessionDuration(t *testing.T) {
	assert.Equal(t, "0m 0s", FormatSessionDuration(0))
	assert.Equal(t, "1m 5s", FormatSessionDuration(65))
	assert.Equal(t, "90m 59s", FormatSessionDuration(5459))
}
