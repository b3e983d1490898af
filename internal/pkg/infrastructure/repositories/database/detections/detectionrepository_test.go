package detections

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/varasto-io/rfid-tracking/internal/pkg/infrastructure/repositories/database"

	"github.com/matryer/is"
)

func TestAddDeduplicatesWithinWindow(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	err := r.Add(ctx, testDetection("EPC-1", 1, base))
	is.NoErr(err)

	// a second read 3s later falls inside the 5s window
	err = r.Add(ctx, testDetection("EPC-1", 1, base.Add(3*time.Second)))
	is.True(errors.Is(err, ErrDuplicateDetection))

	// 6s later the window has passed
	err = r.Add(ctx, testDetection("EPC-1", 1, base.Add(6*time.Second)))
	is.NoErr(err)

	history, err := r.GetByEPC(ctx, "EPC-1", 0)
	is.NoErr(err)
	is.Equal(2, len(history))
}

func TestDedupWindowIsPerEPC(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	err := r.Add(ctx, testDetection("EPC-1", 1, base))
	is.NoErr(err)

	// another tag inside the same window is unaffected
	err = r.Add(ctx, testDetection("EPC-2", 1, base.Add(time.Second)))
	is.NoErr(err)
}

func TestConcurrentAddsPersistOneDetectionPerWindow(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	// overlapping antenna coverage: many near-simultaneous reads of
	// the same tag must not all pass the existence check
	var saved int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			err := r.Add(ctx, testDetection("EPC-1", 1, base.Add(time.Duration(n)*time.Millisecond)))
			if err == nil {
				atomic.AddInt32(&saved, 1)
			} else if !errors.Is(err, ErrDuplicateDetection) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}

	wg.Wait()

	is.Equal(int32(1), saved)

	history, err := r.GetByEPC(ctx, "EPC-1", 0)
	is.NoErr(err)
	is.Equal(1, len(history))
}

func TestConcurrentAddsForDistinctEPCsDoNotBlockEachOther(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	epcs := []string{"EPC-1", "EPC-2", "EPC-3", "EPC-4"}

	var wg sync.WaitGroup

	for _, epc := range epcs {
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(epc string, n int) {
				defer wg.Done()

				err := r.Add(ctx, testDetection(epc, 1, base.Add(time.Duration(n)*time.Millisecond)))
				if err != nil && !errors.Is(err, ErrDuplicateDetection) {
					t.Errorf("unexpected error for %s: %v", epc, err)
				}
			}(epc, i)
		}
	}

	wg.Wait()

	// one detection per tag survives the window
	for _, epc := range epcs {
		history, err := r.GetByEPC(ctx, epc, 0)
		is.NoErr(err)
		is.Equal(1, len(history))
	}
}

func TestGetByEPCNewestFirst(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		err := r.Add(ctx, testDetection("EPC-1", 1, base.Add(time.Duration(i)*10*time.Second)))
		is.NoErr(err)
	}

	history, err := r.GetByEPC(ctx, "EPC-1", 3)
	is.NoErr(err)
	is.Equal(3, len(history))
	is.Equal(base.Add(40*time.Second).Unix(), history[0].DetectedAt.Unix())
	is.Equal(base.Add(20*time.Second).Unix(), history[2].DetectedAt.Unix())
}

func TestGetLatestByReader(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	err := r.Add(ctx, testDetection("EPC-1", 1, base))
	is.NoErr(err)
	err = r.Add(ctx, testDetection("EPC-2", 1, base.Add(30*time.Second)))
	is.NoErr(err)

	latest, err := r.GetLatestByReader(ctx, 1)
	is.NoErr(err)
	is.Equal("EPC-2", latest.EPC)

	_, err = r.GetLatestByReader(ctx, 42)
	is.True(errors.Is(err, ErrDetectionNotFound))
}

func TestCountsByReaderAndAntenna(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	antennaA := uint(1)
	antennaB := uint(2)

	d1 := testDetection("EPC-1", 1, base)
	d1.AntennaID = &antennaA
	is.NoErr(r.Add(ctx, d1))

	d2 := testDetection("EPC-2", 1, base.Add(10*time.Second))
	d2.AntennaID = &antennaB
	is.NoErr(r.Add(ctx, d2))

	d3 := testDetection("EPC-3", 2, base.Add(20*time.Second))
	d3.AntennaID = &antennaA
	is.NoErr(r.Add(ctx, d3))

	count, err := r.CountByReaderSince(ctx, 1, base.Add(-time.Hour))
	is.NoErr(err)
	is.Equal(int64(2), count)

	count, err = r.CountByAntennaSince(ctx, 1, antennaB, base.Add(-time.Hour))
	is.NoErr(err)
	is.Equal(int64(1), count)

	// cutoff excludes everything before it
	count, err = r.CountByReaderSince(ctx, 1, base.Add(5*time.Second))
	is.NoErr(err)
	is.Equal(int64(1), count)
}

func TestGetAllChronological(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	is.NoErr(r.Add(ctx, testDetection("EPC-2", 1, base.Add(10*time.Second))))
	is.NoErr(r.Add(ctx, testDetection("EPC-1", 1, base)))

	all, err := r.GetAllChronological(ctx)
	is.NoErr(err)
	is.Equal(2, len(all))
	is.Equal("EPC-1", all[0].EPC)
	is.Equal("EPC-2", all[1].EPC)
}

func TestDeleteAll(t *testing.T) {
	is, ctx, r := testSetupDetectionRepository(t)
	base := time.Date(2025, 5, 12, 10, 0, 0, 0, time.UTC)

	is.NoErr(r.Add(ctx, testDetection("EPC-1", 1, base)))
	is.NoErr(r.Add(ctx, testDetection("EPC-2", 1, base)))

	err := r.DeleteAll(ctx)
	is.NoErr(err)

	all, err := r.GetAllChronological(ctx)
	is.NoErr(err)
	is.Equal(0, len(all))

	// the log starts over, free of the dedup history
	err = r.Add(ctx, testDetection("EPC-1", 1, base.Add(time.Second)))
	is.NoErr(err)
}

func testSetupDetectionRepository(t *testing.T) (*is.I, context.Context, Repository) {
	is := is.New(t)
	ctx := context.Background()

	r, err := NewRepository(database.NewSQLiteConnector(ctx), 5*time.Second)
	is.NoErr(err)

	return is, ctx, r
}

func testDetection(epc string, readerID uint, at time.Time) *Detection {
	rssi := -62.5
	return &Detection{
		EPC:        epc,
		ReaderID:   readerID,
		RSSI:       &rssi,
		DetectedAt: at,
	}
}
