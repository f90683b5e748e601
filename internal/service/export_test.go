package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/civicworks/pulse/internal/domain"
	"github.com/civicworks/pulse/internal/logger"
	"github.com/civicworks/pulse/internal/repository"
	"gorm.io/gorm"
)

// memoryStorage captures uploads for assertions.
type memoryStorage struct {
	objects map[string][]byte
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.objects[key] = data
	return nil
}

func (m *memoryStorage) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.objects[key])), nil
}

func (m *memoryStorage) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := m.objects[key]
	return ok, nil
}

func (m *memoryStorage) EnsureBucket(ctx context.Context) error { return nil }

func newExportService(db *gorm.DB, store *memoryStorage, clock Clock) *ExportService {
	log := logger.New(&logger.Config{Level: "error"})
	return NewExportService(
		repository.NewCommunityRepository(db),
		repository.NewMetricRepository(db),
		repository.NewDepartmentRepository(db),
		repository.NewUserRepository(db),
		store,
		log,
		clock,
	)
}

func TestExportLeaderboard(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	periodStart := time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	seedSnapshot(t, db, alice.ID, 1, 120, 3, periodStart)
	seedSnapshot(t, db, bob.ID, 2, 80, 2, periodStart)

	store := newMemoryStorage()
	svc := newExportService(db, store, func() time.Time { return now })

	key, err := svc.ExportLeaderboard(ctx, domain.PeriodAllTime)
	if err != nil {
		t.Fatalf("ExportLeaderboard failed: %v", err)
	}
	if !strings.HasPrefix(key, "exports/leaderboard/all_time/") || !strings.HasSuffix(key, ".csv") {
		t.Errorf("unexpected export key %q", key)
	}

	data, ok := store.objects[key]
	if !ok {
		t.Fatal("expected export to be uploaded")
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d records", len(records))
	}
	if records[0][0] != "rank" {
		t.Errorf("expected rank header, got %q", records[0][0])
	}
	// Rows come back in score order: alice first.
	if records[1][0] != "1" || records[1][1] != alice.ID.String() {
		t.Errorf("unexpected first row: %v", records[1])
	}
	if records[1][2] != "120.00" {
		t.Errorf("expected formatted overall score 120.00, got %q", records[1][2])
	}
}

func TestExportDepartmentMetrics(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	dept := seedDepartment(t, db, "transit")
	periodStart := time.Date(2025, 6, 14, 0, 0, 0, 0, time.UTC)
	metricRepo := repository.NewMetricRepository(db)
	batch := []domain.MetricSnapshot{
		{DepartmentID: dept.ID, MetricType: domain.MetricRequestVolume, PeriodType: domain.PeriodDaily, PeriodStart: periodStart, PeriodEnd: periodStart.AddDate(0, 0, 1), Value: 12},
	}
	if err := metricRepo.UpsertBatch(ctx, batch); err != nil {
		t.Fatalf("UpsertBatch failed: %v", err)
	}

	store := newMemoryStorage()
	svc := newExportService(db, store, func() time.Time { return now })

	key, err := svc.ExportDepartmentMetrics(ctx, domain.PeriodDaily)
	if err != nil {
		t.Fatalf("ExportDepartmentMetrics failed: %v", err)
	}

	records, err := csv.NewReader(bytes.NewReader(store.objects[key])).ReadAll()
	if err != nil {
		t.Fatalf("export is not valid CSV: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected header plus 1 row, got %d records", len(records))
	}
	row := records[1]
	if row[0] != "transit" || row[1] != "request_volume" || row[4] != "12.00" {
		t.Errorf("unexpected metrics row: %v", row)
	}
}
