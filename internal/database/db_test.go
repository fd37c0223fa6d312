package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jgoulah/waterdelta/pkg/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "data.db"))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func bill(y int, m time.Month, d int, usage float64, amount *float64) models.UsageRecord {
	return models.UsageRecord{
		BillDate:   time.Date(y, m, d, 0, 0, 0, 0, time.UTC),
		TotalUsage: usage,
		BillAmount: amount,
	}
}

func ptr(v float64) *float64 { return &v }

func TestUpsertBills_ListNewestFirst(t *testing.T) {
	db := openTestDB(t)

	n, err := db.UpsertBills([]models.UsageRecord{
		bill(2022, time.January, 17, 12, nil),
		bill(2024, time.January, 16, 15, ptr(30)),
		bill(2023, time.January, 16, 11, ptr(21.5)),
	})
	if err != nil {
		t.Fatalf("UpsertBills failed: %v", err)
	}
	if n != 3 {
		t.Errorf("stored %d, want 3", n)
	}

	bills, err := db.ListBills()
	if err != nil {
		t.Fatalf("ListBills failed: %v", err)
	}
	if len(bills) != 3 {
		t.Fatalf("expected 3 bills, got %d", len(bills))
	}
	if bills[0].BillDate.Year() != 2024 || bills[2].BillDate.Year() != 2022 {
		t.Errorf("expected newest first, got %v .. %v", bills[0].BillDate, bills[2].BillDate)
	}
	if bills[0].BillAmount == nil || *bills[0].BillAmount != 30 {
		t.Errorf("unexpected amount on latest bill: %v", bills[0].BillAmount)
	}
	if bills[2].BillAmount != nil {
		t.Errorf("expected nil amount, got %v", *bills[2].BillAmount)
	}
}

func TestUpsertBills_ReplacesRevisedBill(t *testing.T) {
	db := openTestDB(t)

	if _, err := db.UpsertBills([]models.UsageRecord{bill(2024, time.January, 16, 15, nil)}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpsertBills([]models.UsageRecord{bill(2024, time.January, 16, 16, ptr(32))}); err != nil {
		t.Fatal(err)
	}

	bills, err := db.ListBills()
	if err != nil {
		t.Fatal(err)
	}
	if len(bills) != 1 {
		t.Fatalf("expected 1 bill after upsert, got %d", len(bills))
	}
	if bills[0].TotalUsage != 16 || bills[0].BillAmount == nil || *bills[0].BillAmount != 32 {
		t.Errorf("expected revised bill, got %+v", bills[0])
	}
}

func TestEstimates_PublishFlow(t *testing.T) {
	db := openTestDB(t)

	if latest, err := db.LatestEstimate(); err != nil || latest != nil {
		t.Fatalf("expected no estimates, got %v, %v", latest, err)
	}

	base := time.Date(2024, time.January, 20, 8, 0, 0, 0, time.UTC)
	first := models.Estimate{
		ID:              "first",
		BillDate:        time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC),
		CurrentUsage:    15,
		CurrentAmount:   30,
		AverageBaseline: 11,
		Difference:      4,
		PricePerUnit:    2,
		AdditionalCost:  8,
		Baselines:       3,
		Strategy:        "nearest",
		CreatedAt:       base,
	}
	second := first
	second.ID = "second"
	second.CreatedAt = base.Add(1500 * time.Millisecond)

	for _, e := range []models.Estimate{first, second} {
		if err := db.InsertEstimate(&e); err != nil {
			t.Fatalf("InsertEstimate failed: %v", err)
		}
	}

	latest, err := db.LatestEstimate()
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil || latest.ID != "second" {
		t.Fatalf("expected second as latest, got %+v", latest)
	}
	if !latest.CreatedAt.Equal(second.CreatedAt) {
		t.Errorf("created_at = %v, want %v", latest.CreatedAt, second.CreatedAt)
	}
	if latest.AdditionalCost != 8 || latest.Baselines != 3 {
		t.Errorf("unexpected estimate: %+v", latest)
	}

	unpublished, err := db.ListUnpublishedEstimates()
	if err != nil {
		t.Fatal(err)
	}
	if len(unpublished) != 2 || unpublished[0].ID != "first" {
		t.Fatalf("expected both unpublished oldest first, got %+v", unpublished)
	}

	if err := db.MarkPublished("first"); err != nil {
		t.Fatal(err)
	}
	unpublished, err = db.ListUnpublishedEstimates()
	if err != nil {
		t.Fatal(err)
	}
	if len(unpublished) != 1 || unpublished[0].ID != "second" {
		t.Errorf("expected only second unpublished, got %+v", unpublished)
	}

	all, err := db.ListEstimates()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Errorf("expected 2 estimates, got %d", len(all))
	}
}
