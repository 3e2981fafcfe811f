package db_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/USA-RedDragon/crashgate/internal/config"
	"github.com/USA-RedDragon/crashgate/internal/db"
	"github.com/USA-RedDragon/crashgate/internal/db/models"
	"github.com/mattn/go-nulltype"
	"gorm.io/gorm"
)

func newDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &config.Config{}
	cfg.Persistence.Database.Driver = config.DatabaseDriverSQLite
	cfg.Persistence.Database.Database = filepath.Join(t.TempDir(), "test.db")
	database, err := db.MakeDB(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(database) })
	return database
}

func TestUploadRecords(t *testing.T) {
	t.Parallel()
	database := newDB(t)

	for i, dbName := range []string{"fred", "fred", "barney"} {
		record := &models.UploadRecord{
			Database:    dbName,
			Application: "Game",
			Version:     "1.0",
			Target:      "StandaloneWindows64",
			Status:      models.UploadStatusSucceeded,
			ArchiveKey:  nulltype.NullStringOf("fred/Game/1.0/x.zip"),
			Duration:    time.Duration(i) * time.Second,
			Artifacts: []models.UploadedArtifact{
				{Name: "game.dll", Size: 10, StatusCode: 200},
				{Name: "game.pdb", Size: 20, StatusCode: 200},
			},
		}
		if err := models.CreateUploadRecord(database, record); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	records, err := models.ListUploadRecords(database, "fred", 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].ID < records[1].ID {
		t.Error("records should be listed newest first")
	}
	if len(records[0].Artifacts) != 2 {
		t.Errorf("artifacts not preloaded: %v", records[0].Artifacts)
	}
	if !records[0].ArchiveKey.Valid() || records[0].Error.Valid() {
		t.Errorf("unexpected nullable fields: %+v", records[0])
	}

	count, err := models.CountUploadRecords(database, "")
	if err != nil || count != 3 {
		t.Errorf("count = %d, %v", count, err)
	}

	record, err := models.FindUploadRecordByID(database, records[1].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Artifacts[1].Name != "game.pdb" {
		t.Errorf("unexpected artifact %+v", record.Artifacts[1])
	}

	page, err := models.ListUploadRecords(database, "", 1, 1)
	if err != nil || len(page) != 1 {
		t.Errorf("pagination failed: %v, %v", page, err)
	}
}

func TestReports(t *testing.T) {
	t.Parallel()
	database := newDB(t)

	reports := []models.Report{
		{ReportID: "a", Database: "fred", Kind: "exception", Submitted: true, Reason: "accepted"},
		{ReportID: "b", Database: "fred", Kind: "log", Submitted: false, Reason: "rate_limited"},
	}
	for i := range reports {
		if err := models.CreateReport(database, &reports[i]); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	all, err := models.ListReports(database, false, 10, 0)
	if err != nil || len(all) != 2 {
		t.Fatalf("ListReports() = %v, %v", all, err)
	}
	submitted, err := models.ListReports(database, true, 10, 0)
	if err != nil || len(submitted) != 1 || submitted[0].ReportID != "a" {
		t.Errorf("ListReports(submitted) = %v, %v", submitted, err)
	}
	found, err := models.FindReportByReportID(database, "b")
	if err != nil || found.Reason != "rate_limited" {
		t.Errorf("FindReportByReportID() = %+v, %v", found, err)
	}
}

func TestUnknownDriver(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{}
	cfg.Persistence.Database.Driver = "oracle"
	if _, err := db.MakeDB(cfg); err == nil {
		t.Error("expected an error for an unknown driver")
	}
}
