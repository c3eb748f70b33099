package services

import (
	"context"
	"testing"

	"github.com/docforge/docforge/internal/core/coretest"
	"github.com/docforge/docforge/internal/models"
)

func seedQuotaFixture(t *testing.T) (*QuotaService, *coretest.FakeDB) {
	t.Helper()
	db := coretest.NewFakeDB()
	ctx := context.Background()

	_ = db.CreateTeam(ctx, &models.Team{ID: 1, CompanyID: 1, Alias: "a", StorageUUID: "u1"})
	_ = db.CreateTeam(ctx, &models.Team{ID: 2, CompanyID: 1, Alias: "b", StorageUUID: "u2"})
	_ = db.CreateTeam(ctx, &models.Team{ID: 3, CompanyID: 2, Alias: "other", StorageUUID: "u3"})

	// Files in both of company 1's teams, a folder (never counted) and a
	// file belonging to another company.
	_, _ = db.CreateDocument(ctx, &models.Document{ID: 10, TeamID: 1, Type: models.NodeFile, SizeBytes: 1000})
	_, _ = db.CreateDocument(ctx, &models.Document{ID: 11, TeamID: 2, Type: models.NodeFile, SizeBytes: 500})
	_, _ = db.CreateDocument(ctx, &models.Document{ID: 12, TeamID: 1, Type: models.NodeFolder, SizeBytes: 9999})
	_, _ = db.CreateDocument(ctx, &models.Document{ID: 13, TeamID: 3, Type: models.NodeFile, SizeBytes: 777})

	return NewQuotaService(db), db
}

func TestUsedStorageSumsAcrossCompanyTeams(t *testing.T) {
	svc, _ := seedQuotaFixture(t)

	used, err := svc.UsedStorage(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if used != 1500 {
		t.Errorf("used = %d, want 1500", int64(used))
	}
}

func TestMaxStorageReadsSettingFresh(t *testing.T) {
	svc, db := seedQuotaFixture(t)
	ctx := context.Background()

	max, err := svc.MaxStorage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if max != models.Gigabytes(5) {
		t.Errorf("default max = %d", int64(max))
	}

	db.Settings[SettingMaxStorageGB] = 0.5
	max, err = svc.MaxStorage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if max != models.Gigabytes(0.5) {
		t.Errorf("updated max = %d, want %d", int64(max), int64(models.Gigabytes(0.5)))
	}
}

func TestRemainingCapacityNeverNegative(t *testing.T) {
	svc, db := seedQuotaFixture(t)
	ctx := context.Background()

	db.Settings[SettingMaxStorageGB] = 0.000001 // 1000 bytes
	remaining, err := svc.RemainingCapacity(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 0 {
		t.Errorf("remaining = %d, want 0 when over quota", int64(remaining))
	}
}
