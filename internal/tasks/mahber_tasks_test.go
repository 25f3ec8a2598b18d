package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mahber_app_echo/internal/models"
	"mahber_app_echo/internal/services"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := services.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// seedSweepMahber creates one Mahber with an active term starting
// yesterday and a single accepted member, ready for the rollover sweep.
func seedSweepMahber(t *testing.T, db *gorm.DB, name string) models.Mahber {
	t.Helper()

	mahber := models.Mahber{
		Name:                 name,
		GatewayAccountRef:    "acct-" + name,
		GatewayAccountStatus: models.GatewayAccountStatusActive,
		IsActive:             true,
	}
	require.NoError(t, db.Create(&mahber).Error)

	require.NoError(t, db.Create(&models.ContributionTerm{
		MahberID:      mahber.ID,
		Amount:        decimal.NewFromInt(100),
		Frequency:     1,
		Unit:          models.TermUnitMonth,
		EffectiveFrom: time.Now().AddDate(0, 0, -1),
		Status:        models.TermStatusActive,
	}).Error)

	user := models.User{
		Name:  "Member of " + name,
		Email: name + "@example.com",
	}
	require.NoError(t, db.Create(&user).Error)

	now := time.Now()
	require.NoError(t, db.Create(&models.MahberMember{
		MahberID:   mahber.ID,
		UserID:     user.ID,
		Status:     models.MembershipStatusAccepted,
		AcceptedAt: &now,
	}).Error)

	return mahber
}

func TestMahberRolloverSweepSkipsLockedMahber(t *testing.T) {
	db := newTestDB(t)
	m1 := seedSweepMahber(t, db, "locked")
	m2 := seedSweepMahber(t, db, "free")

	mr := miniredis.RunT(t)
	cache, err := services.NewRedisCache("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	ctx := context.Background()

	// Another worker run already holds the first Mahber's lock
	acquired, err := cache.SetNX(ctx, fmt.Sprintf("rollover:mahber:%d", m1.ID), time.Now().Unix(), time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	deps := &Deps{
		DB:            db,
		Cache:         cache,
		Contributions: services.NewContributionService(db),
	}

	result, err := MahberRolloverTask.HandleExecution(ctx, deps, models.ScheduledTask{})
	require.NoError(t, err)
	assert.Equal(t, 1, result["mahbers_swept"])
	assert.Equal(t, 1, result["created_count"])

	var lockedCount, freeCount int64
	db.Model(&models.Contribution{}).Where("mahber_id = ?", m1.ID).Count(&lockedCount)
	db.Model(&models.Contribution{}).Where("mahber_id = ?", m2.ID).Count(&freeCount)
	assert.EqualValues(t, 0, lockedCount)
	assert.EqualValues(t, 1, freeCount)

	// The unlocked Mahber's lock was released after its sweep
	require.False(t, mr.Exists(fmt.Sprintf("rollover:mahber:%d", m2.ID)))
}

func TestGatewayAccountSyncFlipsStatuses(t *testing.T) {
	db := newTestDB(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/accounts/acct-onboarding":
			json.NewEncoder(w).Encode(map[string]string{"account_id": "acct-onboarding", "status": "active"})
		case "/v1/accounts/acct-revoked":
			json.NewEncoder(w).Encode(map[string]string{"account_id": "acct-revoked", "status": "deactivated"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	t.Setenv("GATEWAY_PARTNER_BASE_URL", server.URL)

	onboarding := models.Mahber{
		Name:                 "Onboarding",
		GatewayAccountRef:    "acct-onboarding",
		GatewayAccountStatus: models.GatewayAccountStatusPending,
		IsActive:             true,
	}
	require.NoError(t, db.Create(&onboarding).Error)

	revoked := models.Mahber{
		Name:                 "Revoked",
		GatewayAccountRef:    "acct-revoked",
		GatewayAccountStatus: models.GatewayAccountStatusActive,
		IsActive:             true,
	}
	require.NoError(t, db.Create(&revoked).Error)

	deps := &Deps{
		DB:              db,
		GatewayAccounts: services.NewGatewayAccountService(),
	}

	result, err := GatewayAccountSyncTask.HandleExecution(context.Background(), deps, models.ScheduledTask{})
	require.NoError(t, err)
	assert.Equal(t, 2, result["checked"])
	assert.Equal(t, 2, result["updated"])

	var m models.Mahber
	require.NoError(t, db.First(&m, onboarding.ID).Error)
	assert.Equal(t, models.GatewayAccountStatusActive, m.GatewayAccountStatus)

	m = models.Mahber{}
	require.NoError(t, db.First(&m, revoked.ID).Error)
	assert.Equal(t, models.GatewayAccountStatusPending, m.GatewayAccountStatus)
}
