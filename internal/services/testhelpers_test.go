package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mahber_app_echo/internal/models"
)

// newTestDB opens an isolated in-memory database. A single connection is
// enforced because every pooled connection would otherwise get its own
// empty in-memory database.
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

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

type testFixture struct {
	mahber models.Mahber
	users  []models.User
	term   models.ContributionTerm
}

// seedMahber creates a Mahber with an active gateway account, an active
// term and the requested number of accepted members.
func seedMahber(t *testing.T, db *gorm.DB, amount decimal.Decimal, frequency int, unit models.TermUnit, effectiveFrom time.Time, memberCount int) testFixture {
	t.Helper()

	mahber := models.Mahber{
		Name:                 "Test Mahber",
		Currency:             "USD",
		GatewayAccountRef:    "acct-test",
		GatewayAccountStatus: models.GatewayAccountStatusActive,
		IsActive:             true,
	}
	if err := db.Create(&mahber).Error; err != nil {
		t.Fatalf("failed to create mahber: %v", err)
	}

	term := models.ContributionTerm{
		MahberID:      mahber.ID,
		Amount:        amount,
		Frequency:     frequency,
		Unit:          unit,
		EffectiveFrom: effectiveFrom,
		Status:        models.TermStatusActive,
	}
	if err := db.Create(&term).Error; err != nil {
		t.Fatalf("failed to create term: %v", err)
	}

	now := time.Now()
	users := make([]models.User, 0, memberCount)
	for i := 0; i < memberCount; i++ {
		user := models.User{
			Name:  fmt.Sprintf("Member %d", i+1),
			Email: fmt.Sprintf("member%d@example.com", i+1),
			Phone: fmt.Sprintf("25191100000%d", i+1),
		}
		if err := db.Create(&user).Error; err != nil {
			t.Fatalf("failed to create user: %v", err)
		}
		membership := models.MahberMember{
			MahberID:   mahber.ID,
			UserID:     user.ID,
			Status:     models.MembershipStatusAccepted,
			AcceptedAt: &now,
		}
		if err := db.Create(&membership).Error; err != nil {
			t.Fatalf("failed to create membership: %v", err)
		}
		users = append(users, user)
	}

	return testFixture{mahber: mahber, users: users, term: term}
}

// seedContribution inserts one contribution row directly, bypassing the
// generator, for allocation tests that need a known ledger state.
func seedContribution(t *testing.T, db *gorm.DB, fx testFixture, userID uint, period int, due decimal.Decimal, start time.Time) models.Contribution {
	t.Helper()

	c := models.Contribution{
		UUID:               fmt.Sprintf("test-uuid-%d-%d", userID, period),
		MahberID:           fx.mahber.ID,
		UserID:             userID,
		PeriodNumber:       period,
		ContributionTermID: fx.term.ID,
		AmountDue:          due,
		AmountPaid:         decimal.Zero,
		Status:             models.ContributionStatusUnpaid,
		PeriodStartDate:    start,
	}
	if err := db.Create(&c).Error; err != nil {
		t.Fatalf("failed to create contribution: %v", err)
	}
	return c
}

func reloadContribution(t *testing.T, db *gorm.DB, id uint) models.Contribution {
	t.Helper()
	var c models.Contribution
	if err := db.First(&c, id).Error; err != nil {
		t.Fatalf("failed to reload contribution %d: %v", id, err)
	}
	return c
}
