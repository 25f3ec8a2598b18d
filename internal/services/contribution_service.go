package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"mahber_app_echo/internal/models"
)

// rolloverLeadDays is how many days ahead of a period's start date the
// rollover sweep materializes it, so members get notice before the period
// begins.
const rolloverLeadDays = 3

// ContributionService materializes contribution periods for Mahber members
// and manages the versioned contribution terms they are billed under.
type ContributionService struct {
	db *gorm.DB
}

func NewContributionService(db *gorm.DB) *ContributionService {
	return &ContributionService{db: db}
}

// TermForDate returns the term in effect on a given date: the latest term
// whose effective_from is on or before it.
func (s *ContributionService) TermForDate(tx *gorm.DB, mahberID uint, date time.Time) (*models.ContributionTerm, error) {
	var term models.ContributionTerm
	err := tx.Where("mahber_id = ? AND effective_from <= ?", mahberID, date).
		Order("effective_from desc, id desc").
		First(&term).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoTermFound
		}
		return nil, err
	}
	return &term, nil
}

// ActiveTerm returns the Mahber's currently active term
func (s *ContributionService) ActiveTerm(tx *gorm.DB, mahberID uint) (*models.ContributionTerm, error) {
	var term models.ContributionTerm
	err := tx.Where("mahber_id = ? AND status = ?", mahberID, models.TermStatusActive).
		Order("effective_from desc, id desc").
		First(&term).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveTerm
		}
		return nil, err
	}
	return &term, nil
}

// findOrCreateContribution creates the contribution unless a row for the
// same (mahber, member, period) already exists, in which case the existing
// row is loaded into c. The composite unique index backs up the existence
// check, so a concurrent run losing the race lands here too instead of
// duplicating the period.
func (s *ContributionService) findOrCreateContribution(tx *gorm.DB, c *models.Contribution) (bool, error) {
	var existing models.Contribution
	err := tx.Where("mahber_id = ? AND user_id = ? AND period_number = ?",
		c.MahberID, c.UserID, c.PeriodNumber).First(&existing).Error
	if err == nil {
		*c = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}

	if c.UUID == "" {
		c.UUID = uuid.New().String()
	}

	if err := tx.Create(c).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race to another run; load the winner
			if err := tx.Where("mahber_id = ? AND user_id = ? AND period_number = ?",
				c.MahberID, c.UserID, c.PeriodNumber).First(c).Error; err != nil {
				return false, err
			}
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateInitialContributions creates the opening contribution period for a
// batch of members, typically right after the Mahber itself is created.
// Existing rows for the same period are skipped, so the call is idempotent.
func (s *ContributionService) CreateInitialContributions(mahberID uint, userIDs []uint, startPeriod int, periodStartDate time.Time) ([]models.Contribution, error) {
	term, err := s.TermForDate(s.db, mahberID, periodStartDate)
	if errors.Is(err, ErrNoTermFound) {
		// No term in effect yet on the start date; bill under the one
		// that takes effect first
		var upcoming models.ContributionTerm
		ferr := s.db.Where("mahber_id = ?", mahberID).
			Order("effective_from asc, id asc").First(&upcoming).Error
		if ferr != nil {
			if errors.Is(ferr, gorm.ErrRecordNotFound) {
				return nil, ErrNoTermFound
			}
			return nil, ferr
		}
		term = &upcoming
	} else if err != nil {
		return nil, err
	}

	var created []models.Contribution
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, userID := range userIDs {
			c := models.Contribution{
				MahberID:           mahberID,
				UserID:             userID,
				PeriodNumber:       startPeriod,
				ContributionTermID: term.ID,
				AmountDue:          term.Amount,
				AmountPaid:         decimal.Zero,
				Status:             models.ContributionStatusUnpaid,
				PeriodStartDate:    periodStartDate,
			}
			isNew, err := s.findOrCreateContribution(tx, &c)
			if err != nil {
				return err
			}
			if isNew {
				created = append(created, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreateNewContributionPeriod materializes one period for the given members
// under the term in effect on the period start date, then queues a
// recurring-payment notice for every newly created row. The notice is fire
// and forget; the contribution rows are already committed when it runs.
func (s *ContributionService) CreateNewContributionPeriod(mahberID uint, userIDs []uint, periodNumber int, periodStartDate time.Time) ([]models.Contribution, error) {
	term, err := s.TermForDate(s.db, mahberID, periodStartDate)
	if err != nil {
		return nil, err
	}

	var created []models.Contribution
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, userID := range userIDs {
			c := models.Contribution{
				MahberID:           mahberID,
				UserID:             userID,
				PeriodNumber:       periodNumber,
				ContributionTermID: term.ID,
				AmountDue:          term.Amount,
				AmountPaid:         decimal.Zero,
				Status:             models.ContributionStatusUnpaid,
				PeriodStartDate:    periodStartDate,
			}
			isNew, err := s.findOrCreateContribution(tx, &c)
			if err != nil {
				return err
			}
			if isNew {
				created = append(created, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyNewPeriods(mahberID, created)
	return created, nil
}

// CreateFirstContributionForMember creates period 1 for a single member
// joining an already-running Mahber. Idempotent: an existing period-1 row
// is returned rather than treated as an error.
func (s *ContributionService) CreateFirstContributionForMember(mahberID, userID uint) (*models.Contribution, error) {
	var result models.Contribution
	err := s.db.Transaction(func(tx *gorm.DB) error {
		c, err := s.createFirstContribution(tx, mahberID, userID)
		if err != nil {
			return err
		}
		result = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *ContributionService) createFirstContribution(tx *gorm.DB, mahberID, userID uint) (*models.Contribution, error) {
	var mahber models.Mahber
	if err := tx.First(&mahber, mahberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMahberNotFound
		}
		return nil, err
	}

	var membership models.MahberMember
	if err := tx.Where("mahber_id = ? AND user_id = ?", mahberID, userID).First(&membership).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}

	term, err := s.ActiveTerm(tx, mahberID)
	if err != nil {
		return nil, err
	}

	c := models.Contribution{
		MahberID:           mahberID,
		UserID:             userID,
		PeriodNumber:       1,
		ContributionTermID: term.ID,
		AmountDue:          term.Amount,
		AmountPaid:         decimal.Zero,
		Status:             models.ContributionStatusUnpaid,
		PeriodStartDate:    term.EffectiveFrom,
	}
	if _, err := s.findOrCreateContribution(tx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// AcceptMember flips an invited membership to accepted and creates the
// member's first contribution in the same transaction.
func (s *ContributionService) AcceptMember(mahberID, userID uint) (*models.Contribution, error) {
	var result models.Contribution
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var membership models.MahberMember
		if err := tx.Where("mahber_id = ? AND user_id = ?", mahberID, userID).First(&membership).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMemberNotFound
			}
			return err
		}

		if membership.Status != models.MembershipStatusAccepted {
			now := time.Now()
			membership.Status = models.MembershipStatusAccepted
			membership.AcceptedAt = &now
			if err := tx.Save(&membership).Error; err != nil {
				return err
			}
		}

		c, err := s.createFirstContribution(tx, mahberID, userID)
		if err != nil {
			return err
		}
		result = *c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAcceptedMembers returns the accepted roster of a Mahber with user
// records preloaded.
func (s *ContributionService) ListAcceptedMembers(mahberID uint) ([]models.MahberMember, error) {
	var members []models.MahberMember
	err := s.db.Preload("User").
		Where("mahber_id = ? AND status = ?", mahberID, models.MembershipStatusAccepted).
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// ChangeContributionTerm supersedes the active term with a new one. Old
// terms are flipped inactive but kept; past contributions stay attributed
// to the term they were billed under. Members get a change notice.
func (s *ContributionService) ChangeContributionTerm(mahberID uint, amount decimal.Decimal, frequency int, unit models.TermUnit, effectiveFrom time.Time) (*models.ContributionTerm, error) {
	var term models.ContributionTerm
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var mahber models.Mahber
		if err := tx.First(&mahber, mahberID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrMahberNotFound
			}
			return err
		}

		if err := tx.Model(&models.ContributionTerm{}).
			Where("mahber_id = ? AND status = ?", mahberID, models.TermStatusActive).
			Update("status", models.TermStatusInactive).Error; err != nil {
			return err
		}

		term = models.ContributionTerm{
			MahberID:      mahberID,
			Amount:        amount,
			Frequency:     frequency,
			Unit:          unit,
			EffectiveFrom: effectiveFrom,
			Status:        models.TermStatusActive,
		}
		return tx.Create(&term).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifyTermChange(mahberID, &term)
	return &term, nil
}

// RolloverMahber advances every accepted member of the Mahber to their next
// due period. Periods are created once their start date falls within the
// lead window; members that error are logged and skipped so one bad roster
// entry doesn't stall the rest.
func (s *ContributionService) RolloverMahber(mahberID uint) (int, error) {
	var mahber models.Mahber
	if err := s.db.First(&mahber, mahberID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrMahberNotFound
		}
		return 0, err
	}

	if mahber.GatewayAccountStatus != models.GatewayAccountStatusActive {
		return 0, nil
	}

	term, err := s.ActiveTerm(s.db, mahberID)
	if err != nil {
		return 0, err
	}

	members, err := s.ListAcceptedMembers(mahberID)
	if err != nil {
		return 0, err
	}

	horizon := time.Now().AddDate(0, 0, rolloverLeadDays)

	var created []models.Contribution
	for _, m := range members {
		rows, err := s.rolloverMember(mahberID, m.UserID, term, horizon)
		if err != nil {
			log.Printf("Rollover failed for mahber %d user %d: %v", mahberID, m.UserID, err)
			continue
		}
		created = append(created, rows...)
	}

	s.notifyNewPeriods(mahberID, created)
	return len(created), nil
}

// rolloverMember creates every period for one member whose start date falls
// on or before the horizon. A member with no contributions yet starts at
// period 1 on the term's effective date.
func (s *ContributionService) rolloverMember(mahberID, userID uint, term *models.ContributionTerm, horizon time.Time) ([]models.Contribution, error) {
	var created []models.Contribution

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var last models.Contribution
		err := tx.Where("mahber_id = ? AND user_id = ?", mahberID, userID).
			Order("period_number desc").First(&last).Error

		nextPeriod := 1
		nextStart := term.EffectiveFrom
		if err == nil {
			nextPeriod = last.PeriodNumber + 1
			nextStart = term.NextPeriodStart(last.PeriodStartDate)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		for !nextStart.After(horizon) {
			// Bill under whatever term is in effect on the period date
			periodTerm, err := s.TermForDate(tx, mahberID, nextStart)
			if err != nil {
				return err
			}

			c := models.Contribution{
				MahberID:           mahberID,
				UserID:             userID,
				PeriodNumber:       nextPeriod,
				ContributionTermID: periodTerm.ID,
				AmountDue:          periodTerm.Amount,
				AmountPaid:         decimal.Zero,
				Status:             models.ContributionStatusUnpaid,
				PeriodStartDate:    nextStart,
			}
			isNew, err := s.findOrCreateContribution(tx, &c)
			if err != nil {
				return err
			}
			if isNew {
				created = append(created, c)
			}

			nextPeriod++
			nextStart = periodTerm.NextPeriodStart(nextStart)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// notifyNewPeriods queues one recurring-payment notice covering the freshly
// created contributions. Enqueue failures are logged, never propagated: the
// rows are committed and billing must not depend on notification delivery.
func (s *ContributionService) notifyNewPeriods(mahberID uint, created []models.Contribution) {
	if len(created) == 0 {
		return
	}

	var mahber models.Mahber
	if err := s.db.First(&mahber, mahberID).Error; err != nil {
		log.Printf("Failed to load mahber %d for notification: %v", mahberID, err)
		return
	}

	// One notice per distinct amount and due date: a catch-up run can span
	// a term change, and every recipient must be quoted their own price
	type noticeKey struct {
		amount string
		due    string
	}
	groups := make(map[noticeKey][]NotificationRecipient)
	for _, c := range created {
		var user models.User
		if err := s.db.First(&user, c.UserID).Error; err != nil {
			log.Printf("Failed to load user %d for notification: %v", c.UserID, err)
			continue
		}
		key := noticeKey{
			amount: c.AmountDue.StringFixed(2),
			due:    c.PeriodStartDate.Format("2006-01-02"),
		}
		groups[key] = append(groups[key], NotificationRecipient{
			UserID:      user.ID,
			Name:        user.Name,
			Email:       user.Email,
			Phone:       user.Phone,
			PaymentLink: publicPaymentLink(c.UUID),
		})
	}

	for key, recipients := range groups {
		args := NotificationArgs{
			Recipients: recipients,
			Template:   TemplateRecurringNotice,
			Subject:    fmt.Sprintf("Contribution due for %s", mahber.Name),
			MahberName: mahber.Name,
			Amount:     key.amount,
			DueDate:    key.due,
		}
		if err := EnqueueNotification(s.db, args); err != nil {
			log.Printf("Failed to enqueue recurring notice for mahber %d: %v", mahberID, err)
		}
	}
}

// notifyTermChange tells every accepted member about the new schedule
func (s *ContributionService) notifyTermChange(mahberID uint, term *models.ContributionTerm) {
	members, err := s.ListAcceptedMembers(mahberID)
	if err != nil {
		log.Printf("Failed to load members of mahber %d for term-change notice: %v", mahberID, err)
		return
	}
	if len(members) == 0 {
		return
	}

	var mahber models.Mahber
	if err := s.db.First(&mahber, mahberID).Error; err != nil {
		log.Printf("Failed to load mahber %d for term-change notice: %v", mahberID, err)
		return
	}

	recipients := make([]NotificationRecipient, 0, len(members))
	for _, m := range members {
		recipients = append(recipients, NotificationRecipient{
			UserID: m.UserID,
			Name:   m.User.Name,
			Email:  m.User.Email,
			Phone:  m.User.Phone,
		})
	}

	args := NotificationArgs{
		Recipients: recipients,
		Template:   TemplateTermChange,
		Subject:    fmt.Sprintf("Contribution change for %s", mahber.Name),
		MahberName: mahber.Name,
		Amount:     term.Amount.StringFixed(2),
		Interval:   fmt.Sprintf("%d %s", term.Frequency, term.Unit),
		DueDate:    term.EffectiveFrom.Format("2006-01-02"),
	}
	if err := EnqueueNotification(s.db, args); err != nil {
		log.Printf("Failed to enqueue term-change notice for mahber %d: %v", mahberID, err)
	}
}

func publicPaymentLink(contributionUUID string) string {
	base := os.Getenv("APP_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	return base + "/p/" + contributionUUID
}
