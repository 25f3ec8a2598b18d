package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"mahber_app_echo/internal/models"
)

// rolloverLockTTL bounds how long a per-Mahber rollover lock can be held.
// Generous compared to a single Mahber's sweep so a crashed worker can't
// wedge the schedule for long.
const rolloverLockTTL = 10 * time.Minute

// MahberRolloverTaskDef is the daily sweep that advances contribution
// periods for every active Mahber. One Mahber failing is logged and
// skipped; the sweep carries on.
type MahberRolloverTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *MahberRolloverTaskDef) TaskID() string {
	return "mahber_rollover"
}

// HandleExecution iterates active Mahbers sequentially, taking a Redis
// lock per Mahber so an overlapping worker run cannot double-generate
// periods.
func (t *MahberRolloverTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	var mahbers []models.Mahber
	if err := deps.DB.Where("is_active = ? AND gateway_account_status = ?",
		true, models.GatewayAccountStatusActive).Find(&mahbers).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch mahbers: %w", err)
	}

	swept := 0
	createdTotal := 0
	failures := 0

	for _, mahber := range mahbers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var lockKey string
		if deps.Cache != nil {
			lockKey = fmt.Sprintf("rollover:mahber:%d", mahber.ID)
			acquired, err := deps.Cache.SetNX(ctx, lockKey, time.Now().Unix(), rolloverLockTTL)
			if err != nil {
				log.Printf("Rollover lock error for mahber %d: %v", mahber.ID, err)
				lockKey = ""
			} else if !acquired {
				log.Printf("Rollover for mahber %d already running, skipping", mahber.ID)
				continue
			}
		}

		created, err := deps.Contributions.RolloverMahber(mahber.ID)
		if lockKey != "" {
			if derr := deps.Cache.Delete(ctx, lockKey); derr != nil {
				log.Printf("Failed to release rollover lock for mahber %d: %v", mahber.ID, derr)
			}
		}
		if err != nil {
			log.Printf("Rollover failed for mahber %d: %v", mahber.ID, err)
			failures++
			continue
		}
		swept++
		createdTotal += created
	}

	return map[string]interface{}{
		"status":        "success",
		"mahbers_swept": swept,
		"created_count": createdTotal,
		"failures":      failures,
	}, nil
}

// MahberRolloverTask is the singleton instance of MahberRolloverTaskDef
var MahberRolloverTask = &MahberRolloverTaskDef{}

// GatewayAccountSyncTaskDef reconciles local gateway-account flags with the
// processor. Accounts confirmed active flip to active; active accounts the
// gateway no longer qualifies fall back to pending.
type GatewayAccountSyncTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *GatewayAccountSyncTaskDef) TaskID() string {
	return "gateway_account_sync"
}

// HandleExecution re-checks every onboarded Mahber account against the
// partner API.
func (t *GatewayAccountSyncTaskDef) HandleExecution(ctx context.Context, deps *Deps, task models.ScheduledTask) (map[string]interface{}, error) {
	var mahbers []models.Mahber
	err := deps.DB.Where("gateway_account_ref <> '' AND gateway_account_status IN ?",
		[]models.GatewayAccountStatus{models.GatewayAccountStatusPending, models.GatewayAccountStatusActive}).
		Find(&mahbers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch mahbers: %w", err)
	}

	checked := 0
	updated := 0
	failures := 0

	for _, mahber := range mahbers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		status, err := deps.GatewayAccounts.GetAccountStatus(mahber.GatewayAccountRef)
		if err != nil {
			log.Printf("Account status check failed for mahber %d: %v", mahber.ID, err)
			failures++
			continue
		}
		checked++

		next := models.GatewayAccountStatusPending
		if status == "active" {
			next = models.GatewayAccountStatusActive
		}

		if next != mahber.GatewayAccountStatus {
			if err := deps.DB.Model(&models.Mahber{}).Where("id = ?", mahber.ID).
				Update("gateway_account_status", next).Error; err != nil {
				log.Printf("Failed to update account status for mahber %d: %v", mahber.ID, err)
				failures++
				continue
			}
			updated++
		}
	}

	return map[string]interface{}{
		"status":   "success",
		"checked":  checked,
		"updated":  updated,
		"failures": failures,
	}, nil
}

// GatewayAccountSyncTask is the singleton instance of GatewayAccountSyncTaskDef
var GatewayAccountSyncTask = &GatewayAccountSyncTaskDef{}
