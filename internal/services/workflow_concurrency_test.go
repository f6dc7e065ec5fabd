package services

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/labdesk/internal/config"
	"github.com/diewo77/labdesk/internal/db"
	"github.com/diewo77/labdesk/internal/models"
)

// fileDB opens a sqlite file the way the server does, so concurrent writers
// go through the same busy timeout and locking mode.
func fileDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "labdesk.db")}
	gdb, err := db.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(models.All()...))
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}

func TestWorkflow_ConcurrentIndependentTransitions(t *testing.T) {
	gdb := fileDB(t)
	staff := createUser(t, gdb, "staff", true, false)
	svc := NewWorkflowService(gdb, &recordingObserver{})

	const n = 40
	ids := make([]uint, n)
	for i := range ids {
		ids[i] = newLabRequest(t, gdb, staff.ID, 100).ID
	}

	ctx := context.Background()
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			change := StatusChange{Status: "approved"}
			if i%2 == 1 {
				change = StatusChange{Status: "report-delivered", Code: fmt.Sprintf("%08d", 10000000+i)}
			}
			_, errs[i] = svc.SetLabStatus(ctx, actorOf(staff), id, change)
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", ids[i])
	}
	var delivered int64
	require.NoError(t, gdb.Model(&models.LabTestRequest{}).Where("status = ?", models.StatusReportDelivered).Count(&delivered).Error)
	assert.EqualValues(t, n/2, delivered)
}

func TestWorkflow_ConcurrentDeliverySameCodeAcrossFamilies(t *testing.T) {
	gdb := fileDB(t)
	staff := createUser(t, gdb, "staff", true, false)
	svc := NewWorkflowService(gdb, nil)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		code := fmt.Sprintf("%08d", 20000000+round)
		lab := newLabRequest(t, gdb, staff.ID)
		cons := newConsultancy(t, gdb, staff.ID)
		deliver := StatusChange{Status: "report-delivered", Code: code}

		var labErr, consErr error
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, labErr = svc.SetLabStatus(ctx, actorOf(staff), lab.ID, deliver)
		}()
		go func() {
			defer wg.Done()
			_, consErr = svc.SetConsultancyStatus(ctx, actorOf(staff), cons.ID, deliver)
		}()
		wg.Wait()

		// exactly one side wins and the loser sees the duplicate, not a lock error
		if labErr == nil {
			assert.ErrorIs(t, consErr, ErrDuplicateCode, "round %d", round)
		} else {
			assert.ErrorIs(t, labErr, ErrDuplicateCode, "round %d", round)
			assert.NoError(t, consErr, "round %d", round)
		}

		var labs, conss int64
		require.NoError(t, gdb.Model(&models.LabTestRequest{}).Where("report_verification_code = ?", code).Count(&labs).Error)
		require.NoError(t, gdb.Model(&models.ConsultancyRequest{}).Where("report_verification_code = ?", code).Count(&conss).Error)
		assert.EqualValues(t, 1, labs+conss, "round %d", round)
	}
}
