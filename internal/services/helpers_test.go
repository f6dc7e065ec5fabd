package services

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/labdesk/internal/blob"
	"github.com/diewo77/labdesk/internal/models"
	"github.com/diewo77/labdesk/internal/policy"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// createUser inserts an active account with password "Secret123".
func createUser(t *testing.T, db *gorm.DB, username string, staff, super bool) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("Secret123"), bcrypt.MinCost)
	require.NoError(t, err)
	u := &models.User{Username: username, Password: string(hash), IsActive: true, IsStaff: staff, IsSuperuser: super}
	require.NoError(t, db.Create(u).Error)
	return u
}

func actorOf(u *models.User) policy.Actor { return policy.ActorFor(u) }

type recordingObserver struct {
	mu       sync.Mutex
	statuses []string
	lookups  []string
	prices   int
}

func (o *recordingObserver) StatusChanged(family, status, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, family+"/"+status+"/"+result)
}

func (o *recordingObserver) VerifyLookup(result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.lookups = append(o.lookups, result)
}

func (o *recordingObserver) PriceChanged() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices++
}

func newLabRequest(t *testing.T, db *gorm.DB, owner uint, prices ...int64) *models.LabTestRequest {
	t.Helper()
	req := &models.LabTestRequest{UserID: owner, ProjectName: "Bridge", ReferenceNumber: "REF-1", Status: models.StatusRequested}
	for i, p := range prices {
		req.Items = append(req.Items, models.LabTestItem{Lab: "Geo", Subcategory: "Soil", TestName: fmt.Sprintf("T%d", i), Price: p})
	}
	require.NoError(t, db.Create(req).Error)
	return req
}

func newConsultancy(t *testing.T, db *gorm.DB, owner uint) *models.ConsultancyRequest {
	t.Helper()
	req := &models.ConsultancyRequest{UserID: owner, ProjectName: "Dam", Organization: "Acme", Status: models.StatusRequested}
	require.NoError(t, db.Create(req).Error)
	return req
}

func memStore() *blob.Memory { return blob.NewMemory() }
