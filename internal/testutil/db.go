package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/project-access-api/internal/database"
	"github.com/straye-as/project-access-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a fresh SQLite database in a temp dir and migrates every model.
// A file (not :memory:) is used so that every pooled connection sees the same data.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err, "failed to open test database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db), "failed to migrate test database")
	return db
}

// CreateTestUser inserts a user with the given global role
func CreateTestUser(t *testing.T, db *gorm.DB, role domain.Role) *domain.User {
	t.Helper()

	id := uuid.New()
	user := &domain.User{
		ID:          id,
		Email:       fmt.Sprintf("%s@example.com", id.String()[:8]),
		DisplayName: "Test User " + id.String()[:4],
		Confirmed:   true,
	}
	require.NoError(t, db.Create(user).Error)
	require.NoError(t, db.Create(&domain.UserRole{UserID: id, Role: role}).Error)
	return user
}

// CreateTestProject inserts a project created by creator, with the creator as owner
func CreateTestProject(t *testing.T, db *gorm.DB, creator uuid.UUID, name string) *domain.Project {
	t.Helper()

	project := &domain.Project{
		Name:      name,
		Status:    domain.ProjectStatusActive,
		CreatedBy: creator,
	}
	require.NoError(t, db.Create(project).Error)
	AddTestMember(t, db, project.ID, creator, domain.MemberRoleOwner)
	return project
}

// AddTestMember inserts a membership row
func AddTestMember(t *testing.T, db *gorm.DB, projectID, userID uuid.UUID, role domain.MemberRole) *domain.ProjectMember {
	t.Helper()

	member := &domain.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	require.NoError(t, db.Create(member).Error)
	return member
}

// CountRows returns the number of rows of model matching the optional condition
func CountRows(t *testing.T, db *gorm.DB, model interface{}, conds ...interface{}) int64 {
	t.Helper()

	var count int64
	query := db.Model(model)
	if len(conds) > 0 {
		query = query.Where(conds[0], conds[1:]...)
	}
	require.NoError(t, query.Count(&count).Error)
	return count
}
