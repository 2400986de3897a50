package test

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/celestiaorg/maasprov/internal/db"
	"github.com/celestiaorg/maasprov/internal/db/repos"
)

// NewFileBasedTestDB creates a new file-based SQLite database with the job table.
// It returns the database connection and the path to the temporary directory.
func NewFileBasedTestDB() (*gorm.DB, string, error) {
	tmpDir, err := os.MkdirTemp("", "maasprov_test")
	if err != nil {
		return nil, "", fmt.Errorf("failed to create temporary directory: %w", err)
	}

	database, err := db.NewSQLite(filepath.Join(tmpDir, "maasprov_test.db"), gormlogger.Silent)
	if err != nil {
		// Try to clean up the temporary directory, but don't fail if cleanup fails
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			fmt.Printf("Warning: failed to remove temporary directory after database error: %v\n", rmErr)
		}
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}
	return database, tmpDir, nil
}

// CleanupTestDB closes the database connection and removes the temporary directory.
func CleanupTestDB(database *gorm.DB, tmpDir string) {
	sqlDB, err := database.DB()
	if err == nil && sqlDB != nil {
		if closeErr := sqlDB.Close(); closeErr != nil {
			fmt.Printf("Error closing database connection: %v\n", closeErr)
		}
	}
	if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
		fmt.Printf("Error removing temporary directory: %v\n", rmErr)
	}
}

// SetupTestDB configures the suite to use the provided database connection.
// If nil is provided, a new file-based database is created.
func SetupTestDB(suite *Suite, database *gorm.DB) {
	if database != nil {
		suite.DB = database
	} else {
		dbConn, tmpDir, err := NewFileBasedTestDB()
		suite.Require().NoError(err, "Failed to create file-based database")
		suite.DB = dbConn

		oldCleanup := suite.cleanup
		suite.cleanup = func() {
			if oldCleanup != nil {
				oldCleanup()
			}
			CleanupTestDB(suite.DB, tmpDir)
		}
	}

	suite.JobRepo = repos.NewJobRepository(suite.DB)
}
