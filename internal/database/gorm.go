package database

import (
	"database/sql"

	contextutils "metronix/internal/utils"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenGorm wraps an existing connection pool in a gorm session so the ORM
// and raw SQL share one pool and one otelsql driver.
func OpenGorm(db *sql.DB) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to open gorm session")
	}
	return gdb, nil
}
