package db

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"Gin_postgres_redis_equipment_loans/config"
	"Gin_postgres_redis_equipment_loans/models"
)

// Connect opens the Postgres pool described by cfg. It does not migrate.
func Connect(cfg config.DatabaseConfig, log *slog.Logger) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	log.Info("database connected", "host", cfg.Host, "name", cfg.Name)
	return conn, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Equipment{}, &models.Borrow{}, &models.Deficiency{}); err != nil {
		return err
	}

	// 占用单元的借用：可用性查询与状态同步都走这里
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_holding_by_equipment
	  ON %s (equipment_id, approved_start)
	  WHERE status IN ('APPROVED', 'ACTIVE', 'OVERDUE', 'PENDING_RETURN');
	`, models.BorrowTable, models.BorrowTable)).Error; err != nil {
		return err
	}

	// 审批时查重叠的待审请求
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_pending_by_equipment
	  ON %s (equipment_id, requested_start)
	  WHERE status = 'PENDING';
	`, models.BorrowTable, models.BorrowTable)).Error; err != nil {
		return err
	}

	if err := db.Exec(fmt.Sprintf(`
	  DO $$ BEGIN
	    ALTER TABLE %s ADD CONSTRAINT %s_window_ordered CHECK (requested_end > requested_start);
	  EXCEPTION WHEN duplicate_object THEN NULL;
	  END $$;
	`, models.BorrowTable, models.BorrowTable)).Error; err != nil {
		return err
	}

	return nil
}
