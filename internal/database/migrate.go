package database

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// schema creates the scheduling tables.  facilities is owned by the club
// service in production; it is created here so a fresh database works.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS facilities (
        id        BIGINT UNSIGNED NOT NULL PRIMARY KEY,
        club_id   BIGINT UNSIGNED NOT NULL,
        name      VARCHAR(255)    NOT NULL,
        sport     VARCHAR(64)     NOT NULL DEFAULT '',
        timezone  VARCHAR(64)     NOT NULL DEFAULT 'UTC'
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS slots (
        id                  CHAR(36)        NOT NULL PRIMARY KEY,
        facility_id         BIGINT UNSIGNED NOT NULL,
        start_at            DATETIME        NOT NULL,
        end_at              DATETIME        NOT NULL,
        price               DECIMAL(12,2)   NOT NULL DEFAULT 0,
        status              VARCHAR(32)     NOT NULL,
        cancellation_reason TEXT            NULL,
        created_at          DATETIME(6)     NOT NULL,
        updated_at          DATETIME(6)     NOT NULL,
        KEY idx_slots_facility_start (facility_id, start_at),
        CONSTRAINT fk_slots_facility FOREIGN KEY (facility_id) REFERENCES facilities (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
        id                  CHAR(36)        NOT NULL PRIMARY KEY,
        slot_id             CHAR(36)        NOT NULL,
        booker_id           BIGINT UNSIGNED NULL,
        manual_booker_name  VARCHAR(255)    NOT NULL DEFAULT '',
        status              VARCHAR(32)     NOT NULL,
        cancelled_at        DATETIME(6)     NULL,
        cancellation_reason TEXT            NULL,
        no_show_reason      TEXT            NULL,
        created_at          DATETIME(6)     NOT NULL,
        updated_at          DATETIME(6)     NOT NULL,
        KEY idx_reservations_slot (slot_id),
        KEY idx_reservations_booker (booker_id, created_at),
        CONSTRAINT fk_reservations_slot FOREIGN KEY (slot_id) REFERENCES slots (id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate applies the schema.  Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
