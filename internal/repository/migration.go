package repository

import (
	"fmt"

	"ballot-engine/internal/domain/ballot"
	"ballot-engine/internal/domain/outbox"
	"ballot-engine/internal/domain/poll"

	"gorm.io/gorm"
)

// Models lists every table owned by the service, in creation order.
func Models() []interface{} {
	return []interface{}{
		&poll.Poll{},
		&poll.Choice{},
		&ballot.Record{},
		&outbox.OutboxEvent{},
	}
}

// InitSchema runs Gorm auto-migration and installs the constraints and triggers
// that keep the ballot ledger append-only.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}

	// 1. Constraints
	// We use 'DO $$ BEGIN ... END $$' block to add constraints only if they don't exist.
	constraints := []string{
		`DO $$ BEGIN
			ALTER TABLE polls ADD CONSTRAINT chk_polls_dates CHECK (end_date > start_date);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE polls ADD CONSTRAINT chk_polls_status CHECK (status IN ('DRAFT', 'SCHEDULED', 'OPEN', 'CLOSED'));
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
		`DO $$ BEGIN
			ALTER TABLE ballots ADD CONSTRAINT fk_ballots_choice FOREIGN KEY (choice_id) REFERENCES poll_choices (id);
		EXCEPTION
			WHEN duplicate_object THEN null;
		END $$;`,
	}
	for _, c := range constraints {
		if err := db.Exec(c).Error; err != nil {
			return fmt.Errorf("failed to add constraint: %w", err)
		}
	}

	// 2. Ballots are immutable once written.
	fnForbid := `
	CREATE OR REPLACE FUNCTION fn_ballots_forbid_change()
	RETURNS trigger LANGUAGE plpgsql AS $$
	BEGIN
		RAISE EXCEPTION 'ballots are immutable';
	END;
	$$;`
	if err := db.Exec(fnForbid).Error; err != nil {
		return fmt.Errorf("failed to create function fn_ballots_forbid_change: %w", err)
	}

	triggerSQL := `
	DROP TRIGGER IF EXISTS tr_ballots_forbid_change ON ballots;
	CREATE TRIGGER tr_ballots_forbid_change
	BEFORE UPDATE OR DELETE ON ballots
	FOR EACH ROW
	EXECUTE PROCEDURE fn_ballots_forbid_change();`
	if err := db.Exec(triggerSQL).Error; err != nil {
		return fmt.Errorf("failed to create trigger tr_ballots_forbid_change: %w", err)
	}

	return nil
}

// DropSchema removes every table owned by the service.
func DropSchema(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop table: %w", err)
		}
	}
	if err := db.Exec(`DROP FUNCTION IF EXISTS fn_ballots_forbid_change() CASCADE;`).Error; err != nil {
		return fmt.Errorf("failed to drop function: %w", err)
	}
	return nil
}
