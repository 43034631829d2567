package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'deviation_status') THEN
			CREATE TYPE deviation_status AS ENUM ('pending', 'rd-approved', 'quality-approved', 'production-approved', 'final-approved', 'rejected');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'deviation_type') THEN
			CREATE TYPE deviation_type AS ENUM ('input-control', 'process-control', 'final-control');
		END IF;
		IF NOT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'quality_risk') THEN
			CREATE TYPE quality_risk AS ENUM ('low', 'medium', 'high', 'critical');
		END IF;
	END
	$$;`,
	`CREATE TABLE IF NOT EXISTS deviation_sequences (
		year INT PRIMARY KEY,
		counter INT NOT NULL DEFAULT 0
	);`,
	`CREATE TABLE IF NOT EXISTS deviation_approvals (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		deviation_number VARCHAR(16) NOT NULL,
		part_name VARCHAR(255) NOT NULL,
		part_number VARCHAR(128) NOT NULL,
		deviation_type deviation_type NOT NULL,
		quality_risk quality_risk NOT NULL DEFAULT 'low',
		description TEXT NOT NULL,
		reason_for_deviation TEXT,
		proposed_solution TEXT,
		request_date TIMESTAMPTZ NOT NULL,
		requested_by VARCHAR(255) NOT NULL,
		department VARCHAR(128) NOT NULL,
		status deviation_status NOT NULL DEFAULT 'pending',
		rejection_reason TEXT,
		rd_approved BOOLEAN NOT NULL DEFAULT FALSE,
		rd_approver VARCHAR(255),
		rd_approval_date TIMESTAMPTZ,
		rd_comments TEXT,
		quality_approved BOOLEAN NOT NULL DEFAULT FALSE,
		quality_approver VARCHAR(255),
		quality_approval_date TIMESTAMPTZ,
		quality_comments TEXT,
		production_approved BOOLEAN NOT NULL DEFAULT FALSE,
		production_approver VARCHAR(255),
		production_approval_date TIMESTAMPTZ,
		production_comments TEXT,
		gm_approved BOOLEAN NOT NULL DEFAULT FALSE,
		gm_approver VARCHAR(255),
		gm_approval_date TIMESTAMPTZ,
		gm_comments TEXT,
		completed_date TIMESTAMPTZ,
		total_approval_time_hours INT,
		created_by VARCHAR(255),
		last_modified_by VARCHAR(255),
		version INT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS uniq_deviation_number ON deviation_approvals (deviation_number);`,
	`CREATE INDEX IF NOT EXISTS idx_deviation_approvals_status ON deviation_approvals (status);`,
	`CREATE INDEX IF NOT EXISTS idx_deviation_approvals_department ON deviation_approvals (department);`,
	`CREATE INDEX IF NOT EXISTS idx_deviation_approvals_created_at ON deviation_approvals (created_at);`,
	`CREATE TABLE IF NOT EXISTS deviation_vehicles (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		deviation_id UUID NOT NULL REFERENCES deviation_approvals(id) ON DELETE CASCADE,
		model VARCHAR(128) NOT NULL,
		serial_number VARCHAR(128) NOT NULL,
		chassis_number VARCHAR(128),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_deviation_vehicles_deviation_id ON deviation_vehicles (deviation_id);`,
	`CREATE TABLE IF NOT EXISTS deviation_attachments (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		deviation_id UUID NOT NULL REFERENCES deviation_approvals(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		content_type VARCHAR(128),
		data BYTEA,
		uploaded_by VARCHAR(255),
		upload_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_deviation_attachments_deviation_id ON deviation_attachments (deviation_id);`,
	`CREATE TABLE IF NOT EXISTS deviation_status_log (
		id UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		deviation_id UUID NOT NULL REFERENCES deviation_approvals(id) ON DELETE CASCADE,
		old_status deviation_status,
		new_status deviation_status NOT NULL,
		note TEXT,
		changed_by VARCHAR(255) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_deviation_status_log_deviation_id ON deviation_status_log (deviation_id);`,
	`CREATE OR REPLACE FUNCTION set_row_updated_at()
	RETURNS TRIGGER AS $$
	BEGIN
		NEW.updated_at = NOW();
		RETURN NEW;
	END;
	$$ LANGUAGE plpgsql;`,
	`DO $$
	BEGIN
		IF NOT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = 'trg_deviation_approvals_updated_at') THEN
			CREATE TRIGGER trg_deviation_approvals_updated_at
				BEFORE UPDATE ON deviation_approvals
				FOR EACH ROW
				EXECUTE PROCEDURE set_row_updated_at();
		END IF;
	END
	$$;`,
}

func runMigrations(database *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := database.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
