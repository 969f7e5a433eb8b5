package database

import (
	"database/sql"
	"fmt"

	"discreetx-backend/internal/models"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

func setPragmaValues(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return err
	}

	// these next 2 extremely speed up performance of sqlite
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return err
	}

	if _, err := db.Exec("PRAGMA synchronous = normal"); err != nil {
		return err
	}

	return nil
}

// clientFoundRows makes RowsAffected count matched rows instead of changed
// rows, so a conditional UPDATE that matches but writes identical values still
// reports success. sqlite counts matched rows already.
func mysqlDSN(cfg *models.ConfigFile) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&timeout=10s&clientFoundRows=true",
		cfg.DbUser, cfg.DbPassword, cfg.DbAddress, cfg.DbPort, cfg.DbDatabase)
}

func Setup(cfg *models.ConfigFile) (*sql.DB, error) {
	var db *sql.DB
	var err error

	if cfg.SelfContained {
		fmt.Println("Connecting to database sqlite...")

		db, err = sql.Open("sqlite", "./database.db")
		if err != nil {
			return db, err
		}

		// there can be sqlite busy errors if this is not set to 1
		db.SetMaxOpenConns(1)

		err = setPragmaValues(db)
		if err != nil {
			return db, err
		}
	} else {
		fmt.Println("Connecting to database mysql/mariadb...")

		db, err = sql.Open("mysql", mysqlDSN(cfg))
		if err != nil {
			return db, err
		}

		db.SetMaxOpenConns(10)
	}

	err = setupTables(db, cfg.SelfContained)
	if err != nil {
		return db, err
	}

	return db, nil
}

func setupTables(db *sql.DB, selfContained bool) error {
	var err error

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS profiles (
				id BIGINT PRIMARY KEY,
				email VARCHAR(64) NOT NULL UNIQUE,
				display_name VARCHAR(64) NOT NULL,
				picture TEXT,
				password BINARY(60) NOT NULL
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS servers (
				id BIGINT PRIMARY KEY,
				owner_id BIGINT NOT NULL,
				name VARCHAR(64) NOT NULL,
				picture TEXT,
				FOREIGN KEY (owner_id) REFERENCES profiles(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS members (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				profile_id BIGINT NOT NULL,
				role VARCHAR(16) NOT NULL,
				UNIQUE (server_id, profile_id),
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE,
				FOREIGN KEY (profile_id) REFERENCES profiles(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS channels (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				name VARCHAR(32) NOT NULL,
				type VARCHAR(8) NOT NULL,
				FOREIGN KEY (server_id) REFERENCES servers(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	// member_low/member_high hold the unordered pair in normalized order so the
	// unique constraint enforces one conversation per pair
	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS conversations (
				id BIGINT PRIMARY KEY,
				server_id BIGINT NOT NULL,
				member_low BIGINT NOT NULL,
				member_high BIGINT NOT NULL,
				UNIQUE (member_low, member_high),
				FOREIGN KEY (member_low) REFERENCES members(id) ON DELETE CASCADE,
				FOREIGN KEY (member_high) REFERENCES members(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS messages (
				id BIGINT PRIMARY KEY,
				channel_id BIGINT NOT NULL,
				member_id BIGINT NOT NULL,
				content TEXT NOT NULL,
				file_url TEXT,
				deleted BOOLEAN NOT NULL DEFAULT FALSE,
				edited BOOLEAN NOT NULL DEFAULT FALSE,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				FOREIGN KEY (channel_id) REFERENCES channels(id) ON DELETE CASCADE,
				FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS direct_messages (
				id BIGINT PRIMARY KEY,
				conversation_id BIGINT NOT NULL,
				member_id BIGINT NOT NULL,
				content TEXT NOT NULL,
				file_url TEXT,
				deleted BOOLEAN NOT NULL DEFAULT FALSE,
				edited BOOLEAN NOT NULL DEFAULT FALSE,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL,
				FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
				FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
			);
		`)
	if err != nil {
		return err
	}

	// Both dialects back the one-active-call invariant with a unique
	// constraint, so a race between two concurrent starters loses on a
	// duplicate key instead of inserting a second active call. sqlite uses a
	// partial index, mysql a generated column that is NULL once inactive.
	if selfContained {
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS calls (
				id BIGINT PRIMARY KEY,
				conversation_id BIGINT NOT NULL,
				member_id BIGINT NOT NULL,
				type VARCHAR(8) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				answered BOOLEAN NOT NULL DEFAULT FALSE,
				declined BOOLEAN NOT NULL DEFAULT FALSE,
				cancelled BOOLEAN NOT NULL DEFAULT FALSE,
				ended BOOLEAN NOT NULL DEFAULT FALSE,
				created_at BIGINT NOT NULL,
				FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
				FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
			);
		`)
		if err != nil {
			return err
		}

		_, err = db.Exec(`
				CREATE UNIQUE INDEX IF NOT EXISTS one_active_call_per_conversation
				ON calls (conversation_id) WHERE active;
			`)
		if err != nil {
			return err
		}
	} else {
		_, err = db.Exec(`
			CREATE TABLE IF NOT EXISTS calls (
				id BIGINT PRIMARY KEY,
				conversation_id BIGINT NOT NULL,
				member_id BIGINT NOT NULL,
				type VARCHAR(8) NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				answered BOOLEAN NOT NULL DEFAULT FALSE,
				declined BOOLEAN NOT NULL DEFAULT FALSE,
				cancelled BOOLEAN NOT NULL DEFAULT FALSE,
				ended BOOLEAN NOT NULL DEFAULT FALSE,
				created_at BIGINT NOT NULL,
				active_conv BIGINT AS (IF(active, conversation_id, NULL)) STORED,
				UNIQUE KEY one_active_call_per_conversation (active_conv),
				FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
				FOREIGN KEY (member_id) REFERENCES members(id) ON DELETE CASCADE
			);
		`)
		if err != nil {
			return err
		}
	}

	return nil
}
