package sqlstore

// schema is portable between SQLite and PostgreSQL. Table and column names
// follow the MLflow SQLAlchemy store.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS experiments (
		experiment_id INTEGER NOT NULL PRIMARY KEY,
		name VARCHAR(256) NOT NULL UNIQUE,
		artifact_location VARCHAR(256),
		lifecycle_stage VARCHAR(32) NOT NULL,
		creation_time BIGINT,
		last_update_time BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		run_uuid VARCHAR(32) NOT NULL PRIMARY KEY,
		name VARCHAR(250),
		experiment_id INTEGER NOT NULL REFERENCES experiments (experiment_id),
		user_id VARCHAR(256),
		status VARCHAR(9) NOT NULL,
		start_time BIGINT,
		end_time BIGINT,
		source_type VARCHAR(20),
		source_name VARCHAR(500),
		artifact_uri VARCHAR(200),
		lifecycle_stage VARCHAR(20) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS params (
		key VARCHAR(250) NOT NULL,
		value VARCHAR(8000) NOT NULL,
		run_uuid VARCHAR(32) NOT NULL REFERENCES runs (run_uuid),
		PRIMARY KEY (key, run_uuid)
	)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		key VARCHAR(250) NOT NULL,
		value DOUBLE PRECISION NOT NULL,
		timestamp BIGINT NOT NULL,
		step BIGINT NOT NULL DEFAULT 0,
		is_nan BOOLEAN NOT NULL DEFAULT FALSE,
		run_uuid VARCHAR(32) NOT NULL REFERENCES runs (run_uuid),
		PRIMARY KEY (key, timestamp, step, run_uuid, value, is_nan)
	)`,
	`CREATE TABLE IF NOT EXISTS tags (
		key VARCHAR(250) NOT NULL,
		value VARCHAR(8000),
		run_uuid VARCHAR(32) NOT NULL REFERENCES runs (run_uuid),
		PRIMARY KEY (key, run_uuid)
	)`,
	`CREATE TABLE IF NOT EXISTS registered_models (
		name VARCHAR(256) NOT NULL PRIMARY KEY,
		creation_time BIGINT,
		last_updated_time BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS model_versions (
		name VARCHAR(256) NOT NULL REFERENCES registered_models (name),
		version INTEGER NOT NULL,
		creation_time BIGINT,
		last_updated_time BIGINT,
		user_id VARCHAR(256),
		source VARCHAR(500),
		run_id VARCHAR(32),
		status VARCHAR(20),
		PRIMARY KEY (name, version)
	)`,
}
