package store

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/ecopulse/ecopulse/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a read query matches no rows.
var ErrNotFound = errors.New("no data for query")

// Store is the SQLite-backed dimensional store. Writes are serialized behind
// a single mutex (and a single pooled connection); reads may run from any
// goroutine.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens the SQLite database at path. Use ":memory:" for an in-memory
// database in tests.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A single connection keeps the writer discipline at the pool level and
	// makes ":memory:" behave as one database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Init creates the schema and seeds the dimension tables. Existing dimension
// rows are left untouched, so enrichment write-backs survive restarts.
func (s *Store) Init(locations []config.Location, regions []config.Region, indicators []config.Indicator) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	for _, r := range regions {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO dim_region(region_code, region_name) VALUES (?, ?)",
			r.Code, r.Name,
		); err != nil {
			return fmt.Errorf("seed region %s: %w", r.Code, err)
		}
	}
	for _, ind := range indicators {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO dim_indicator(indicator_code, indicator_name, unit, source) VALUES (?, ?, NULL, ?)",
			ind.Code, ind.Name, "World Bank",
		); err != nil {
			return fmt.Errorf("seed indicator %s: %w", ind.Code, err)
		}
	}
	for _, loc := range locations {
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO dim_location(location_key, name, lat, lon, wikipedia_url) VALUES (?, ?, ?, ?, ?)",
			loc.Key, loc.Name, loc.Lat, loc.Lon, loc.WikipediaURL,
		); err != nil {
			return fmt.Errorf("seed location %s: %w", loc.Key, err)
		}
	}

	return tx.Commit()
}

// UpsertEnvHourly writes an environmental batch. The whole batch commits or
// none of it does; re-applying a batch replaces the full measure set for
// each (location, timestamp) key.
func (s *Store) UpsertEnvHourly(rows []EnvRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin env upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO fact_env_hourly(location_key, ts_utc, temp_c, wind_kph, precip_mm, pm2_5, pm10, european_aqi, us_aqi)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(location_key, ts_utc) DO UPDATE SET
			temp_c=excluded.temp_c,
			wind_kph=excluded.wind_kph,
			precip_mm=excluded.precip_mm,
			pm2_5=excluded.pm2_5,
			pm10=excluded.pm10,
			european_aqi=excluded.european_aqi,
			us_aqi=excluded.us_aqi`)
	if err != nil {
		return fmt.Errorf("prepare env upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(
			r.LocationKey, r.TsUTC,
			r.TempC, r.WindKph, r.PrecipMM, r.PM25, r.PM10, r.EuropeanAQI, r.USAQI,
		); err != nil {
			return fmt.Errorf("upsert env row %s/%s: %w", r.LocationKey, r.TsUTC, err)
		}
	}

	return tx.Commit()
}

// UpsertMacro writes a macro batch with the same all-or-nothing and
// last-write-wins semantics as UpsertEnvHourly.
func (s *Store) UpsertMacro(rows []MacroRow) error {
	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin macro upsert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO fact_macro_annual(region_code, indicator_code, year, value)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(region_code, indicator_code, year) DO UPDATE SET
			value=excluded.value`)
	if err != nil {
		return fmt.Errorf("prepare macro upsert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.RegionCode, r.IndicatorCode, r.Year, r.Value); err != nil {
			return fmt.Errorf("upsert macro row %s/%s/%d: %w", r.RegionCode, r.IndicatorCode, r.Year, err)
		}
	}

	return tx.Commit()
}

// UpdateLocationWiki writes the enrichment fields for one location. It is
// the only mutation that touches a dimension row after seeding.
func (s *Store) UpdateLocationWiki(locationKey, title, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"UPDATE dim_location SET wiki_title=?, wiki_summary=? WHERE location_key=?",
		title, summary, locationKey,
	)
	if err != nil {
		return fmt.Errorf("update location enrichment %s: %w", locationKey, err)
	}
	return nil
}

// LogRun appends one aggregate run record. Run logs are append-only.
func (s *Store) LogRun(started, finished string, ok bool, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO fetch_run_log(started_at_utc, finished_at_utc, ok, message) VALUES (?, ?, ?, ?)",
		started, finished, boolToInt(ok), message,
	)
	if err != nil {
		return fmt.Errorf("log run: %w", err)
	}
	return nil
}

// LogSourceRun appends one per-source cycle record.
func (s *Store) LogSourceRun(sourceName, started, finished string, ok bool, message string, itemCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO fetch_source_run_log(source_name, started_at_utc, finished_at_utc, ok, message, item_count) VALUES (?, ?, ?, ?, ?, ?)",
		sourceName, started, finished, boolToInt(ok), message, itemCount,
	)
	if err != nil {
		return fmt.Errorf("log source run: %w", err)
	}
	return nil
}

// LatestEnvRows returns up to limit most-recent environmental rows for a
// location, newest first.
func (s *Store) LatestEnvRows(locationKey string, limit int) ([]EnvRow, error) {
	rows, err := s.db.Query(`
		SELECT location_key, ts_utc, temp_c, wind_kph, precip_mm, pm2_5, pm10, european_aqi, us_aqi
		FROM fact_env_hourly
		WHERE location_key=?
		ORDER BY ts_utc DESC
		LIMIT ?`, locationKey, limit)
	if err != nil {
		return nil, fmt.Errorf("query env rows: %w", err)
	}
	defer rows.Close()

	var result []EnvRow
	for rows.Next() {
		r, err := scanEnvRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

// LatestEnvKPIs returns the single most recent environmental row for a
// location, or ErrNotFound.
func (s *Store) LatestEnvKPIs(locationKey string) (EnvRow, error) {
	rows, err := s.LatestEnvRows(locationKey, 1)
	if err != nil {
		return EnvRow{}, err
	}
	if len(rows) == 0 {
		return EnvRow{}, ErrNotFound
	}
	return rows[0], nil
}

// MacroSeries returns the rows for one indicator across all regions within
// the year range, oldest first.
func (s *Store) MacroSeries(indicator string, startYear, endYear int) ([]MacroRow, error) {
	rows, err := s.db.Query(`
		SELECT region_code, indicator_code, year, value
		FROM fact_macro_annual
		WHERE indicator_code=? AND year BETWEEN ? AND ?
		ORDER BY year ASC, region_code ASC`, indicator, startYear, endYear)
	if err != nil {
		return nil, fmt.Errorf("query macro series: %w", err)
	}
	defer rows.Close()
	return collectMacroRows(rows)
}

// MacroLatest returns, for one indicator, each region's most recent value.
func (s *Store) MacroLatest(indicator string) ([]MacroRow, error) {
	rows, err := s.db.Query(`
		SELECT f.region_code, f.indicator_code, f.year, f.value
		FROM fact_macro_annual f
		JOIN (
			SELECT region_code, MAX(year) AS year
			FROM fact_macro_annual
			WHERE indicator_code=?
			GROUP BY region_code
		) latest ON f.region_code=latest.region_code AND f.year=latest.year
		WHERE f.indicator_code=?
		ORDER BY f.region_code ASC`, indicator, indicator)
	if err != nil {
		return nil, fmt.Errorf("query macro latest: %w", err)
	}
	defer rows.Close()
	return collectMacroRows(rows)
}

// Locations returns the seeded locations including enrichment fields.
func (s *Store) Locations() ([]LocationRow, error) {
	rows, err := s.db.Query(`
		SELECT location_key, name, lat, lon, wikipedia_url, wiki_title, wiki_summary
		FROM dim_location
		ORDER BY location_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer rows.Close()

	var result []LocationRow
	for rows.Next() {
		var r LocationRow
		var wikiURL, title, summary sql.NullString
		if err := rows.Scan(&r.Key, &r.Name, &r.Lat, &r.Lon, &wikiURL, &title, &summary); err != nil {
			return nil, fmt.Errorf("scan location row: %w", err)
		}
		r.WikipediaURL = wikiURL.String
		r.WikiTitle = title.String
		r.WikiSummary = summary.String
		result = append(result, r)
	}
	return result, rows.Err()
}

// RecentRuns returns up to limit aggregate run records, newest first.
func (s *Store) RecentRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, started_at_utc, COALESCE(finished_at_utc, ''), ok, COALESCE(message, '')
		FROM fetch_run_log
		ORDER BY run_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var result []Run
	for rows.Next() {
		var r Run
		var ok int
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &ok, &r.Message); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.OK = ok != 0
		result = append(result, r)
	}
	return result, rows.Err()
}

// RecentSourceRuns returns up to limit per-source cycle records, newest first.
func (s *Store) RecentSourceRuns(limit int) ([]SourceRun, error) {
	rows, err := s.db.Query(`
		SELECT source_run_id, source_name, started_at_utc, COALESCE(finished_at_utc, ''), ok, COALESCE(message, ''), item_count
		FROM fetch_source_run_log
		ORDER BY source_run_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query source runs: %w", err)
	}
	defer rows.Close()

	var result []SourceRun
	for rows.Next() {
		var r SourceRun
		var ok int
		if err := rows.Scan(&r.ID, &r.SourceName, &r.StartedAt, &r.FinishedAt, &ok, &r.Message, &r.ItemCount); err != nil {
			return nil, fmt.Errorf("scan source run row: %w", err)
		}
		r.OK = ok != 0
		result = append(result, r)
	}
	return result, rows.Err()
}

func scanEnvRow(rows *sql.Rows) (EnvRow, error) {
	var r EnvRow
	if err := rows.Scan(
		&r.LocationKey, &r.TsUTC,
		&r.TempC, &r.WindKph, &r.PrecipMM, &r.PM25, &r.PM10, &r.EuropeanAQI, &r.USAQI,
	); err != nil {
		return EnvRow{}, fmt.Errorf("scan env row: %w", err)
	}
	return r, nil
}

func collectMacroRows(rows *sql.Rows) ([]MacroRow, error) {
	var result []MacroRow
	for rows.Next() {
		var r MacroRow
		if err := rows.Scan(&r.RegionCode, &r.IndicatorCode, &r.Year, &r.Value); err != nil {
			return nil, fmt.Errorf("scan macro row: %w", err)
		}
		result = append(result, r)
	}
	return result, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
