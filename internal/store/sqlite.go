package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/weatherfront/weatherfront/internal/weather"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already taken")
)

// coordPrecision is the number of decimal places a City coordinate is
// rounded to. The rounded pair is the single canonical uniqueness key.
const coordPrecision = 5

// User is an account able to accumulate search history.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// City is a deduplicated searched place. Display fields are mutable and
// refreshed whenever a re-resolved location disagrees with the stored
// row; the rounded coordinate pair never changes.
type City struct {
	ID              int64
	Name            string
	Admin1          string
	Country         string
	Latitude        float64
	Longitude       float64
	Population      int64
	Timezone        string
	FullDisplayName string
}

// CityCount pairs a city display name with its search count.
type CityCount struct {
	FullDisplayName string
	SearchCount     int64
}

// SearchEntry is one row of a user's search history.
type SearchEntry struct {
	City       City
	SearchedAt time.Time
}

// Store persists users, cities and search history in SQLite.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cities (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    admin1 TEXT NOT NULL DEFAULT '',
    country TEXT NOT NULL,
    latitude REAL NOT NULL,
    longitude REAL NOT NULL,
    population INTEGER NOT NULL DEFAULT 0,
    timezone TEXT NOT NULL DEFAULT '',
    full_display_name TEXT NOT NULL DEFAULT '',
    UNIQUE(latitude, longitude)
);
CREATE INDEX IF NOT EXISTS idx_cities_name ON cities(name, admin1, country);
CREATE TABLE IF NOT EXISTS search_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    city_id INTEGER NOT NULL REFERENCES cities(id) ON DELETE CASCADE,
    searched_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_history_user ON search_history(user_id, searched_at);
`

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		log.Println("warning: could not set WAL mode:", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		log.Println("warning: could not enable foreign keys:", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new account with an already hashed password.
func (s *Store) CreateUser(username, passwordHash string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users(username, password_hash, created_at) VALUES(?,?,?)`,
		username, passwordHash, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	return res.LastInsertId()
}

// UserByUsername looks an account up by its unique username.
func (s *Store) UserByUsername(username string) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username,
	))
}

// UserByID looks an account up by primary key.
func (s *Store) UserByID(id int64) (*User, error) {
	return s.scanUser(s.db.QueryRow(
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id,
	))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	var created string
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		u.CreatedAt = t
	}
	return &u, nil
}

// UpsertCity deduplicates a City by its rounded coordinates. On
// conflict with an existing row, display fields that differ are
// refreshed in place.
func (s *Store) UpsertCity(loc weather.Location, timezone string) (*City, error) {
	lat := roundCoord(loc.Lat)
	lon := roundCoord(loc.Lon)
	fullDisplay := loc.FullDisplay()

	city, err := s.cityByCoords(lat, lon)
	if errors.Is(err, ErrNotFound) {
		res, insErr := s.db.Exec(
			`INSERT INTO cities(name, admin1, country, latitude, longitude, timezone, full_display_name)
			 VALUES(?,?,?,?,?,?,?)`,
			loc.Name, loc.Admin1, loc.Country, lat, lon, timezone, fullDisplay,
		)
		if insErr == nil {
			id, _ := res.LastInsertId()
			return &City{
				ID: id, Name: loc.Name, Admin1: loc.Admin1, Country: loc.Country,
				Latitude: lat, Longitude: lon, Timezone: timezone, FullDisplayName: fullDisplay,
			}, nil
		}
		if !strings.Contains(insErr.Error(), "UNIQUE") {
			return nil, insErr
		}
		// A concurrent insert won the race; fall through to the
		// update path against the row it created.
		city, err = s.cityByCoords(lat, lon)
	}
	if err != nil {
		return nil, err
	}

	changed := city.Name != loc.Name ||
		city.Admin1 != loc.Admin1 ||
		city.Country != loc.Country ||
		city.FullDisplayName != fullDisplay ||
		(timezone != "" && city.Timezone != timezone)

	if changed {
		tz := city.Timezone
		if timezone != "" {
			tz = timezone
		}
		_, err = s.db.Exec(
			`UPDATE cities SET name=?, admin1=?, country=?, timezone=?, full_display_name=? WHERE id=?`,
			loc.Name, loc.Admin1, loc.Country, tz, fullDisplay, city.ID,
		)
		if err != nil {
			return nil, err
		}
		city.Name = loc.Name
		city.Admin1 = loc.Admin1
		city.Country = loc.Country
		city.Timezone = tz
		city.FullDisplayName = fullDisplay
	}

	return city, nil
}

func (s *Store) cityByCoords(lat, lon float64) (*City, error) {
	var c City
	err := s.db.QueryRow(
		`SELECT id, name, admin1, country, latitude, longitude, population, timezone, full_display_name
		 FROM cities WHERE latitude = ? AND longitude = ?`, lat, lon,
	).Scan(&c.ID, &c.Name, &c.Admin1, &c.Country, &c.Latitude, &c.Longitude, &c.Population, &c.Timezone, &c.FullDisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AddSearch appends an append-only history edge from a user to a city.
func (s *Store) AddSearch(userID, cityID int64) error {
	_, err := s.db.Exec(
		`INSERT INTO search_history(user_id, city_id, searched_at) VALUES(?,?,?)`,
		userID, cityID, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// RecordSearch upserts the city for loc and, when userID identifies an
// authenticated caller, appends a history entry. Anonymous callers are
// skipped silently.
func (s *Store) RecordSearch(userID *int64, loc weather.Location, timezone string) error {
	city, err := s.UpsertCity(loc, timezone)
	if err != nil {
		return fmt.Errorf("upsert city: %w", err)
	}

	if userID == nil {
		return nil
	}
	if err := s.AddSearch(*userID, city.ID); err != nil {
		return fmt.Errorf("add search history: %w", err)
	}
	return nil
}

// TopSearches returns the most searched cities with counts, highest
// first.
func (s *Store) TopSearches(limit int) ([]CityCount, error) {
	rows, err := s.db.Query(
		`SELECT c.full_display_name, COUNT(h.id) AS search_count
		 FROM search_history h JOIN cities c ON c.id = h.city_id
		 GROUP BY h.city_id ORDER BY search_count DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CityCount
	for rows.Next() {
		var cc CityCount
		if err := rows.Scan(&cc.FullDisplayName, &cc.SearchCount); err != nil {
			return nil, err
		}
		out = append(out, cc)
	}
	return out, rows.Err()
}

// UserSearches returns a user's most recent searches, newest first.
func (s *Store) UserSearches(userID int64, limit int) ([]SearchEntry, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.name, c.admin1, c.country, c.latitude, c.longitude, c.population, c.timezone, c.full_display_name, h.searched_at
		 FROM search_history h JOIN cities c ON c.id = h.city_id
		 WHERE h.user_id = ? ORDER BY h.searched_at DESC, h.id DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SearchEntry
	for rows.Next() {
		var e SearchEntry
		var searched string
		if err := rows.Scan(
			&e.City.ID, &e.City.Name, &e.City.Admin1, &e.City.Country,
			&e.City.Latitude, &e.City.Longitude, &e.City.Population,
			&e.City.Timezone, &e.City.FullDisplayName, &searched,
		); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339, searched); err == nil {
			e.SearchedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Totals returns the overall search and distinct city counts.
func (s *Store) Totals() (searches, cities int64, err error) {
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM search_history`).Scan(&searches); err != nil {
		return 0, 0, err
	}
	if err = s.db.QueryRow(`SELECT COUNT(*) FROM cities`).Scan(&cities); err != nil {
		return 0, 0, err
	}
	return searches, cities, nil
}

func roundCoord(v float64) float64 {
	shift := math.Pow10(coordPrecision)
	return math.Round(v*shift) / shift
}
