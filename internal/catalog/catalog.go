// Package catalog records processed scenes and their converted products in
// a SQLite database so later runs can find what was converted where.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/uavsar/internal/timeutil"
)

// ErrNotFound is returned when a scene ID does not exist.
var ErrNotFound = errors.New("scene not found")

// Scene is one catalogued scene run.
type Scene struct {
	SceneID     string `json:"scene_id"`
	URL         string `json:"url"`
	WorkDir     string `json:"work_dir"`
	ArchivePath string `json:"archive_path,omitempty"`
	FileCount   int    `json:"file_count"`
	CreatedAtNs int64  `json:"created_at_ns"`
	UpdatedAtNs *int64 `json:"updated_at_ns,omitempty"`
}

// Product is one converted binary belonging to a scene.
type Product struct {
	ProductID      string   `json:"product_id"`
	SceneID        string   `json:"scene_id"`
	DataPath       string   `json:"data_path"`
	AnnotationPath string   `json:"annotation_path"`
	Type           string   `json:"type"`
	Polarization   string   `json:"polarization,omitempty"`
	Rows           int      `json:"rows"`
	Cols           int      `json:"cols"`
	Complex        bool     `json:"complex"`
	Median         *float64 `json:"median,omitempty"`
	StdDev         *float64 `json:"std_dev,omitempty"`
	CreatedAtNs    int64    `json:"created_at_ns"`
}

// Store persists scenes and products.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the catalogue at path and brings its
// schema up to date.
func Open(path string) (*Store, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	diagf("catalog open at %s", path)
	return &Store{db: db, clock: timeutil.RealClock{}}, nil
}

// SetClock replaces the clock used for created/updated timestamps.
func (s *Store) SetClock(c timeutil.Clock) {
	if c != nil {
		s.clock = c
	}
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// execer is the Exec method shared by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// InsertScene stores a scene. Empty SceneID and zero CreatedAtNs are filled in.
func (s *Store) InsertScene(scene *Scene) error {
	return s.insertScene(s.db, scene)
}

func (s *Store) insertScene(ex execer, scene *Scene) error {
	if scene.SceneID == "" {
		scene.SceneID = uuid.New().String()
	}
	if scene.CreatedAtNs == 0 {
		scene.CreatedAtNs = s.clock.Now().UnixNano()
	}

	_, err := ex.Exec(`
		INSERT INTO scenes (scene_id, url, work_dir, archive_path, file_count, created_at_ns, updated_at_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scene.SceneID,
		scene.URL,
		scene.WorkDir,
		nullString(scene.ArchivePath),
		scene.FileCount,
		scene.CreatedAtNs,
		nullInt64(scene.UpdatedAtNs),
	)
	if err != nil {
		return fmt.Errorf("insert scene: %w", err)
	}
	tracef("inserted scene %s (%s)", scene.SceneID, scene.URL)
	return nil
}

// insertSceneWithProducts stores a scene and its products atomically. On
// error nothing is written.
func (s *Store) insertSceneWithProducts(scene *Scene, products []*Product) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := s.insertScene(tx, scene); err != nil {
		tx.Rollback()
		return err
	}
	for i, p := range products {
		p.SceneID = scene.SceneID
		if err := s.insertProduct(tx, p); err != nil {
			tx.Rollback()
			return fmt.Errorf("product %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// UpdateScene rewrites a scene's archive path and file count.
func (s *Store) UpdateScene(scene *Scene) error {
	now := s.clock.Now().UnixNano()
	res, err := s.db.Exec(`
		UPDATE scenes SET archive_path = ?, file_count = ?, updated_at_ns = ?
		WHERE scene_id = ?`,
		nullString(scene.ArchivePath), scene.FileCount, now, scene.SceneID)
	if err != nil {
		return fmt.Errorf("update scene: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, scene.SceneID)
	}
	scene.UpdatedAtNs = &now
	return nil
}

const sceneColumns = `scene_id, url, work_dir, archive_path, file_count, created_at_ns, updated_at_ns`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScene(row rowScanner) (*Scene, error) {
	var scene Scene
	var archivePath sql.NullString
	var updatedAtNs sql.NullInt64
	if err := row.Scan(
		&scene.SceneID,
		&scene.URL,
		&scene.WorkDir,
		&archivePath,
		&scene.FileCount,
		&scene.CreatedAtNs,
		&updatedAtNs,
	); err != nil {
		return nil, err
	}
	if archivePath.Valid {
		scene.ArchivePath = archivePath.String
	}
	if updatedAtNs.Valid {
		v := updatedAtNs.Int64
		scene.UpdatedAtNs = &v
	}
	return &scene, nil
}

// GetScene retrieves a scene by ID.
func (s *Store) GetScene(sceneID string) (*Scene, error) {
	scene, err := scanScene(s.db.QueryRow(`SELECT `+sceneColumns+` FROM scenes WHERE scene_id = ?`, sceneID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sceneID)
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return scene, nil
}

// ListScenes returns scenes newest first, optionally only those for url.
func (s *Store) ListScenes(url string) ([]*Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes`
	var args []interface{}
	if url != "" {
		query += ` WHERE url = ?`
		args = append(args, url)
	}
	query += ` ORDER BY created_at_ns DESC, scene_id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

// DeleteScene removes a scene and its products.
func (s *Store) DeleteScene(sceneID string) error {
	res, err := s.db.Exec(`DELETE FROM scenes WHERE scene_id = ?`, sceneID)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, sceneID)
	}
	return nil
}

// InsertProduct stores a converted product under an existing scene.
func (s *Store) InsertProduct(p *Product) error {
	return s.insertProduct(s.db, p)
}

func (s *Store) insertProduct(ex execer, p *Product) error {
	if p.ProductID == "" {
		p.ProductID = uuid.New().String()
	}
	if p.CreatedAtNs == 0 {
		p.CreatedAtNs = s.clock.Now().UnixNano()
	}

	_, err := ex.Exec(`
		INSERT INTO scene_products (
			product_id, scene_id, data_path, annotation_path, product_type, polarization,
			n_rows, n_cols, is_complex, median, std_dev, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ProductID,
		p.SceneID,
		p.DataPath,
		p.AnnotationPath,
		p.Type,
		nullString(p.Polarization),
		p.Rows,
		p.Cols,
		p.Complex,
		nullFloat64(p.Median),
		nullFloat64(p.StdDev),
		p.CreatedAtNs,
	)
	if err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	tracef("inserted product %s for scene %s", p.ProductID, p.SceneID)
	return nil
}

// ListProducts returns a scene's products in insertion order.
func (s *Store) ListProducts(sceneID string) ([]*Product, error) {
	rows, err := s.db.Query(`
		SELECT product_id, scene_id, data_path, annotation_path, product_type, polarization,
		       n_rows, n_cols, is_complex, median, std_dev, created_at_ns
		FROM scene_products
		WHERE scene_id = ?
		ORDER BY created_at_ns, rowid`, sceneID)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		var p Product
		var pol sql.NullString
		var median, stdDev sql.NullFloat64
		if err := rows.Scan(
			&p.ProductID,
			&p.SceneID,
			&p.DataPath,
			&p.AnnotationPath,
			&p.Type,
			&pol,
			&p.Rows,
			&p.Cols,
			&p.Complex,
			&median,
			&stdDev,
			&p.CreatedAtNs,
		); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		if pol.Valid {
			p.Polarization = pol.String
		}
		if median.Valid {
			v := median.Float64
			p.Median = &v
		}
		if stdDev.Valid {
			v := stdDev.Float64
			p.StdDev = &v
		}
		products = append(products, &p)
	}
	return products, rows.Err()
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(i *int64) interface{} {
	if i == nil {
		return nil
	}
	return *i
}

// nullFloat64 stores NaN as NULL as well as nil.
func nullFloat64(f *float64) interface{} {
	if f == nil || math.IsNaN(*f) {
		return nil
	}
	return *f
}
