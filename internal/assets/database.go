package assets

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/greysquirr3l/morgan-bevy/pkg/logger"
)

// AssetRecord — одна строка каталога ассетов.
type AssetRecord struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	FilePath   string `json:"file_path"`
	AssetType  string `json:"asset_type"`
	Collection string `json:"collection"`
	FileSize   int64  `json:"file_size"`
	Checksum   string `json:"checksum"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// AssetMetadata — пара ключ-значение, привязанная к ассету.
type AssetMetadata struct {
	AssetID int64  `json:"asset_id"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

// Collection — именованная группа ассетов с лицензией.
type Collection struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	LicenseInfo string `json:"license_info"`
	AssetCount  int64  `json:"asset_count"`
}

// SearchResult — ассет вместе с его метаданными.
type SearchResult struct {
	Asset    AssetRecord     `json:"asset"`
	Metadata []AssetMetadata `json:"metadata"`
	Tags     []string        `json:"tags"`
}

// Database — каталог ассетов поверх sqlite.
// Каталог знает только про файлы и их метаданные; в содержимое
// ассетов (меши, текстуры) он не заглядывает.
type Database struct {
	db *sql.DB
}

// Open открывает (создавая при необходимости) каталог по пути dbPath
// и накатывает схему.
func Open(dbPath string) (*Database, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000&_pragma=foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return d, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) initSchema(ctx context.Context) error {
	logger.Log.Info("Initializing asset database schema")

	statements := []string{
		`CREATE TABLE IF NOT EXISTS collections (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT UNIQUE NOT NULL,
            description TEXT,
            license_info TEXT,
            asset_count INTEGER DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS assets (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            file_path TEXT UNIQUE NOT NULL,
            asset_type TEXT NOT NULL,
            collection TEXT NOT NULL,
            file_size INTEGER NOT NULL,
            checksum TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (collection) REFERENCES collections (name)
        )`,
		`CREATE TABLE IF NOT EXISTS asset_metadata (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            asset_id INTEGER NOT NULL,
            key TEXT NOT NULL,
            value TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (asset_id) REFERENCES assets (id) ON DELETE CASCADE,
            UNIQUE(asset_id, key)
        )`,
		`CREATE TABLE IF NOT EXISTS asset_tags (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            asset_id INTEGER NOT NULL,
            tag_name TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY (asset_id) REFERENCES assets (id) ON DELETE CASCADE,
            UNIQUE(asset_id, tag_name)
        )`,
		`CREATE INDEX IF NOT EXISTS idx_assets_name ON assets(name)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_type ON assets(asset_type)`,
		`CREATE INDEX IF NOT EXISTS idx_assets_collection ON assets(collection)`,
		`CREATE INDEX IF NOT EXISTS idx_metadata_key ON asset_metadata(key)`,
		`CREATE INDEX IF NOT EXISTS idx_tags_name ON asset_tags(tag_name)`,
	}
	for _, stmt := range statements {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	return d.seedCollections(ctx)
}

func (d *Database) seedCollections(ctx context.Context) error {
	defaults := []struct {
		name, description, license string
	}{
		{"Kenney", "Kenney Game Assets - Free Collection", "CC0 - Creative Commons Zero"},
		{"KenneyPremium", "Kenney Game Assets - Premium Collection", "CC0 - Creative Commons Zero"},
		{"TopDownEngine", "TopDown Engine Assets by More Mountains", "More Mountains License - Demo Only"},
	}
	for _, c := range defaults {
		_, err := d.db.ExecContext(ctx, `
            INSERT OR IGNORE INTO collections (name, description, license_info) VALUES (?, ?, ?)
        `, c.name, c.description, c.license)
		if err != nil {
			return err
		}
	}
	return nil
}

// DetermineAssetType классифицирует файл по расширению.
func DetermineAssetType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".fbx", ".gltf", ".glb", ".obj":
		return "Model"
	case ".png", ".jpg", ".jpeg":
		return "Texture"
	case ".wav", ".mp3", ".ogg":
		return "Audio"
	case ".mat":
		return "Material"
	default:
		return "Unknown"
	}
}

// UpsertAsset регистрирует файл в каталоге. Повторный вызов с тем же
// путем обновляет размер и контрольную сумму вместо дублирования.
func (d *Database) UpsertAsset(ctx context.Context, assetPath, collection string) (int64, error) {
	info, err := os.Stat(assetPath)
	if err != nil {
		return 0, fmt.Errorf("stat asset: %w", err)
	}

	checksum, err := fileChecksum(assetPath)
	if err != nil {
		return 0, fmt.Errorf("checksum: %w", err)
	}

	// Коллекцию создаем лениво: сканер может найти каталог,
	// которого нет среди дефолтных
	if _, err := d.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO collections (name) VALUES (?)
    `, collection); err != nil {
		return 0, err
	}

	name := filepath.Base(assetPath)
	assetType := DetermineAssetType(assetPath)

	_, err = d.db.ExecContext(ctx, `
        INSERT INTO assets (name, file_path, asset_type, collection, file_size, checksum)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(file_path) DO UPDATE SET
            file_size = excluded.file_size,
            checksum = excluded.checksum,
            updated_at = CURRENT_TIMESTAMP
    `, name, assetPath, assetType, collection, info.Size(), checksum)
	if err != nil {
		return 0, err
	}

	// LastInsertId при конфликте врет, поэтому id достаем по пути
	var assetID int64
	if err := d.db.QueryRowContext(ctx,
		`SELECT id FROM assets WHERE file_path = ?`, assetPath).Scan(&assetID); err != nil {
		return 0, err
	}

	if ext := strings.TrimPrefix(filepath.Ext(assetPath), "."); ext != "" {
		if err := d.SetMetadata(ctx, assetID, "format", strings.ToLower(ext)); err != nil {
			return 0, err
		}
	}

	if err := d.refreshCollectionCount(ctx, collection); err != nil {
		return 0, err
	}
	return assetID, nil
}

// SetMetadata пишет пару ключ-значение ассета, перетирая старое значение.
func (d *Database) SetMetadata(ctx context.Context, assetID int64, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT OR REPLACE INTO asset_metadata (asset_id, key, value) VALUES (?, ?, ?)
    `, assetID, key, value)
	return err
}

// AddTag вешает тег на ассет. Повторный тег игнорируется.
func (d *Database) AddTag(ctx context.Context, assetID int64, tag string) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT OR IGNORE INTO asset_tags (asset_id, tag_name) VALUES (?, ?)
    `, assetID, tag)
	return err
}

func (d *Database) refreshCollectionCount(ctx context.Context, collection string) error {
	_, err := d.db.ExecContext(ctx, `
        UPDATE collections SET
            asset_count = (SELECT COUNT(*) FROM assets WHERE collection = ?),
            updated_at = CURRENT_TIMESTAMP
        WHERE name = ?
    `, collection, collection)
	return err
}

// Search ищет ассеты по подстроке имени с опциональными фильтрами
// по типу и коллекции. Пустые фильтры не применяются.
func (d *Database) Search(ctx context.Context, query, assetType, collection string) ([]SearchResult, error) {
	sqlText := `
        SELECT id, name, file_path, asset_type, collection, file_size, checksum, created_at, updated_at
        FROM assets
        WHERE 1=1`
	args := []any{}

	if query != "" {
		sqlText += " AND name LIKE ?"
		args = append(args, "%"+query+"%")
	}
	if assetType != "" {
		sqlText += " AND asset_type = ?"
		args = append(args, assetType)
	}
	if collection != "" {
		sqlText += " AND collection = ?"
		args = append(args, collection)
	}
	sqlText += " ORDER BY name ASC LIMIT 1000"

	rows, err := d.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var a AssetRecord
		if err := rows.Scan(&a.ID, &a.Name, &a.FilePath, &a.AssetType, &a.Collection,
			&a.FileSize, &a.Checksum, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		results = append(results, SearchResult{Asset: a})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		meta, err := d.assetMetadata(ctx, results[i].Asset.ID)
		if err != nil {
			return nil, err
		}
		tags, err := d.assetTags(ctx, results[i].Asset.ID)
		if err != nil {
			return nil, err
		}
		results[i].Metadata = meta
		results[i].Tags = tags
	}
	return results, nil
}

func (d *Database) assetMetadata(ctx context.Context, assetID int64) ([]AssetMetadata, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT asset_id, key, value FROM asset_metadata WHERE asset_id = ? ORDER BY key
    `, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var meta []AssetMetadata
	for rows.Next() {
		var m AssetMetadata
		if err := rows.Scan(&m.AssetID, &m.Key, &m.Value); err != nil {
			return nil, err
		}
		meta = append(meta, m)
	}
	return meta, rows.Err()
}

func (d *Database) assetTags(ctx context.Context, assetID int64) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT tag_name FROM asset_tags WHERE asset_id = ? ORDER BY tag_name
    `, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// Collections возвращает все коллекции, отсортированные по имени.
func (d *Database) Collections(ctx context.Context) ([]Collection, error) {
	rows, err := d.db.QueryContext(ctx, `
        SELECT id, name, COALESCE(description, ''), COALESCE(license_info, ''), asset_count
        FROM collections ORDER BY name
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []Collection
	for rows.Next() {
		var c Collection
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.LicenseInfo, &c.AssetCount); err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, rows.Err()
}

func fileChecksum(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
