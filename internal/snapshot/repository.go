package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/tuya-fusion-core/internal/point"
)

// Repository defines the interface for snapshot persistence.
// This abstraction allows for different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Repository interface {
	// Save inserts or replaces the snapshot for a device.
	Save(ctx context.Context, dev *point.Device) error

	// Get retrieves one snapshot.
	// Returns ErrNotFound if no snapshot exists for the id.
	Get(ctx context.Context, id string) (*point.Device, error)

	// List retrieves all snapshots.
	List(ctx context.Context) ([]*point.Device, error)

	// Delete removes a snapshot by id.
	// Returns ErrNotFound if no snapshot exists for the id.
	Delete(ctx context.Context, id string) error
}

// identity carries the scalar fields that have no column of their own.
type identity struct {
	LocalKey   string `json:"local_key,omitempty"`
	UUID       string `json:"uuid,omitempty"`
	AssetID    string `json:"asset_id,omitempty"`
	Icon       string `json:"icon,omitempty"`
	IP         string `json:"ip,omitempty"`
	TimeZone   string `json:"time_zone,omitempty"`
	Model      string `json:"model,omitempty"`
	DataModel  string `json:"data_model,omitempty"`
	ActiveTime int64  `json:"active_time,omitempty"`
	CreateTime int64  `json:"create_time,omitempty"`
	UpdateTime int64  `json:"update_time,omitempty"`
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
// The db parameter should be an open SQLite connection with the
// schema migrated.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save inserts or replaces the snapshot for a device.
func (r *SQLiteRepository) Save(ctx context.Context, dev *point.Device) error {
	statusJSON, err := json.Marshal(dev.Status)
	if err != nil {
		return fmt.Errorf("marshalling status: %w", err)
	}
	functionJSON, err := json.Marshal(dev.Function)
	if err != nil {
		return fmt.Errorf("marshalling function: %w", err)
	}
	rangeJSON, err := json.Marshal(dev.StatusRange)
	if err != nil {
		return fmt.Errorf("marshalling status_range: %w", err)
	}
	strategyJSON, err := json.Marshal(dev.LocalStrategy)
	if err != nil {
		return fmt.Errorf("marshalling local_strategy: %w", err)
	}
	identityJSON, err := json.Marshal(identity{
		LocalKey:   dev.LocalKey,
		UUID:       dev.UUID,
		AssetID:    dev.AssetID,
		Icon:       dev.Icon,
		IP:         dev.IP,
		TimeZone:   dev.TimeZone,
		Model:      dev.Model,
		DataModel:  dev.DataModel,
		ActiveTime: dev.ActiveTime,
		CreateTime: dev.CreateTime,
		UpdateTime: dev.UpdateTime,
	})
	if err != nil {
		return fmt.Errorf("marshalling identity: %w", err)
	}

	query := `
		INSERT INTO device_snapshots (
			id, name, category, product_id, product_name, source,
			sub, online, identity, status, function, status_range,
			local_strategy, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			product_id = excluded.product_id,
			product_name = excluded.product_name,
			source = excluded.source,
			sub = excluded.sub,
			online = excluded.online,
			identity = excluded.identity,
			status = excluded.status,
			function = excluded.function,
			status_range = excluded.status_range,
			local_strategy = excluded.local_strategy,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, query,
		dev.ID,
		dev.Name,
		dev.Category,
		dev.ProductID,
		dev.ProductName,
		dev.Source,
		boolToInt(dev.Sub),
		boolToInt(dev.Online),
		string(identityJSON),
		string(statusJSON),
		string(functionJSON),
		string(rangeJSON),
		string(strategyJSON),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	return nil
}

// Get retrieves one snapshot.
func (r *SQLiteRepository) Get(ctx context.Context, id string) (*point.Device, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	dev, err := scanSnapshot(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying snapshot: %w", err)
	}
	return dev, nil
}

// List retrieves all snapshots.
func (r *SQLiteRepository) List(ctx context.Context) ([]*point.Device, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+" ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	var devices []*point.Device
	for rows.Next() {
		dev, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		devices = append(devices, dev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return devices, nil
}

// Delete removes a snapshot by id.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM device_snapshots WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `
	SELECT id, name, category, product_id, product_name, source,
		sub, online, identity, status, function, status_range,
		local_strategy
	FROM device_snapshots`

// rowScanner abstracts sql.Row and sql.Rows for the scan helper.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanSnapshot scans one row into a device, rebuilding the containers
// from their JSON columns.
func scanSnapshot(scanner rowScanner) (*point.Device, error) {
	var (
		dev          point.Device
		sub, online  int
		identityJSON string
		statusJSON   string
		functionJSON string
		rangeJSON    string
		strategyJSON string
	)

	if err := scanner.Scan(
		&dev.ID, &dev.Name, &dev.Category, &dev.ProductID, &dev.ProductName,
		&dev.Source, &sub, &online, &identityJSON, &statusJSON,
		&functionJSON, &rangeJSON, &strategyJSON,
	); err != nil {
		return nil, err
	}

	dev.Sub = sub != 0
	dev.Online = online != 0

	var ident identity
	if err := json.Unmarshal([]byte(identityJSON), &ident); err != nil {
		return nil, fmt.Errorf("unmarshalling identity: %w", err)
	}
	dev.LocalKey = ident.LocalKey
	dev.UUID = ident.UUID
	dev.AssetID = ident.AssetID
	dev.Icon = ident.Icon
	dev.IP = ident.IP
	dev.TimeZone = ident.TimeZone
	dev.Model = ident.Model
	dev.DataModel = ident.DataModel
	dev.ActiveTime = ident.ActiveTime
	dev.CreateTime = ident.CreateTime
	dev.UpdateTime = ident.UpdateTime

	if err := json.Unmarshal([]byte(statusJSON), &dev.Status); err != nil {
		return nil, fmt.Errorf("unmarshalling status: %w", err)
	}
	if err := json.Unmarshal([]byte(functionJSON), &dev.Function); err != nil {
		return nil, fmt.Errorf("unmarshalling function: %w", err)
	}
	if err := json.Unmarshal([]byte(rangeJSON), &dev.StatusRange); err != nil {
		return nil, fmt.Errorf("unmarshalling status_range: %w", err)
	}
	if err := json.Unmarshal([]byte(strategyJSON), &dev.LocalStrategy); err != nil {
		return nil, fmt.Errorf("unmarshalling local_strategy: %w", err)
	}

	dev.EnsureContainers()
	return &dev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
