package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ckbrelay/internal/application"
	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

const lastRelayedKey = "last_relayed_block"

// Repository keeps relay state in a single embedded database file, for
// deployments without MySQL.
type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if dir := filepath.Dir(dbPath); dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func createSchema(db *sql.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS relayed_blocks (
			block_number INTEGER PRIMARY KEY,
			block_hash TEXT NOT NULL,
			inputs TEXT NOT NULL,
			outputs TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS call_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			contract TEXT NOT NULL,
			method TEXT NOT NULL,
			selector TEXT NOT NULL,
			payload_size INTEGER NOT NULL,
			items INTEGER NOT NULL,
			from_block INTEGER NOT NULL,
			to_block INTEGER NOT NULL,
			trace_id TEXT NOT NULL,
			decoded_ok INTEGER NOT NULL,
			error TEXT NOT NULL,
			observed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS state (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) StoreRelayedBlocks(ctx context.Context, blocks []domain.RelayedBlock) error {
	if len(blocks) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO relayed_blocks (block_number, block_hash, inputs, outputs)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(block_number) DO UPDATE SET
			block_hash = excluded.block_hash,
			inputs = excluded.inputs,
			outputs = excluded.outputs`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, block := range blocks {
		inputs, err := json.Marshal(nonNil(block.Inputs))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		outputs, err := json.Marshal(nonNil(block.Outputs))
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		if _, err := stmt.ExecContext(ctx, int64(block.Number), block.Hash.Hex(), string(inputs), string(outputs)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) RelayedBlock(ctx context.Context, number uint64) (domain.RelayedBlock, bool, error) {
	row := r.db.QueryRowContext(ctx, `SELECT block_number, block_hash, inputs, outputs FROM relayed_blocks WHERE block_number = ?`, int64(number))
	block, err := scanRelayedBlock(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.RelayedBlock{}, false, nil
		}
		return domain.RelayedBlock{}, false, err
	}
	return block, true, nil
}

func (r *Repository) RelayedBlocksFrom(ctx context.Context, fromBlock uint64) ([]domain.RelayedBlock, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT block_number, block_hash, inputs, outputs FROM relayed_blocks
		WHERE block_number >= ? ORDER BY block_number ASC`, int64(fromBlock))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []domain.RelayedBlock
	for rows.Next() {
		block, err := scanRelayedBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, rows.Err()
}

func (r *Repository) DeleteRelayedBlocksFrom(ctx context.Context, fromBlock uint64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM relayed_blocks WHERE block_number >= ?`, int64(fromBlock))
	return err
}

func (r *Repository) RelayedRange(ctx context.Context) (uint64, uint64, bool, error) {
	var low, high sql.NullInt64
	if err := r.db.QueryRowContext(ctx, `SELECT MIN(block_number), MAX(block_number) FROM relayed_blocks`).Scan(&low, &high); err != nil {
		return 0, 0, false, err
	}
	if !low.Valid || !high.Valid {
		return 0, 0, false, nil
	}
	return uint64(low.Int64), uint64(high.Int64), true, nil
}

func (r *Repository) LastRelayedBlock(ctx context.Context) (uint64, bool, error) {
	var value string
	if err := r.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, lastRelayedKey).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	block, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt relay state %q: %w", value, err)
	}
	return block, true, nil
}

func (r *Repository) SetLastRelayedBlock(ctx context.Context, block uint64) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, lastRelayedKey, strconv.FormatUint(block, 10))
	return err
}

func (r *Repository) ClearLastRelayedBlock(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, lastRelayedKey)
	return err
}

func (r *Repository) StoreCallRecords(ctx context.Context, records []domain.CallRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO call_records
		(contract, method, selector, payload_size, items, from_block, to_block, trace_id, decoded_ok, error, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		ok := 0
		if rec.DecodedOK {
			ok = 1
		}
		if _, err := stmt.ExecContext(ctx, rec.Contract, rec.Method, rec.Selector, rec.PayloadSize, rec.Items,
			int64(rec.FromBlock), int64(rec.ToBlock), rec.TraceID, ok, rec.Error,
			rec.ObservedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (r *Repository) QueryCallRecords(ctx context.Context, filter application.CallRecordFilter) ([]domain.CallRecord, error) {
	query := `SELECT contract, method, selector, payload_size, items, from_block, to_block, trace_id, decoded_ok, error, observed_at
		FROM call_records WHERE 1=1`
	var args []any
	if filter.Contract != "" {
		query += " AND contract = ?"
		args = append(args, filter.Contract)
	}
	if filter.Method != "" {
		query += " AND method = ?"
		args = append(args, filter.Method)
	}
	if filter.FromBlock != nil {
		query += " AND to_block >= ?"
		args = append(args, int64(*filter.FromBlock))
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, application.NormalizeLimit(filter.Limit))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.CallRecord
	for rows.Next() {
		var (
			rec        domain.CallRecord
			from, to   int64
			ok         int
			observedAt string
		)
		if err := rows.Scan(&rec.Contract, &rec.Method, &rec.Selector, &rec.PayloadSize, &rec.Items,
			&from, &to, &rec.TraceID, &ok, &rec.Error, &observedAt); err != nil {
			return nil, err
		}
		rec.FromBlock, rec.ToBlock = uint64(from), uint64(to)
		rec.DecodedOK = ok == 1
		if rec.ObservedAt, err = time.Parse(time.RFC3339Nano, observedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelayedBlock(row rowScanner) (domain.RelayedBlock, error) {
	var (
		number          int64
		hash            string
		inputs, outputs string
	)
	if err := row.Scan(&number, &hash, &inputs, &outputs); err != nil {
		return domain.RelayedBlock{}, err
	}
	block := domain.RelayedBlock{Number: uint64(number), Hash: common.HexToHash(hash)}
	if err := json.Unmarshal([]byte(inputs), &block.Inputs); err != nil {
		return domain.RelayedBlock{}, fmt.Errorf("block %d inputs: %w", number, err)
	}
	if err := json.Unmarshal([]byte(outputs), &block.Outputs); err != nil {
		return domain.RelayedBlock{}, fmt.Errorf("block %d outputs: %w", number, err)
	}
	return block, nil
}

func nonNil(ops []domain.OutPoint) []domain.OutPoint {
	if ops == nil {
		return []domain.OutPoint{}
	}
	return ops
}
