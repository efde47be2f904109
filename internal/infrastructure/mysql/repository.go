package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ckbrelay/internal/application"
	"ckbrelay/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const lastRelayedKey = "last_relayed_block"

type Repository struct {
	db *sql.DB
}

func NewRepository(dsn string) (*Repository, error) {
	if dsn == "" {
		return nil, errors.New("db dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	if err := createSchema(db); err != nil {
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
			block_number BIGINT UNSIGNED NOT NULL,
			block_hash VARCHAR(66) NOT NULL,
			inputs MEDIUMTEXT NOT NULL,
			outputs MEDIUMTEXT NOT NULL,
			relayed_at DATETIME(6) NOT NULL,
			PRIMARY KEY (block_number)
		)`,
		`CREATE TABLE IF NOT EXISTS call_records (
			id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
			contract VARCHAR(32) NOT NULL,
			method VARCHAR(64) NOT NULL,
			selector VARCHAR(10) NOT NULL,
			payload_size BIGINT UNSIGNED NOT NULL,
			items BIGINT UNSIGNED NOT NULL,
			from_block BIGINT UNSIGNED NOT NULL,
			to_block BIGINT UNSIGNED NOT NULL,
			trace_id VARCHAR(32) NOT NULL,
			decoded_ok TINYINT(1) NOT NULL,
			error TEXT NOT NULL,
			observed_at DATETIME(6) NOT NULL,
			PRIMARY KEY (id),
			KEY call_records_contract_idx (contract, method),
			KEY call_records_block_idx (from_block)
		)`,
		`CREATE TABLE IF NOT EXISTS state (
			state_key VARCHAR(64) NOT NULL,
			state_value VARCHAR(64) NOT NULL,
			PRIMARY KEY (state_key)
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
	ctx, span := startDBSpan(ctx, "mysql.StoreRelayedBlocks", attribute.Int("block.count", len(blocks)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(span, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO relayed_blocks (block_number, block_hash, inputs, outputs, relayed_at)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			block_hash = VALUES(block_hash),
			inputs = VALUES(inputs),
			outputs = VALUES(outputs),
			relayed_at = VALUES(relayed_at)`)
	if err != nil {
		_ = tx.Rollback()
		return fail(span, err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, block := range blocks {
		inputs, outputs, err := MarshalOutPoints(block)
		if err != nil {
			_ = tx.Rollback()
			return fail(span, err)
		}
		if _, err := stmt.ExecContext(ctx, block.Number, block.Hash.Hex(), inputs, outputs, now); err != nil {
			_ = tx.Rollback()
			return fail(span, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail(span, err)
	}
	return nil
}

func (r *Repository) RelayedBlock(ctx context.Context, number uint64) (domain.RelayedBlock, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	row := r.db.QueryRowContext(ctx, `SELECT block_number, block_hash, inputs, outputs FROM relayed_blocks WHERE block_number = ?`, number)
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
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `SELECT block_number, block_hash, inputs, outputs FROM relayed_blocks
		WHERE block_number >= ? ORDER BY block_number ASC`, fromBlock)
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
	ctx, span := startDBSpan(ctx, "mysql.DeleteRelayedBlocksFrom", attribute.Int64("from.block", int64(fromBlock)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := r.db.ExecContext(ctx, `DELETE FROM relayed_blocks WHERE block_number >= ?`, fromBlock); err != nil {
		return fail(span, err)
	}
	return nil
}

func (r *Repository) RelayedRange(ctx context.Context) (uint64, uint64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

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
	if err := r.db.QueryRowContext(ctx, `SELECT state_value FROM state WHERE state_key = ?`, lastRelayedKey).Scan(&value); err != nil {
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
	ctx, span := startDBSpan(ctx, "mysql.SetLastRelayedBlock", attribute.Int64("block.number", int64(block)))
	defer span.End()
	_, err := r.db.ExecContext(ctx, `INSERT INTO state (state_key, state_value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE state_value = VALUES(state_value)`, lastRelayedKey, strconv.FormatUint(block, 10))
	if err != nil {
		return fail(span, err)
	}
	return nil
}

func (r *Repository) ClearLastRelayedBlock(ctx context.Context) error {
	ctx, span := startDBSpan(ctx, "mysql.ClearLastRelayedBlock")
	defer span.End()
	if _, err := r.db.ExecContext(ctx, `DELETE FROM state WHERE state_key = ?`, lastRelayedKey); err != nil {
		return fail(span, err)
	}
	return nil
}

func (r *Repository) StoreCallRecords(ctx context.Context, records []domain.CallRecord) error {
	if len(records) == 0 {
		return nil
	}
	ctx, span := startDBSpan(ctx, "mysql.StoreCallRecords", attribute.Int("record.count", len(records)))
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(span, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO call_records
		(contract, method, selector, payload_size, items, from_block, to_block, trace_id, decoded_ok, error, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fail(span, err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.Contract, rec.Method, rec.Selector, rec.PayloadSize, rec.Items,
			rec.FromBlock, rec.ToBlock, rec.TraceID, rec.DecodedOK, rec.Error, rec.ObservedAt); err != nil {
			_ = tx.Rollback()
			return fail(span, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fail(span, err)
	}
	return nil
}

func (r *Repository) QueryCallRecords(ctx context.Context, filter application.CallRecordFilter) ([]domain.CallRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query, args := CallRecordQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.CallRecord
	for rows.Next() {
		var rec domain.CallRecord
		if err := rows.Scan(&rec.Contract, &rec.Method, &rec.Selector, &rec.PayloadSize, &rec.Items,
			&rec.FromBlock, &rec.ToBlock, &rec.TraceID, &rec.DecodedOK, &rec.Error, &rec.ObservedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.db.PingContext(ctx)
}

// CallRecordQuery builds the newest-first audit query for filter.
func CallRecordQuery(filter application.CallRecordFilter) (string, []any) {
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
		args = append(args, *filter.FromBlock)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, application.NormalizeLimit(filter.Limit))
	return query, args
}

type outPointJSON struct {
	TxHash common.Hash `json:"tx_hash"`
	Index  uint32      `json:"index"`
}

// MarshalOutPoints serialises the outpoint lists of a relayed block as JSON
// columns.
func MarshalOutPoints(block domain.RelayedBlock) (string, string, error) {
	inputs, err := json.Marshal(toOutPointJSON(block.Inputs))
	if err != nil {
		return "", "", err
	}
	outputs, err := json.Marshal(toOutPointJSON(block.Outputs))
	if err != nil {
		return "", "", err
	}
	return string(inputs), string(outputs), nil
}

func UnmarshalOutPoints(raw string) ([]domain.OutPoint, error) {
	var items []outPointJSON
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	ops := make([]domain.OutPoint, 0, len(items))
	for _, item := range items {
		ops = append(ops, domain.OutPoint{TxHash: item.TxHash, Index: item.Index})
	}
	return ops, nil
}

func toOutPointJSON(ops []domain.OutPoint) []outPointJSON {
	items := make([]outPointJSON, 0, len(ops))
	for _, op := range ops {
		items = append(items, outPointJSON{TxHash: op.TxHash, Index: op.Index})
	}
	return items
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelayedBlock(row rowScanner) (domain.RelayedBlock, error) {
	var (
		block           domain.RelayedBlock
		hash            string
		inputs, outputs string
	)
	if err := row.Scan(&block.Number, &hash, &inputs, &outputs); err != nil {
		return domain.RelayedBlock{}, err
	}
	block.Hash = common.HexToHash(hash)
	var err error
	if block.Inputs, err = UnmarshalOutPoints(inputs); err != nil {
		return domain.RelayedBlock{}, fmt.Errorf("block %d inputs: %w", block.Number, err)
	}
	if block.Outputs, err = UnmarshalOutPoints(outputs); err != nil {
		return domain.RelayedBlock{}, fmt.Errorf("block %d outputs: %w", block.Number, err)
	}
	return block, nil
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func startDBSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("db.system", "mysql"))
	return otel.Tracer("ckbrelay/mysql").Start(ctx, name, trace.WithSpanKind(trace.SpanKindClient), trace.WithAttributes(attrs...))
}
