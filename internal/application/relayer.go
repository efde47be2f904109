package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ckbrelay/internal/calldata"
	"ckbrelay/internal/streaming"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type RelayObserver interface {
	OnTipBlock(block uint64)
	OnBatchRelayed(fromBlock, toBlock uint64, headers, cells int)
	OnRollback(fromBlock uint64, blocks int)
}

type RelayerConfig struct {
	StartBlock    uint64
	Confirmations uint64
	PollInterval  time.Duration
	BatchSize     uint64
	RelayHeaders  bool
	RelayCells    bool
}

type Relayer struct {
	source   BlockSource
	writer   CallWriter
	repo     RelayRepository
	encoder  calldata.Encoder
	observer RelayObserver
	cfg      RelayerConfig
}

var ErrBlockUnavailable = errors.New("block unavailable")

func NewRelayer(source BlockSource, writer CallWriter, repo RelayRepository, encoder calldata.Encoder, observer RelayObserver, cfg RelayerConfig) (*Relayer, error) {
	if source == nil || writer == nil || repo == nil {
		return nil, errors.New("relayer dependencies must not be nil")
	}
	if encoder == nil {
		encoder = calldata.NewABIEncoder()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 20
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if !cfg.RelayHeaders && !cfg.RelayCells {
		return nil, errors.New("relayer has nothing to relay")
	}
	return &Relayer{source: source, writer: writer, repo: repo, encoder: encoder, observer: observer, cfg: cfg}, nil
}

func (r *Relayer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		relayed, err := r.Step(ctx)
		if err != nil && !errors.Is(err, ErrBlockUnavailable) {
			return err
		}
		if relayed > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

// Step reconciles forks, then relays at most one batch of confirmed blocks.
// It returns how many blocks were relayed.
func (r *Relayer) Step(ctx context.Context) (int, error) {
	if err := r.reconcileReorg(ctx); err != nil {
		return 0, err
	}

	current := r.cfg.StartBlock
	if last, ok, err := r.repo.LastRelayedBlock(ctx); err != nil {
		return 0, err
	} else if ok {
		current = last + 1
	}

	tip, err := r.source.TipBlockNumber(ctx)
	if err != nil {
		return 0, err
	}
	if r.observer != nil {
		r.observer.OnTipBlock(tip)
	}
	if tip < r.cfg.Confirmations {
		return 0, nil
	}
	confirmed := tip - r.cfg.Confirmations
	if current > confirmed {
		return 0, nil
	}
	toBlock := min(current+r.cfg.BatchSize-1, confirmed)

	ctx, span := otel.Tracer("ckbrelay/relayer").Start(ctx, "relay.batch")
	defer span.End()
	span.SetAttributes(attribute.Int64("block.from", int64(current)), attribute.Int64("block.to", int64(toBlock)))

	batch := NewRelayBatch(r.cfg.RelayHeaders, r.cfg.RelayCells)
	for number := current; number <= toBlock; number++ {
		block, ok, err := r.source.BlockByNumber(ctx, number)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
		if !ok {
			return 0, ErrBlockUnavailable
		}
		if err := batch.Add(block); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return 0, err
		}
	}

	headers, cells := batch.Len(), batch.CellCount()
	if err := batch.Flush(ctx, r.encoder, r.writer, r.repo); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	if r.observer != nil {
		r.observer.OnBatchRelayed(current, toBlock, headers, cells)
	}
	return headers, nil
}

func (r *Relayer) reconcileReorg(ctx context.Context) error {
	last, ok, err := r.repo.LastRelayedBlock(ctx)
	if err != nil || !ok {
		return err
	}
	matches, err := r.matchesChain(ctx, last)
	if err != nil || matches {
		return err
	}

	var ancestor *uint64
	for block := last; block > r.cfg.StartBlock; {
		block--
		matches, err := r.matchesChain(ctx, block)
		if err != nil {
			return err
		}
		if matches {
			ancestor = &block
			break
		}
	}

	from := r.cfg.StartBlock
	if ancestor != nil {
		from = *ancestor + 1
	}
	if err := r.rollbackFrom(ctx, from); err != nil {
		return err
	}
	if ancestor == nil {
		return r.repo.ClearLastRelayedBlock(ctx)
	}
	return r.repo.SetLastRelayedBlock(ctx, *ancestor)
}

// matchesChain reports whether the relayed hash at number is still canonical.
// A block that was never recorded counts as a mismatch.
func (r *Relayer) matchesChain(ctx context.Context, number uint64) (bool, error) {
	stored, ok, err := r.repo.RelayedBlock(ctx, number)
	if err != nil || !ok {
		return false, err
	}
	current, ok, err := r.source.BlockHash(ctx, number)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrBlockUnavailable
	}
	return current == stored.Hash, nil
}

func (r *Relayer) rollbackFrom(ctx context.Context, from uint64) error {
	orphaned, err := r.repo.RelayedBlocksFrom(ctx, from)
	if err != nil {
		return err
	}
	if len(orphaned) > 0 {
		to := orphaned[len(orphaned)-1].Number
		calls := RollbackCalls(orphaned, r.cfg.RelayHeaders, r.cfg.RelayCells)
		messages := make([]streaming.Message, 0, len(calls))
		for _, call := range calls {
			msg, err := CallMessage(r.encoder, streaming.MessageTypeRollback, call, from, to)
			if err != nil {
				return fmt.Errorf("failed to encode rollback: %w", err)
			}
			msg.Reason = "reorg"
			messages = append(messages, msg)
		}
		if err := r.writer.PublishCalls(ctx, messages); err != nil {
			return fmt.Errorf("failed to publish rollback: %w", err)
		}
	}
	if err := r.repo.DeleteRelayedBlocksFrom(ctx, from); err != nil {
		return err
	}
	slog.Warn("rolled back orphaned blocks", "from", from, "blocks", len(orphaned))
	if r.observer != nil {
		r.observer.OnRollback(from, len(orphaned))
	}
	return nil
}
