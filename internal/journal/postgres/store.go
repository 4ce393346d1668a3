// Package postgres persists a journal of position closes. The journal is
// advisory: the gateway records outcomes after the fact and close calls
// never fail on journal errors.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"clmmgate/internal/model"
)

// Store provides Postgres persistence for close results.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// CloseRecord is one journaled close.
type CloseRecord struct {
	Network    string
	PositionID string
	Owner      string
	Signature  string
	Status     model.TxStatus
	Fee        *big.Int
	RecordedAt time.Time
}

// RecordClose upserts the close outcome keyed by its canonical signature.
// Re-recording the same signature refreshes the mutable fields, so a close
// first journaled as pending settles once confirmed.
func (s *Store) RecordClose(ctx context.Context, positionID, owner string, res *model.CloseResult) error {
	if res == nil || res.Signature == "" {
		return fmt.Errorf("close result with signature required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO position_closes (
			network, position_id, owner, signature, status, fee,
			rent_refunded, base_removed, quote_removed, base_fee, quote_fee,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
		ON CONFLICT (network, signature)
		DO UPDATE SET
			status = EXCLUDED.status,
			fee = EXCLUDED.fee,
			rent_refunded = EXCLUDED.rent_refunded,
			base_removed = EXCLUDED.base_removed,
			quote_removed = EXCLUDED.quote_removed,
			base_fee = EXCLUDED.base_fee,
			quote_fee = EXCLUDED.quote_fee,
			updated_at = now()
	`,
		res.Network,
		positionID,
		owner,
		res.Signature,
		string(res.Status),
		numeric(res.Fee),
		numeric(res.PositionRentRefunded),
		numeric(res.BaseTokenAmountRemoved),
		numeric(res.QuoteTokenAmountRemoved),
		numeric(res.BaseFeeAmountCollected),
		numeric(res.QuoteFeeAmountCollected),
	)
	return err
}

// RecentCloses lists the latest journaled closes for an owner, newest first.
func (s *Store) RecentCloses(ctx context.Context, network, owner string, limit int) ([]CloseRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT network, position_id, owner, signature, status, fee, updated_at
		FROM position_closes
		WHERE network = $1 AND owner = $2
		ORDER BY updated_at DESC
		LIMIT $3
	`, network, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []CloseRecord
	for rows.Next() {
		var rec CloseRecord
		var status, fee string
		if err := rows.Scan(&rec.Network, &rec.PositionID, &rec.Owner, &rec.Signature, &status, &fee, &rec.RecordedAt); err != nil {
			return nil, err
		}
		rec.Status = model.TxStatus(status)
		if parsed, ok := new(big.Int).SetString(fee, 10); ok {
			rec.Fee = parsed
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastClose returns the latest journaled close for a position, if any.
func (s *Store) LastClose(ctx context.Context, network, positionID string) (*CloseRecord, bool, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT network, position_id, owner, signature, status, fee, updated_at
		FROM position_closes
		WHERE network = $1 AND position_id = $2
		ORDER BY updated_at DESC
		LIMIT 1
	`, network, positionID)

	var rec CloseRecord
	var status, fee string
	if err := row.Scan(&rec.Network, &rec.PositionID, &rec.Owner, &rec.Signature, &status, &fee, &rec.RecordedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	rec.Status = model.TxStatus(status)
	if parsed, ok := new(big.Int).SetString(fee, 10); ok {
		rec.Fee = parsed
	}
	return &rec, true, nil
}

// numeric renders a big.Int for a NUMERIC column; nil stores as zero.
func numeric(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
