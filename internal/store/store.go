package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"paygate/internal/models"
)

// Store is the audit journal for provisioned addresses and settlements. It is
// never consulted on the payment decision path; the address cache is the sole
// authority for outstanding deposit addresses.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) InsertDepositAddress(ctx context.Context, rec models.DepositRecord) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO deposit_addresses (address, network, expected_amount, provisioning_ref, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (address) DO NOTHING
	`,
		rec.Address,
		rec.Network,
		rec.ExpectedAmount,
		rec.ProvisioningRef,
		rec.CreatedAt,
	)
	return err
}

func (s *Store) InsertSettlement(ctx context.Context, rec models.SettlementRecord) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO settlements (id, tx_hash, network, payer, pay_to, amount, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (tx_hash) DO NOTHING
	`,
		rec.ID,
		rec.TxHash,
		rec.Network,
		rec.Payer,
		rec.PayTo,
		rec.Amount,
		rec.Status,
		rec.CreatedAt,
	)
	return err
}

func (s *Store) MarkSettlementConfirmed(ctx context.Context, txHash string, confirmedAt time.Time) (int64, error) {
	res, err := s.Pool.Exec(ctx, `
		UPDATE settlements
		SET status='confirmed', confirmed_at=$2
		WHERE tx_hash=$1 AND status='settled'
	`, txHash, confirmedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

func (s *Store) GetSettlement(ctx context.Context, txHash string) (*models.SettlementRecord, error) {
	row := s.Pool.QueryRow(ctx, `
		SELECT id, tx_hash, network, payer, pay_to, amount, status, created_at, confirmed_at
		FROM settlements WHERE tx_hash=$1
	`, txHash)

	var rec models.SettlementRecord
	var confirmedAt sql.NullTime

	err := row.Scan(
		&rec.ID,
		&rec.TxHash,
		&rec.Network,
		&rec.Payer,
		&rec.PayTo,
		&rec.Amount,
		&rec.Status,
		&rec.CreatedAt,
		&confirmedAt,
	)
	if err != nil {
		return nil, err
	}

	if confirmedAt.Valid {
		rec.ConfirmedAt = &confirmedAt.Time
	}
	return &rec, nil
}
