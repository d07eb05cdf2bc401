package sequence

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const invoiceCounter = "invoice"

// TransactionID returns an operational reference of the form
// TXN-YYYYMMDD-NNNNNN. The suffix is random, not sequential, so the id
// carries no ordering guarantee and may in theory collide.
func TransactionID(now time.Time) string {
	n := uint32(now.UnixNano() % 1_000_000)
	var b [4]byte
	if _, err := rand.Read(b[:]); err == nil {
		n = binary.BigEndian.Uint32(b[:]) % 1_000_000
	}
	return fmt.Sprintf("TXN-%s-%06d", now.UTC().Format("20060102"), n)
}

// NextInvoiceNumber increments the branch's persisted invoice counter and
// formats the result. It must run inside the sale's transaction: the
// increment locks the counter row, so concurrent sales serialize here and
// a rolled-back sale may leave a gap but never a duplicate.
func NextInvoiceNumber(ctx context.Context, tx *sqlx.Tx, branchCode string) (string, error) {
	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE sequence_counters SET last_value = last_value + 1 WHERE name = ?`),
		invoiceCounter)
	if err != nil {
		return "", fmt.Errorf("advance invoice counter: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// counter row missing on a pre-bootstrap database
		if _, err := tx.ExecContext(ctx,
			tx.Rebind(`INSERT INTO sequence_counters (name, last_value) VALUES (?, ?)`),
			invoiceCounter, 1); err != nil {
			return "", fmt.Errorf("seed invoice counter: %w", err)
		}
		return Format(branchCode, 1), nil
	}

	var value int64
	if err := tx.GetContext(ctx, &value,
		tx.Rebind(`SELECT last_value FROM sequence_counters WHERE name = ?`),
		invoiceCounter); err != nil {
		return "", fmt.Errorf("read invoice counter: %w", err)
	}
	return Format(branchCode, value), nil
}

// Format renders an invoice number, e.g. B001-INV-000001. Values beyond
// six digits widen rather than wrap.
func Format(branchCode string, value int64) string {
	return fmt.Sprintf("%s-INV-%06d", branchCode, value)
}
