package signal

import (
	"fmt"
	"strings"

	"github.com/newthinker/perftrack/internal/core"
)

// schema is shared by the SQLite and Postgres backends.
const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id                  TEXT PRIMARY KEY,
	date_signal         TEXT NOT NULL,
	ticker              TEXT NOT NULL,
	universe            TEXT NOT NULL,
	strategy            TEXT NOT NULL,
	close_j             DOUBLE PRECISION NOT NULL DEFAULT 0,
	stop_loss_technical DOUBLE PRECISION NOT NULL DEFAULT 0,
	trade_status        TEXT NOT NULL DEFAULT 'PENDING',
	entry_price         DOUBLE PRECISION NOT NULL DEFAULT 0,
	entry_date          TEXT NOT NULL DEFAULT '',
	exit_price          DOUBLE PRECISION NOT NULL DEFAULT 0,
	exit_date           TEXT NOT NULL DEFAULT '',
	exit_reason         TEXT NOT NULL DEFAULT '',
	breakeven_activated BOOLEAN NOT NULL DEFAULT FALSE,
	entry_slippage      DOUBLE PRECISION NOT NULL DEFAULT 0,
	exit_slippage       DOUBLE PRECISION NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_signals_order ON signals (date_signal, universe, strategy, ticker);
`

const signalColumns = `id, date_signal, ticker, universe, strategy, close_j, stop_loss_technical,
	trade_status, entry_price, entry_date, exit_price, exit_date, exit_reason,
	breakeven_activated, entry_slippage, exit_slippage`

// dialect differs only in placeholders and offset-without-limit syntax.
// Both use numbered placeholders so UPDATE can bind id first.
type dialect struct {
	placeholder func(n int) string
	noLimit     string
	orderBy     string
}

var (
	sqliteDialect = dialect{
		placeholder: func(n int) string { return fmt.Sprintf("?%d", n) },
		noLimit:     "LIMIT -1",
		orderBy:     " ORDER BY date_signal, universe, strategy, ticker, id",
	}
	// Byte-order collation keeps Postgres in step with the other backends.
	postgresDialect = dialect{
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		orderBy:     ` ORDER BY date_signal COLLATE "C", universe COLLATE "C", strategy COLLATE "C", ticker COLLATE "C", id COLLATE "C"`,
	}
)

// where builds the WHERE clause for f, numbering placeholders from 1.
func (d dialect) where(f ListFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+" "+d.placeholder(len(args)))
	}

	if f.Universe != "" {
		add("universe =", string(f.Universe))
	}
	if f.Strategy != "" {
		add("strategy =", f.Strategy)
	}
	if f.Ticker != "" {
		add("ticker =", f.Ticker)
	}
	if f.Status != "" {
		add("trade_status =", string(f.Status))
	}
	if f.From != "" {
		add("date_signal >=", f.From)
	}
	if f.To != "" {
		add("date_signal <=", f.To)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// page renders LIMIT and OFFSET.
func (d dialect) page(f ListFilter) string {
	var b strings.Builder
	switch {
	case f.Limit > 0:
		fmt.Fprintf(&b, " LIMIT %d", f.Limit)
	case f.Offset > 0 && d.noLimit != "":
		b.WriteString(" " + d.noLimit)
	}
	if f.Offset > 0 {
		fmt.Fprintf(&b, " OFFSET %d", f.Offset)
	}
	return b.String()
}

func (d dialect) selectQuery(f ListFilter) (string, []any) {
	where, args := d.where(f)
	return "SELECT " + signalColumns + " FROM signals" + where + d.orderBy + d.page(f), args
}

func (d dialect) countQuery(f ListFilter) (string, []any) {
	where, args := d.where(f)
	return "SELECT COUNT(*) FROM signals" + where, args
}

func (d dialect) insertQuery() string {
	return "INSERT INTO signals (" + signalColumns + ") VALUES (" + d.placeholders(1, 16) + ")"
}

func (d dialect) updateQuery() string {
	cols := []string{
		"date_signal", "ticker", "universe", "strategy", "close_j", "stop_loss_technical",
		"trade_status", "entry_price", "entry_date", "exit_price", "exit_date", "exit_reason",
		"breakeven_activated", "entry_slippage", "exit_slippage",
	}
	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = " + d.placeholder(i+2)
	}
	return "UPDATE signals SET " + strings.Join(sets, ", ") + " WHERE id = " + d.placeholder(1)
}

func (d dialect) placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.placeholder(from + i)
	}
	return strings.Join(ph, ", ")
}

// signalArgs returns the column values of sig in signalColumns order.
func signalArgs(sig core.Signal) []any {
	e := sig.Execution
	return []any{
		sig.ID, sig.DateSignal, sig.Ticker, string(sig.Universe), sig.Strategy,
		sig.InitialData.ReferencePrice, sig.InitialData.StopLoss,
		string(sig.Status()), e.EntryPrice, e.EntryDate, e.ExitPrice, e.ExitDate, string(e.ExitReason),
		e.BreakevenActivated, e.Slippage.EntryFactor, e.Slippage.ExitFactor,
	}
}

// rowScanner is satisfied by *sql.Row, *sql.Rows and pgx.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (core.Signal, error) {
	var sig core.Signal
	var universe, status, reason string
	e := &sig.Execution
	err := row.Scan(
		&sig.ID, &sig.DateSignal, &sig.Ticker, &universe, &sig.Strategy,
		&sig.InitialData.ReferencePrice, &sig.InitialData.StopLoss,
		&status, &e.EntryPrice, &e.EntryDate, &e.ExitPrice, &e.ExitDate, &reason,
		&e.BreakevenActivated, &e.Slippage.EntryFactor, &e.Slippage.ExitFactor,
	)
	if err != nil {
		return core.Signal{}, err
	}
	sig.Universe = core.Universe(universe)
	sig.TradeStatus = core.TradeStatus(status)
	e.ExitReason = core.ExitReason(reason)
	return sig, nil
}
