package plan

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

const preparedName = "queryinsight_explain"

var placeholderRe = regexp.MustCompile(`\$(\d+)`)

// IsSelect reports whether a statement is safe to EXPLAIN. Only SELECT
// statements are ever explained.
func IsSelect(sqlText string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sqlText)), "SELECT")
}

// Fetcher obtains execution plans from a target database. Plain statements
// run under EXPLAIN inside a transaction that is always rolled back;
// parameterized statements are explained as generic plans without being run.
type Fetcher struct {
	db      *sql.DB
	analyze bool
}

type FetcherOption func(*Fetcher)

// WithAnalyze controls whether plain statements use EXPLAIN ANALYZE.
func WithAnalyze(analyze bool) FetcherOption {
	return func(f *Fetcher) {
		f.analyze = analyze
	}
}

func NewFetcher(db *sql.DB, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{db: db, analyze: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchPlan returns nil without error for statements that are not SELECTs.
func (f *Fetcher) FetchPlan(ctx context.Context, sqlText string) (*ExplainOutput, error) {
	if !IsSelect(sqlText) {
		return nil, nil
	}

	stmt := strings.TrimRight(strings.TrimSpace(sqlText), "; \t\n")

	var raw []byte
	var err error
	if n := placeholderCount(stmt); n > 0 {
		raw, err = f.explainGeneric(ctx, stmt, n)
	} else {
		raw, err = f.explain(ctx, stmt)
	}
	if err != nil {
		return nil, err
	}

	out, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (f *Fetcher) explain(ctx context.Context, stmt string) ([]byte, error) {
	tx, err := f.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	if err := tx.QueryRowContext(ctx, explainPrefix(f.analyze)+stmt).Scan(&raw); err != nil {
		return nil, fmt.Errorf("executing EXPLAIN: %w", err)
	}
	return raw, nil
}

func (f *Fetcher) explainGeneric(ctx context.Context, stmt string, params int) ([]byte, error) {
	conn, err := f.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PREPARE "+preparedName+" AS "+stmt); err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	// Prepared statements outlive the transaction.
	defer func() {
		_, _ = conn.ExecContext(context.WithoutCancel(ctx), "DEALLOCATE "+preparedName)
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "SET LOCAL plan_cache_mode = force_generic_plan"); err != nil {
		return nil, fmt.Errorf("forcing generic plan: %w", err)
	}

	var raw []byte
	if err := tx.QueryRowContext(ctx, genericExplain(params)).Scan(&raw); err != nil {
		return nil, fmt.Errorf("executing EXPLAIN: %w", err)
	}
	return raw, nil
}

func explainPrefix(analyze bool) string {
	if analyze {
		return "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) "
	}
	return "EXPLAIN (FORMAT JSON) "
}

func genericExplain(params int) string {
	args := make([]string, params)
	for i := range args {
		args[i] = "null"
	}
	return fmt.Sprintf("EXPLAIN (FORMAT JSON) EXECUTE %s(%s)", preparedName, strings.Join(args, ", "))
}

func placeholderCount(stmt string) int {
	highest := 0
	for _, m := range placeholderRe.FindAllStringSubmatch(stmt, -1) {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > highest {
			highest = n
		}
	}
	return highest
}
