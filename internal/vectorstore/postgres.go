package vectorstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pgvector/pgvector-go"
)

const defaultInsertBatch = 500

var collectionName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// ValidCollection reports whether name can be used as a table name unquoted.
func ValidCollection(name string) bool {
	return collectionName.MatchString(name)
}

// Postgres stores a collection as a table with a pgvector column and an
// HNSW cosine index.
type Postgres struct {
	db        *sql.DB
	table     string
	batchSize int
}

// OpenPostgres connects to databaseURL and checks the connection.
func OpenPostgres(ctx context.Context, databaseURL, collection string, batchSize int) (*Postgres, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	if !ValidCollection(collection) {
		return nil, fmt.Errorf("invalid collection name %q", collection)
	}
	if batchSize <= 0 {
		batchSize = defaultInsertBatch
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return &Postgres{db: db, table: collection, batchSize: batchSize}, nil
}

func (p *Postgres) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

func (p *Postgres) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}

	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS (
		  SELECT 1 FROM information_schema.tables
		  WHERE table_schema = current_schema() AND table_name = $1
		)`, p.table).Scan(&exists)
	if err != nil {
		return fmt.Errorf("collection check: %w", err)
	}
	if exists {
		var have int
		err := p.db.QueryRowContext(ctx, `
			SELECT atttypmod FROM pg_attribute
			WHERE attrelid = $1::regclass AND attname = 'embedding'`, p.table).Scan(&have)
		if err != nil {
			return fmt.Errorf("collection dimension: %w", err)
		}
		if have != dim {
			return fmt.Errorf("%w: %s has dimension %d, vectors have %d", ErrSchemaMismatch, p.table, have, dim)
		}
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	for _, stmt := range createStatements(p.table, dim) {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("create collection: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create collection: %w", err)
	}
	return nil
}

func createStatements(table string, dim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                 BIGSERIAL PRIMARY KEY,
			chunk_id           TEXT NOT NULL,
			text               TEXT NOT NULL,
			file_name          TEXT NOT NULL,
			bookmark           TEXT NOT NULL DEFAULT '',
			chapter_title      TEXT NOT NULL DEFAULT '',
			extractor_bookmark TEXT NOT NULL DEFAULT '',
			page_number        INTEGER NOT NULL,
			has_tables         BOOLEAN NOT NULL DEFAULT false,
			embedding          vector(%d) NOT NULL
		)`, table, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_page_idx ON %s (file_name, page_number)`, table, table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_chunk_idx ON %s (chunk_id)`, table, table),
	}
}

const rowColumns = `id, chunk_id, text, file_name, bookmark, chapter_title, extractor_bookmark, page_number, has_tables, embedding`

func (p *Postgres) Insert(ctx context.Context, rows []Row) (int, error) {
	written := 0
	for start := 0; start < len(rows); start += p.batchSize {
		end := min(start+p.batchSize, len(rows))
		if err := p.insertBatch(ctx, rows[start:end]); err != nil {
			return written, fmt.Errorf("insert rows %d-%d: %w", start, end, err)
		}
		written += end - start
	}
	return written, nil
}

func (p *Postgres) insertBatch(ctx context.Context, rows []Row) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
		INSERT INTO %s
			(chunk_id, text, file_name, bookmark, chapter_title, extractor_bookmark, page_number, has_tables, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`, p.table)
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ChunkID, r.Text, r.FileName, r.Bookmark, r.ChapterTitle, r.ExtractorBookmark,
			r.PageNumber, r.HasTables, pgvector.NewVector(r.Embedding),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (p *Postgres) Search(ctx context.Context, vec []float32, f Filter, k int) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	args := []any{pgvector.NewVector(vec)}
	where, args := whereClause(f, args)
	args = append(args, k)
	q := fmt.Sprintf(`
		SELECT %s, 1 - (embedding <=> $1) AS score
		FROM %s%s
		ORDER BY embedding <=> $1
		LIMIT $%d`, rowColumns, p.table, where, len(args))

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := scanRow(rows, &h.Row, &h.Score); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (p *Postgres) Query(ctx context.Context, f Filter, limit int) ([]Row, error) {
	where, args := whereClause(f, nil)
	q := fmt.Sprintf(`SELECT %s FROM %s%s ORDER BY file_name, page_number, id`, rowColumns, p.table, where)
	if limit > 0 {
		args = append(args, limit)
		q += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := scanRow(rows, &r); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRow(rows *sql.Rows, r *Row, extra ...any) error {
	var emb pgvector.Vector
	dest := []any{
		&r.ID, &r.ChunkID, &r.Text, &r.FileName, &r.Bookmark, &r.ChapterTitle,
		&r.ExtractorBookmark, &r.PageNumber, &r.HasTables, &emb,
	}
	if err := rows.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	r.Embedding = emb.Slice()
	return nil
}

func (p *Postgres) Count(ctx context.Context, f Filter) (int64, error) {
	where, args := whereClause(f, nil)
	var n int64
	q := fmt.Sprintf(`SELECT count(*) FROM %s%s`, p.table, where)
	if err := p.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func (p *Postgres) Update(ctx context.Context, f Filter, u Update) (int64, error) {
	set, args := setClause(u)
	if set == "" {
		return 0, fmt.Errorf("update changes nothing")
	}
	where, args := whereClause(f, args)
	res, err := p.db.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET %s%s`, p.table, set, where), args...)
	if err != nil {
		return 0, fmt.Errorf("update: %w", err)
	}
	return res.RowsAffected()
}

func (p *Postgres) Delete(ctx context.Context, f Filter) (int64, error) {
	where, args := whereClause(f, nil)
	res, err := p.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s%s`, p.table, where), args...)
	if err != nil {
		if isUndefinedTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("delete: %w", err)
	}
	return res.RowsAffected()
}

// isUndefinedTable reports a query against a collection that was never
// created. Count and Delete treat it as empty.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "42P01"
}

// whereClause compiles f into " WHERE ..." with placeholders numbered after
// the existing args, or "" for an empty filter.
func whereClause(f Filter, args []any) (string, []any) {
	var conds []string
	add := func(expr string, v any) {
		args = append(args, v)
		conds = append(conds, strings.ReplaceAll(expr, "?", "$"+strconv.Itoa(len(args))))
	}
	if f.FileName != "" {
		add("file_name = ?", f.FileName)
	}
	if f.PageNumber != 0 {
		add("page_number = ?", f.PageNumber)
	}
	if f.Bookmark != "" {
		add("bookmark = ?", f.Bookmark)
	}
	if f.ChapterTitleContains != "" {
		add("strpos(lower(chapter_title), lower(?)) > 0", f.ChapterTitleContains)
	}
	if f.TextContains != "" {
		add("strpos(lower(text), lower(?)) > 0", f.TextContains)
	}
	if f.HasTables != nil {
		add("has_tables = ?", *f.HasTables)
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func setClause(u Update) (string, []any) {
	var (
		sets []string
		args []any
	)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, col+" = $"+strconv.Itoa(len(args)))
	}
	if u.Text != nil {
		add("text", *u.Text)
	}
	if u.Bookmark != nil {
		add("bookmark", *u.Bookmark)
	}
	if u.ChapterTitle != nil {
		add("chapter_title", *u.ChapterTitle)
	}
	if u.HasTables != nil {
		add("has_tables", *u.HasTables)
	}
	if u.Embedding != nil {
		add("embedding", pgvector.NewVector(u.Embedding))
	}
	return strings.Join(sets, ", "), args
}
