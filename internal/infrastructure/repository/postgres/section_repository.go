package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/academic-rag/internal/core/domain"
)

// SectionRepository persists the ingested course sections. Postgres is
// the source of truth for catalog rebuilds; the vector index can always
// be repopulated from it.
type SectionRepository struct {
	db *sql.DB
}

func NewSectionRepository(db *sql.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *SectionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS course_sections (
	id BIGSERIAL PRIMARY KEY,
	course_code TEXT NOT NULL,
	course_title TEXT NOT NULL,
	section_title TEXT NOT NULL,
	lecturers JSONB NOT NULL DEFAULT '[]'::jsonb,
	file_name TEXT,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_course_sections_code ON course_sections(course_code);
CREATE INDEX IF NOT EXISTS idx_course_sections_section ON course_sections(section_title);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SectionRepository) ListSections(ctx context.Context) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT course_code, course_title, section_title, lecturers, file_name, content
FROM course_sections
ORDER BY course_code, section_title, id
`)
	if err != nil {
		return nil, fmt.Errorf("list sections: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var doc domain.Document
		var lecturersRaw []byte
		var fileName sql.NullString

		err := rows.Scan(
			&doc.Metadata.CourseCode,
			&doc.Metadata.CourseTitle,
			&doc.Metadata.SectionTitle,
			&lecturersRaw,
			&fileName,
			&doc.Text,
		)
		if err != nil {
			return nil, fmt.Errorf("scan section row: %w", err)
		}
		if len(lecturersRaw) > 0 {
			if err := json.Unmarshal(lecturersRaw, &doc.Metadata.Lecturers); err != nil {
				return nil, fmt.Errorf("decode lecturers for %s: %w", doc.Metadata.CourseCode, err)
			}
		}
		doc.Metadata.FileName = fileName.String
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate section rows: %w", err)
	}
	return docs, nil
}

// ReplaceCourseSections swaps all stored sections of one course for the
// freshly ingested set in a single transaction.
func (r *SectionRepository) ReplaceCourseSections(ctx context.Context, courseCode string, docs []domain.Document) error {
	if courseCode == "" {
		return fmt.Errorf("replace sections: %w: empty course code", domain.ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM course_sections WHERE course_code = $1`, courseCode); err != nil {
		return fmt.Errorf("delete sections for %s: %w", courseCode, err)
	}

	for _, doc := range docs {
		lecturersJSON, err := json.Marshal(doc.Metadata.Lecturers)
		if err != nil {
			return fmt.Errorf("marshal lecturers: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
INSERT INTO course_sections (course_code, course_title, section_title, lecturers, file_name, content)
VALUES ($1,$2,$3,$4,$5,$6)
`,
			courseCode,
			doc.Metadata.CourseTitle,
			doc.Metadata.SectionTitle,
			lecturersJSON,
			nullableString(doc.Metadata.FileName),
			doc.Text,
		)
		if err != nil {
			return fmt.Errorf("insert section %q for %s: %w", doc.Metadata.SectionTitle, courseCode, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tx: %w", err)
	}
	return nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}
