package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/BerylCAtieno/legalease-api/internal/models"
)

var ErrNotFound = errors.New("document not found")

// Repository is the durable store for documents and their QA history.
// Update replaces the whole record; concurrent updates are last writer wins.
type Repository interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, id string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]*models.Document, error)
	AddQA(ctx context.Context, entry *models.QAEntry) error
	// ListQA returns up to limit entries, most recent first, and the total count.
	ListQA(ctx context.Context, documentID string, limit int) ([]models.QAEntry, int, error)
	Ping(ctx context.Context) error
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

type documentRow struct {
	ID              string         `db:"id"`
	OriginalName    string         `db:"original_name"`
	Size            int64          `db:"size"`
	MimeType        string         `db:"mime_type"`
	Language        string         `db:"language"`
	StorageRef      string         `db:"storage_ref"`
	Status          string         `db:"status"`
	ProcessingSteps string         `db:"processing_steps"`
	ExtractedText   string         `db:"extracted_text"`
	ExtractedData   sql.NullString `db:"extracted_data"`
	Summary         sql.NullString `db:"summary"`
	RiskAnalysis    sql.NullString `db:"risk_analysis"`
	Error           string         `db:"error"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

const documentColumns = `id, original_name, size, mime_type, language, storage_ref, status,
	processing_steps, extracted_text, extracted_data, summary, risk_analysis, error, created_at, updated_at`

func toRow(doc *models.Document) (*documentRow, error) {
	steps, err := json.Marshal(doc.ProcessingSteps)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal processing steps: %w", err)
	}
	row := &documentRow{
		ID:              doc.ID,
		OriginalName:    doc.OriginalName,
		Size:            doc.Size,
		MimeType:        doc.MimeType,
		Language:        string(doc.Language),
		StorageRef:      doc.StorageRef,
		Status:          string(doc.Status),
		ProcessingSteps: string(steps),
		ExtractedText:   doc.ExtractedText,
		Error:           doc.Error,
		CreatedAt:       doc.CreatedAt.UTC(),
		UpdatedAt:       doc.UpdatedAt.UTC(),
	}
	if row.ExtractedData, err = nullJSON(doc.ExtractedData); err != nil {
		return nil, err
	}
	if row.Summary, err = nullJSON(doc.Summary); err != nil {
		return nil, err
	}
	if row.RiskAnalysis, err = nullJSON(doc.RiskAnalysis); err != nil {
		return nil, err
	}
	return row, nil
}

func nullJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal column: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func fromNullJSON[T any](s sql.NullString) (*T, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	var v T
	if err := json.Unmarshal([]byte(s.String), &v); err != nil {
		return nil, fmt.Errorf("failed to unmarshal column: %w", err)
	}
	return &v, nil
}

func (r *documentRow) toModel() (*models.Document, error) {
	doc := &models.Document{
		ID:            r.ID,
		OriginalName:  r.OriginalName,
		Size:          r.Size,
		MimeType:      r.MimeType,
		Language:      models.Language(r.Language),
		StorageRef:    r.StorageRef,
		Status:        models.Status(r.Status),
		ExtractedText: r.ExtractedText,
		Error:         r.Error,
		CreatedAt:     r.CreatedAt.UTC(),
		UpdatedAt:     r.UpdatedAt.UTC(),
	}
	if err := json.Unmarshal([]byte(r.ProcessingSteps), &doc.ProcessingSteps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal processing steps: %w", err)
	}

	var err error
	if doc.ExtractedData, err = fromNullJSON[models.ExtractedData](r.ExtractedData); err != nil {
		return nil, err
	}
	if doc.Summary, err = fromNullJSON[models.SummaryResult](r.Summary); err != nil {
		return nil, err
	}
	if doc.RiskAnalysis, err = fromNullJSON[models.RiskResult](r.RiskAnalysis); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *repository) Create(ctx context.Context, doc *models.Document) error {
	row, err := toRow(doc)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (:id, :original_name, :size, :mime_type, :language, :storage_ref, :status,
			:processing_steps, :extracted_text, :extracted_data, :summary, :risk_analysis, :error,
			:created_at, :updated_at)
	`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *repository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	var row documentRow

	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = ?`

	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return row.toModel()
}

func (r *repository) Update(ctx context.Context, doc *models.Document) error {
	row, err := toRow(doc)
	if err != nil {
		return err
	}

	query := `
		UPDATE documents
		SET original_name = :original_name, size = :size, mime_type = :mime_type, language = :language,
			storage_ref = :storage_ref, status = :status, processing_steps = :processing_steps,
			extracted_text = :extracted_text, extracted_data = :extracted_data, summary = :summary,
			risk_analysis = :risk_analysis, error = :error, updated_at = :updated_at
		WHERE id = :id
	`

	res, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *repository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM qa_entries WHERE document_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *repository) ListRecent(ctx context.Context, limit int) ([]*models.Document, error) {
	var rows []documentRow

	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY created_at DESC, seq DESC LIMIT ?`
	if err := r.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, err
	}

	docs := make([]*models.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

type qaRow struct {
	ID               string    `db:"id"`
	DocumentID       string    `db:"document_id"`
	Question         string    `db:"question"`
	Answer           string    `db:"answer"`
	Language         string    `db:"language"`
	Model            string    `db:"model"`
	RelevantSections bool      `db:"relevant_sections"`
	Timestamp        time.Time `db:"timestamp"`
}

func (r *repository) AddQA(ctx context.Context, entry *models.QAEntry) error {
	var exists int
	err := r.db.GetContext(ctx, &exists, `SELECT 1 FROM documents WHERE id = ?`, entry.DocumentID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	row := qaRow{
		ID:               entry.ID,
		DocumentID:       entry.DocumentID,
		Question:         entry.Question,
		Answer:           entry.Answer,
		Language:         string(entry.Language),
		Model:            entry.Model,
		RelevantSections: entry.RelevantSections,
		Timestamp:        entry.Timestamp.UTC(),
	}

	query := `
		INSERT INTO qa_entries (id, document_id, question, answer, language, model, relevant_sections, timestamp)
		VALUES (:id, :document_id, :question, :answer, :language, :model, :relevant_sections, :timestamp)
	`
	_, err = r.db.NamedExecContext(ctx, query, row)
	return err
}

func (r *repository) ListQA(ctx context.Context, documentID string, limit int) ([]models.QAEntry, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM qa_entries WHERE document_id = ?`, documentID); err != nil {
		return nil, 0, err
	}

	var rows []qaRow
	query := `
		SELECT id, document_id, question, answer, language, model, relevant_sections, timestamp
		FROM qa_entries
		WHERE document_id = ?
		ORDER BY timestamp DESC, seq DESC
		LIMIT ?
	`
	if err := r.db.SelectContext(ctx, &rows, query, documentID, limit); err != nil {
		return nil, 0, err
	}

	entries := make([]models.QAEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, models.QAEntry{
			ID:               row.ID,
			DocumentID:       row.DocumentID,
			Question:         row.Question,
			Answer:           row.Answer,
			Language:         models.Language(row.Language),
			Model:            row.Model,
			RelevantSections: row.RelevantSections,
			Timestamp:        row.Timestamp.UTC(),
		})
	}
	return entries, total, nil
}

func (r *repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
