package models

import (
	"time"
)

type Language string

const (
	LanguageEnglish Language = "en"
	LanguageHindi   Language = "hi"
)

var SupportedLanguages = []Language{LanguageEnglish, LanguageHindi}

func (l Language) Valid() bool {
	for _, supported := range SupportedLanguages {
		if l == supported {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusPartial    Status = "partial"
	StatusError      Status = "error"
)

// ProcessingSteps flags only ever move from false to true.
type ProcessingSteps struct {
	Uploaded      bool `json:"uploaded" firestore:"uploaded"`
	TextExtracted bool `json:"textExtracted" firestore:"textExtracted"`
	Summarized    bool `json:"summarized" firestore:"summarized"`
	RiskAnalyzed  bool `json:"riskAnalyzed" firestore:"riskAnalyzed"`
}

func (p ProcessingSteps) Complete() bool {
	return p.Uploaded && p.TextExtracted && p.Summarized && p.RiskAnalyzed
}

type Entity struct {
	Type       string  `json:"type" firestore:"type"`
	Text       string  `json:"text" firestore:"text"`
	Confidence float64 `json:"confidence" firestore:"confidence"`
}

type TableRow struct {
	Cells []string `json:"cells" firestore:"cells"`
}

type Table struct {
	PageNumber int        `json:"pageNumber" firestore:"pageNumber"`
	TableIndex int        `json:"tableIndex" firestore:"tableIndex"`
	Rows       int        `json:"rows" firestore:"rows"`
	Columns    int        `json:"columns" firestore:"columns"`
	Content    []TableRow `json:"content" firestore:"content"`
}

type KeyValuePair struct {
	Key        string  `json:"key" firestore:"key"`
	Value      string  `json:"value" firestore:"value"`
	Confidence float64 `json:"confidence" firestore:"confidence"`
}

// ExtractedData is the structured part of an extraction, stored next to the text.
type ExtractedData struct {
	Pages         int            `json:"pages" firestore:"pages"`
	Entities      []Entity       `json:"entities" firestore:"entities"`
	Tables        []Table        `json:"tables,omitempty" firestore:"tables"`
	KeyValuePairs []KeyValuePair `json:"keyValuePairs,omitempty" firestore:"keyValuePairs"`
	Confidence    float64        `json:"confidence" firestore:"confidence"`
}

type SummaryResult struct {
	Summary     string    `json:"summary" firestore:"summary"`
	Language    Language  `json:"language" firestore:"language"`
	GeneratedAt time.Time `json:"generatedAt" firestore:"generatedAt"`
	Model       string    `json:"model" firestore:"model"`
}

type RiskResult struct {
	Risks       string    `json:"risks" firestore:"risks"`
	Language    Language  `json:"language" firestore:"language"`
	GeneratedAt time.Time `json:"generatedAt" firestore:"generatedAt"`
	Model       string    `json:"model" firestore:"model"`
}

type AnswerResult struct {
	Question         string    `json:"question"`
	Answer           string    `json:"answer"`
	RelevantSections bool      `json:"relevantSections"`
	Language         Language  `json:"language"`
	GeneratedAt      time.Time `json:"generatedAt"`
	Model            string    `json:"model"`
}

type ExplanationResult struct {
	OriginalClause string    `json:"originalClause"`
	Explanation    string    `json:"explanation"`
	Language       Language  `json:"language"`
	GeneratedAt    time.Time `json:"generatedAt"`
	Model          string    `json:"model"`
}

type Document struct {
	ID           string   `json:"id" firestore:"-"`
	OriginalName string   `json:"originalName" firestore:"originalName"`
	Size         int64    `json:"size" firestore:"size"`
	MimeType     string   `json:"mimeType" firestore:"mimeType"`
	Language     Language `json:"language" firestore:"language"`
	StorageRef   string   `json:"-" firestore:"storageRef"`

	Status          Status          `json:"status" firestore:"status"`
	ProcessingSteps ProcessingSteps `json:"processingSteps" firestore:"processingSteps"`

	ExtractedText string         `json:"extractedText,omitempty" firestore:"extractedText"`
	ExtractedData *ExtractedData `json:"extractedData,omitempty" firestore:"extractedData"`
	Summary       *SummaryResult `json:"summary,omitempty" firestore:"summary"`
	RiskAnalysis  *RiskResult    `json:"riskAnalysis,omitempty" firestore:"riskAnalysis"`
	Error         string         `json:"error,omitempty" firestore:"error"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Clone returns a deep copy so callers never share nested pointers with a store.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.ExtractedData != nil {
		data := *d.ExtractedData
		data.Entities = append([]Entity(nil), d.ExtractedData.Entities...)
		data.KeyValuePairs = append([]KeyValuePair(nil), d.ExtractedData.KeyValuePairs...)
		data.Tables = make([]Table, len(d.ExtractedData.Tables))
		for i, t := range d.ExtractedData.Tables {
			t.Content = make([]TableRow, len(d.ExtractedData.Tables[i].Content))
			for j, row := range d.ExtractedData.Tables[i].Content {
				t.Content[j] = TableRow{Cells: append([]string(nil), row.Cells...)}
			}
			data.Tables[i] = t
		}
		if d.ExtractedData.Tables == nil {
			data.Tables = nil
		}
		out.ExtractedData = &data
	}
	if d.Summary != nil {
		s := *d.Summary
		out.Summary = &s
	}
	if d.RiskAnalysis != nil {
		r := *d.RiskAnalysis
		out.RiskAnalysis = &r
	}
	return &out
}

// DocumentSummary is the sanitized shape returned by the recent-documents listing.
type DocumentSummary struct {
	ID              string          `json:"id"`
	OriginalName    string          `json:"originalName"`
	Size            int64           `json:"size"`
	MimeType        string          `json:"mimeType"`
	Language        Language        `json:"language"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	ProcessingSteps ProcessingSteps `json:"processingSteps"`
}

func (d *Document) Sanitize() DocumentSummary {
	return DocumentSummary{
		ID:              d.ID,
		OriginalName:    d.OriginalName,
		Size:            d.Size,
		MimeType:        d.MimeType,
		Language:        d.Language,
		Status:          d.Status,
		CreatedAt:       d.CreatedAt,
		ProcessingSteps: d.ProcessingSteps,
	}
}

// QAEntry is append-only and belongs to exactly one document.
type QAEntry struct {
	ID               string    `json:"id" firestore:"-"`
	DocumentID       string    `json:"documentId" firestore:"documentId"`
	Question         string    `json:"question" firestore:"question"`
	Answer           string    `json:"answer" firestore:"answer"`
	Language         Language  `json:"language" firestore:"language"`
	Model            string    `json:"model" firestore:"model"`
	RelevantSections bool      `json:"relevantSections" firestore:"relevantSections"`
	Timestamp        time.Time `json:"timestamp" firestore:"timestamp"`
}

type UploadRequest struct {
	File        []byte
	Filename    string
	ContentType string
	Language    Language
}

type FileInfo struct {
	OriginalName string    `json:"originalName"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mimeType"`
	UploadedAt   time.Time `json:"uploadedAt"`
}

type ExtractedSummary struct {
	Pages      int     `json:"pages"`
	Entities   int     `json:"entities"`
	Confidence float64 `json:"confidence"`
}

type UploadResponse struct {
	DocumentID       string            `json:"documentId"`
	Status           Status            `json:"status"`
	Message          string            `json:"message"`
	FileInfo         FileInfo          `json:"fileInfo"`
	ExtractedSummary *ExtractedSummary `json:"extractedSummary,omitempty"`
	Summary          *SummaryResult    `json:"summary,omitempty"`
	RiskAnalysis     *RiskResult       `json:"riskAnalysis,omitempty"`
	Warning          string            `json:"warning,omitempty"`
	Error            string            `json:"error,omitempty"`
}

type AnalysisResponse struct {
	DocumentID   string         `json:"documentId"`
	Status       Status         `json:"status"`
	Summary      *SummaryResult `json:"summary,omitempty"`
	RiskAnalysis *RiskResult    `json:"riskAnalysis,omitempty"`
	Warning      string         `json:"warning,omitempty"`
}

type HistoryResponse struct {
	Entries []QAEntry `json:"entries"`
	Total   int       `json:"total"`
}

// BatchAnswer is one per-question outcome; failures are reported here rather
// than failing the whole batch.
type BatchAnswer struct {
	Index    int      `json:"index"`
	Question string   `json:"question"`
	Result   *QAEntry `json:"result,omitempty"`
	Error    bool     `json:"error"`
	Message  string   `json:"message,omitempty"`
}

type BatchResponse struct {
	Results   []BatchAnswer `json:"results"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
}

type QuestionRequest struct {
	Question string   `json:"question" validate:"required,min=3,max=500"`
	Language Language `json:"language" validate:"omitempty,oneof=en hi"`
}

type BatchQuestionRequest struct {
	Questions []string `json:"questions" validate:"required,min=1,max=5,dive,required,min=3,max=500"`
	Language  Language `json:"language" validate:"omitempty,oneof=en hi"`
}

type ClauseRequest struct {
	Clause   string   `json:"clause" validate:"required,min=10,max=2000"`
	Language Language `json:"language" validate:"omitempty,oneof=en hi"`
}

type LanguageRequest struct {
	Language Language `json:"language" validate:"omitempty,oneof=en hi"`
}

type ProviderStatus struct {
	Name   string `json:"name"`
	Model  string `json:"model,omitempty"`
	Status string `json:"status"`
}

type AIStatus struct {
	Generation         ProviderStatus  `json:"generation"`
	Extraction         ProviderStatus  `json:"extraction"`
	Features           map[string]bool `json:"features"`
	SupportedLanguages []Language      `json:"supportedLanguages"`
	SupportedFormats   []string        `json:"supportedFormats"`
}
