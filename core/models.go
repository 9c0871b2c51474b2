package core

import (
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored records.
// IDs are assigned by the store and are never 0 once persisted.
type ID uint64

// Checksum returns the hex encoded BLAKE2b-256 digest of raw file content.
// Used to detect repeated uploads of the same file.
func Checksum(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Format identifies the source container of an uploaded document.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatPDF      Format = "pdf"
	FormatDOCX     Format = "docx"
	FormatHTML     Format = "html"
)

// DocumentStatus tracks embedding progress for a document.
// It is the only document field that changes after creation.
type DocumentStatus string

const (
	// StatusPending means sections were stored but no embedding has completed.
	StatusPending DocumentStatus = "pending"
	// StatusEmbedded means every non-blank section has a vector.
	StatusEmbedded DocumentStatus = "embedded"
	// StatusPartial means at least one embedding batch failed permanently.
	StatusPartial DocumentStatus = "partial"
)

// Document is an uploaded standard, research paper or incident report.
type Document struct {
	Id           ID             `json:"id"`
	Filename     string         `json:"filename"`
	Format       Format         `json:"format"`
	Size         int64          `json:"size"`
	Checksum     string         `json:"checksum"`
	Text         string         `json:"text"`
	Status       DocumentStatus `json:"status"`
	SectionCount int            `json:"section_count"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Section is a contiguous span of a document's text used as a retrieval unit.
type Section struct {
	Id         ID        `json:"id"`
	DocumentId ID        `json:"document_id"`
	Ordinal    int       `json:"ordinal"`
	Label      string    `json:"label,omitempty"`
	Start      int       `json:"start"` // byte offset into Document.Text
	End        int       `json:"end"`
	Text       string    `json:"text"`
	WordCount  int       `json:"word_count"`
	Vector     []float32 `json:"vector,omitempty"`
}

// Embedded reports whether the section has a vector.
func (s *Section) Embedded() bool {
	return len(s.Vector) > 0
}

// Blank reports whether the section holds only whitespace.
// Blank sections are never sent for embedding.
func (s *Section) Blank() bool {
	return strings.TrimSpace(s.Text) == ""
}

// DisplayLabel returns the heading, or a positional label for unlabelled sections.
func (s *Section) DisplayLabel() string {
	if s.Label != "" {
		return s.Label
	}
	return "Section " + strconv.Itoa(s.Ordinal+1)
}

// RiskLevel classifies how severe a gap is.
type RiskLevel string

const (
	RiskHigh   RiskLevel = "High"
	RiskMedium RiskLevel = "Medium"
	RiskLow    RiskLevel = "Low"
)

// RiskLevels lists the valid risk levels from most to least severe.
var RiskLevels = []RiskLevel{RiskHigh, RiskMedium, RiskLow}

// ParseRiskLevel matches s case-insensitively against the known risk levels.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	s = strings.TrimSpace(s)
	for _, level := range RiskLevels {
		if strings.EqualFold(s, string(level)) {
			return level, true
		}
	}
	return "", false
}

// Difficulty rates how hard a recommendation is to implement.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "Easy"
	DifficultyModerate  Difficulty = "Moderate"
	DifficultyDifficult Difficulty = "Difficult"
)

// Difficulties lists the valid implementation difficulties.
var Difficulties = []Difficulty{DifficultyEasy, DifficultyModerate, DifficultyDifficult}

// ParseDifficulty matches s case-insensitively against the known difficulties.
func ParseDifficulty(s string) (Difficulty, bool) {
	s = strings.TrimSpace(s)
	for _, d := range Difficulties {
		if strings.EqualFold(s, string(d)) {
			return d, true
		}
	}
	return "", false
}

// Gap is a shortfall in standards coverage identified from research text.
// Gaps are always produced by an analysis call, never entered by users.
type Gap struct {
	Id               ID        `json:"id"`
	AnalysisId       string    `json:"analysis_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	RiskLevel        RiskLevel `json:"risk_level"`
	Domain           string    `json:"domain"`
	RelatedStandards []string  `json:"related_standards,omitempty"`
	Evidence         string    `json:"evidence,omitempty"`
	SectionIds       []ID      `json:"section_ids,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Recommendation proposes standard text that addresses a single Gap.
type Recommendation struct {
	Id           ID         `json:"id"`
	GapId        ID         `json:"gap_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	ProposedText string     `json:"proposed_text"`
	Rationale    string     `json:"rationale"`
	References   []string   `json:"references,omitempty"`
	Difficulty   Difficulty `json:"implementation_difficulty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// SearchResult is a section match with its similarity score.
type SearchResult struct {
	Section  *Section `json:"section"`
	Filename string   `json:"filename"`
	Score    float64  `json:"score"`
	Snippet  string   `json:"snippet"`
}

// NetworkNode is a document in the standards network.
type NetworkNode struct {
	DocumentId ID     `json:"document_id"`
	Filename   string `json:"filename"`
	Sections   int    `json:"sections"`
}

// NetworkEdge links two documents whose mean embeddings are similar.
type NetworkEdge struct {
	Source     ID      `json:"source"`
	Target     ID      `json:"target"`
	Similarity float64 `json:"similarity"`
}

// Network is the document similarity graph shown on the dashboard.
type Network struct {
	Nodes     []NetworkNode `json:"nodes"`
	Edges     []NetworkEdge `json:"edges"`
	Threshold float64       `json:"threshold"`
}

// WordCount counts whitespace separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Now returns the current UTC time at microsecond precision,
// the resolution timestamps are persisted with.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
