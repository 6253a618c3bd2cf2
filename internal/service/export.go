package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sungho-yun/gapsim/internal/domain"
	"github.com/sungho-yun/gapsim/internal/store"
)

var (
	ErrExportNotReady    = errors.New("run is not done yet")
	ErrIncompleteRecords = errors.New("run has incomplete interaction records")
)

// AnalyzedRecord is an interaction record with its derived measures. Gap and
// classification exist only where the cell actually self-scored; match type
// exists only where both context-present cells of the tick classified.
type AnalyzedRecord struct {
	domain.InteractionRecord
	Gap            *int             `json:"gap,omitempty"`
	Classification domain.GapClass  `json:"classification,omitempty"`
	MatchType      domain.MatchType `json:"match_type,omitempty"`
}

// TickMatch is the four-way typing of one (person, tick): the gap
// classifications of its two context-present cells, generative then rule.
type TickMatch struct {
	PersonID   uuid.UUID        `json:"person_id"`
	Tick       int              `json:"tick"`
	Generative domain.GapClass  `json:"generative"`
	Rule       domain.GapClass  `json:"rule"`
	Type       domain.MatchType `json:"type"`
}

type ExportSummary struct {
	Records         int                      `json:"records"`
	Failed          int                      `json:"failed"`
	Classifications map[domain.GapClass]int  `json:"classifications"`
	Types           map[domain.MatchType]int `json:"types"`
}

// Export is the full result set of a finished run.
type Export struct {
	Run      *domain.Run           `json:"run"`
	Persons  []domain.Person       `json:"persons"`
	Records  []AnalyzedRecord      `json:"records"`
	Matches  []TickMatch           `json:"matches"`
	Memories []domain.MemoryRecord `json:"memories"`
	Summary  ExportSummary         `json:"summary"`
}

// ExportService assembles the export payload for finished runs. All derived
// measures (gap, classification, match type) are computed here at export
// time; nothing below ever persists them.
type ExportService struct {
	runStore         domain.RunStore
	personStore      domain.PersonStore
	memoryStore      domain.MemoryStore
	interactionStore domain.InteractionStore
	logger           *zap.Logger
}

func NewExportService(rs domain.RunStore, ps domain.PersonStore, ms domain.MemoryStore, is domain.InteractionStore, logger *zap.Logger) *ExportService {
	return &ExportService{
		runStore:         rs,
		personStore:      ps,
		memoryStore:      ms,
		interactionStore: is,
		logger:           logger,
	}
}

// Build gates on completeness and assembles the payload. A run exports only
// after the observer pass finished and every record reached a terminal state
// with all required fields present.
func (s *ExportService) Build(ctx context.Context, runID uuid.UUID) (*Export, error) {
	run, err := s.runStore.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	if run.Status != domain.RunStatusDone {
		return nil, fmt.Errorf("%w: status is %s", ErrExportNotReady, run.Status)
	}

	persons, err := s.personStore.ListByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	records, err := s.interactionStore.ListByRun(ctx, runID, domain.RecordFilter{})
	if err != nil {
		return nil, err
	}
	for i := range records {
		if !records[i].Complete() {
			return nil, fmt.Errorf("%w: record %s (tick %d, %s) is %s",
				ErrIncompleteRecords, records[i].ID, records[i].Tick, records[i].Cell, records[i].State)
		}
	}

	analyzed, matches := analyzeRecords(records, run.Params.GapThreshold)

	var memories []domain.MemoryRecord
	for i := range persons {
		ms, err := s.memoryStore.ListByPerson(ctx, persons[i].ID, personEndTick(run, &persons[i]))
		if err != nil {
			return nil, err
		}
		memories = append(memories, ms...)
	}

	ex := &Export{
		Run:      run,
		Persons:  persons,
		Records:  analyzed,
		Matches:  matches,
		Memories: memories,
		Summary:  summarize(analyzed, matches),
	}

	s.logger.Info("export built",
		zap.String("run_id", runID.String()),
		zap.Int("records", len(analyzed)),
		zap.Int("matches", len(matches)),
		zap.Int("memories", len(memories)))

	return ex, nil
}

func analyzeRecords(records []domain.InteractionRecord, threshold int) ([]AnalyzedRecord, []TickMatch) {
	type key struct {
		person uuid.UUID
		tick   int
	}

	analyzed := make([]AnalyzedRecord, len(records))
	classes := make(map[key]map[domain.PolicyKind]domain.GapClass)
	for i, rec := range records {
		ar := AnalyzedRecord{InteractionRecord: rec}
		if gap, ok := rec.Gap(); ok {
			g := gap
			ar.Gap = &g
			ar.Classification = domain.ClassifyGap(gap, threshold)
			if rec.Cell.ContextPresent() {
				k := key{rec.PersonID, rec.Tick}
				if classes[k] == nil {
					classes[k] = make(map[domain.PolicyKind]domain.GapClass, 2)
				}
				classes[k][rec.Cell.Policy()] = ar.Classification
			}
		}
		analyzed[i] = ar
	}

	// Records arrive ordered by person, tick, cell, so emitting the match on
	// the first context-present record of each tick keeps the list stable.
	var matches []TickMatch
	typed := make(map[key]domain.MatchType)
	for i := range analyzed {
		rec := &analyzed[i]
		if !rec.Cell.ContextPresent() {
			continue
		}
		k := key{rec.PersonID, rec.Tick}
		gen, okGen := classes[k][domain.PolicyGenerative]
		rule, okRule := classes[k][domain.PolicyRule]
		if !okGen || !okRule {
			continue
		}
		mt, seen := typed[k]
		if !seen {
			mt = domain.MatchFromClasses(gen, rule)
			typed[k] = mt
			matches = append(matches, TickMatch{
				PersonID:   rec.PersonID,
				Tick:       rec.Tick,
				Generative: gen,
				Rule:       rule,
				Type:       mt,
			})
		}
		rec.MatchType = mt
	}
	return analyzed, matches
}

func summarize(records []AnalyzedRecord, matches []TickMatch) ExportSummary {
	sum := ExportSummary{
		Records:         len(records),
		Classifications: make(map[domain.GapClass]int),
		Types:           make(map[domain.MatchType]int),
	}
	for _, rec := range records {
		if rec.State == domain.CellStateFailed {
			sum.Failed++
		}
		if rec.Classification != "" {
			sum.Classifications[rec.Classification]++
		}
	}
	for _, m := range matches {
		sum.Types[m.Type]++
	}
	return sum
}

// WriteJSON renders the whole payload as one indented JSON document.
func (s *ExportService) WriteJSON(ex *Export, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ex)
}

// WriteJSONL renders one analyzed record per line.
func (s *ExportService) WriteJSONL(ex *Export, w io.Writer) error {
	enc := json.NewEncoder(w)
	for i := range ex.Records {
		if err := enc.Encode(&ex.Records[i]); err != nil {
			return err
		}
	}
	return nil
}

// WriteJSONLFile writes the JSONL rendering to path, truncating any existing
// file.
func (s *ExportService) WriteJSONLFile(ex *Export, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.WriteJSONL(ex, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteCSV renders the flat per-record table. Undefined measures render as
// NA so the sentinel survives into spreadsheet-side analysis unambiguously.
func (s *ExportService) WriteCSV(ex *Export, w io.Writer) error {
	names := make(map[uuid.UUID]string, len(ex.Persons))
	for _, p := range ex.Persons {
		names[p.ID] = p.Name
	}

	cw := csv.NewWriter(w)
	header := []string{
		"record_id", "person", "tick", "timestamp", "cell", "state",
		"hour_activity", "quarter_activity", "concrete_action", "location",
		"command", "reply", "state_change_desc",
		"self_status", "self_score", "self_reason",
		"observer_score", "observer_reason",
		"gap", "classification", "match_type", "error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range ex.Records {
		rec := &ex.Records[i]
		row := []string{
			rec.ID.String(),
			names[rec.PersonID],
			strconv.Itoa(rec.Tick),
			rec.Timestamp.Format(time.RFC3339),
			string(rec.Cell),
			string(rec.State),
			rec.HourActivity,
			rec.QuarterActivity,
			rec.ConcreteAction,
			rec.Location,
			rec.Command,
			rec.Reply,
			rec.StateChangeDesc,
			string(rec.SelfStatus),
			orNA(rec.SelfScore),
			rec.SelfReason,
			orNA(rec.ObserverScore),
			rec.ObserverReason,
			orNA(rec.Gap),
			stringOrNA(string(rec.Classification)),
			stringOrNA(string(rec.MatchType)),
			rec.Error,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func orNA(n *int) string {
	if n == nil {
		return "NA"
	}
	return strconv.Itoa(*n)
}

func stringOrNA(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}
