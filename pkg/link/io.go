package link

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Default section names of an aligned data file.
const (
	DefaultTruthSection     = "scip"
	DefaultHeuristicSection = "gossiphs"
)

// ErrNoSection is returned when a required top-level section is missing.
var ErrNoSection = errors.New("section not found")

// LoadOptions controls how an aligned data file is turned into a Dataset.
type LoadOptions struct {
	TruthSection     string
	HeuristicSection string
	Filter           *Filter // nil keeps every link
}

// rawSection mirrors one top-level section of the aligned JSON.
type rawSection struct {
	Symbols   []rawSymbol   `json:"symbols"`
	Relations []rawRelation `json:"relations"`
	FileLinks []rawRelation `json:"file_links"`
}

type rawSymbol struct {
	File string `json:"file"`
	Name string `json:"name"`
}

type rawRelation struct {
	SrcFile    string   `json:"src_file"`
	DstFile    string   `json:"dst_file"`
	SymbolName string   `json:"symbol_name,omitempty"`
	Score      *float64 `json:"score,omitempty"`
}

// links prefers file_links and falls back to symbol-level relations.
func (s *rawSection) links() []rawRelation {
	if len(s.FileLinks) > 0 {
		return s.FileLinks
	}
	return s.Relations
}

// LoadDataset reads an aligned data file from disk.
func LoadDataset(path string, opts LoadOptions) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	ds, err := ParseDataset(data, opts)
	if err != nil {
		return nil, err
	}
	ds.Source = path
	return ds, nil
}

// ParseDataset decodes aligned JSON. Truth-side scores are ignored; a missing
// heuristic score counts as 0. Duplicate heuristic links keep their maximum score.
func ParseDataset(data []byte, opts LoadOptions) (*Dataset, error) {
	truthName := opts.TruthSection
	if truthName == "" {
		truthName = DefaultTruthSection
	}
	heurName := opts.HeuristicSection
	if heurName == "" {
		heurName = DefaultHeuristicSection
	}

	var sections map[string]*rawSection
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("unmarshaling dataset: %w", err)
	}

	truthSec, ok := sections[truthName]
	if !ok || truthSec == nil {
		return nil, fmt.Errorf("truth %q: %w", truthName, ErrNoSection)
	}
	heurSec, ok := sections[heurName]
	if !ok || heurSec == nil {
		return nil, fmt.Errorf("heuristic %q: %w", heurName, ErrNoSection)
	}

	ds := &Dataset{
		Truth:     make(TruthSet),
		Heuristic: make(ScoredSet),
	}

	for _, r := range truthSec.links() {
		l := Link{Src: r.SrcFile, Dst: r.DstFile}
		if !opts.Filter.Keep(l) {
			ds.Stats.Dropped++
			continue
		}
		ds.Truth.Add(l)
	}

	for _, r := range heurSec.links() {
		l := Link{Src: r.SrcFile, Dst: r.DstFile}
		if !opts.Filter.Keep(l) {
			ds.Stats.Dropped++
			continue
		}
		var score float64
		if r.Score != nil {
			score = *r.Score
		}
		ds.Heuristic.Add(l, score)
		ds.Stats.HeuristicRecords++
	}

	ds.TruthSymbols = symbols(truthSec.Symbols)
	ds.HeuristicSymbols = symbols(heurSec.Symbols)
	ds.TruthRelations = relations(truthSec.Relations, opts.Filter)
	ds.HeuristicRelations = relations(heurSec.Relations, opts.Filter)

	ds.Stats.TruthLinks = len(ds.Truth)
	ds.Stats.HeuristicLinks = len(ds.Heuristic)
	ds.Stats.SourceFiles = len(ds.Heuristic.Sources())
	ds.Stats.TruthSymbols = len(truthSec.Symbols)
	ds.Stats.HeuristicSymbols = len(heurSec.Symbols)

	return ds, nil
}

func symbols(raw []rawSymbol) []Symbol {
	out := make([]Symbol, 0, len(raw))
	for _, s := range raw {
		out = append(out, Symbol{File: s.File, Name: s.Name})
	}
	return out
}

// relations keeps symbol-level relations surviving the filter. They are not
// counted in Stats.Dropped, which tallies file links.
func relations(raw []rawRelation, f *Filter) []Relation {
	out := make([]Relation, 0, len(raw))
	for _, r := range raw {
		l := Link{Src: r.SrcFile, Dst: r.DstFile}
		if !f.Keep(l) {
			continue
		}
		out = append(out, Relation{Link: l, Symbol: r.SymbolName})
	}
	return out
}
