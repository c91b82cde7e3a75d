package link

import "strings"

// UnknownFile marks a heuristic symbol whose defining file could not be
// resolved. Such a symbol matches a truth symbol of the same name in any file.
const UnknownFile = "unknown"

// Symbol is a named definition in a file.
type Symbol struct {
	File string `json:"file"`
	Name string `json:"name"`
}

// Relation is a file link attributed to one referenced symbol.
type Relation struct {
	Link   Link   `json:"link"`
	Symbol string `json:"symbol"`
}

// String renders the relation as "src -> dst (symbol)".
func (r Relation) String() string {
	return r.Link.String() + " (" + r.Symbol + ")"
}

// NormalizeSymbolName reduces an indexer symbol such as
// "rust-analyzer cargo demo 0.1.0 b/Config#" to its bare name "Config".
// Names without a '/' descriptor are returned unchanged.
func NormalizeSymbolName(name string) string {
	i := strings.LastIndexByte(name, '/')
	if i < 0 {
		return name
	}
	n := name[i+1:]
	n = strings.ReplaceAll(n, "().", "")
	n = strings.ReplaceAll(n, "()", "")
	n = strings.ReplaceAll(n, "#", "")
	return strings.Trim(n, ".")
}

// SymbolComparison is symbol-level agreement between truth and heuristic.
type SymbolComparison struct {
	TruthSymbols       int     `json:"truth_symbols"`
	HeuristicSymbols   int     `json:"heuristic_symbols"`
	SymbolHits         int     `json:"symbol_hits"`
	SymbolRecall       float64 `json:"symbol_recall"`
	TruthRelations     int     `json:"truth_relations"`
	HeuristicRelations int     `json:"heuristic_relations"`
	RelationHits       int     `json:"relation_hits"`
	RelationRecall     float64 `json:"relation_recall"`
}

// CompareSymbols measures symbol recall and symbol-level relation recall.
//
// Truth symbol names are normalized and keyed by file. A heuristic symbol
// hits when its (file, name) key is among them; one in UnknownFile hits when
// any truth symbol carries its name. Relations compare as
// (src, dst, normalized symbol) on both sides. Counts are over distinct keys.
func CompareSymbols(truthSyms, heurSyms []Symbol, truthRels, heurRels []Relation) SymbolComparison {
	type symKey struct{ file, name string }

	truth := make(map[symKey]struct{}, len(truthSyms))
	truthNames := make(map[string]struct{}, len(truthSyms))
	for _, s := range truthSyms {
		name := NormalizeSymbolName(s.Name)
		truth[symKey{s.File, name}] = struct{}{}
		truthNames[name] = struct{}{}
	}

	heur := make(map[symKey]struct{}, len(heurSyms))
	for _, s := range heurSyms {
		heur[symKey{s.File, s.Name}] = struct{}{}
	}

	c := SymbolComparison{
		TruthSymbols:     len(truth),
		HeuristicSymbols: len(heur),
	}
	for k := range heur {
		if k.file == UnknownFile {
			if _, ok := truthNames[k.name]; ok {
				c.SymbolHits++
			}
			continue
		}
		if _, ok := truth[k]; ok {
			c.SymbolHits++
		}
	}

	truthRel := normalizeRelations(truthRels)
	heurRel := normalizeRelations(heurRels)
	c.TruthRelations = len(truthRel)
	c.HeuristicRelations = len(heurRel)
	for r := range heurRel {
		if _, ok := truthRel[r]; ok {
			c.RelationHits++
		}
	}

	c.SymbolRecall = ratio(c.SymbolHits, c.TruthSymbols)
	c.RelationRecall = ratio(c.RelationHits, c.TruthRelations)
	return c
}

func normalizeRelations(rels []Relation) map[Relation]struct{} {
	out := make(map[Relation]struct{}, len(rels))
	for _, r := range rels {
		r.Symbol = NormalizeSymbolName(r.Symbol)
		out[r] = struct{}{}
	}
	return out
}

// CompareDataset runs the file-level and symbol-level comparisons.
func CompareDataset(ds *Dataset) Comparison {
	c := Compare(ds.Truth, ds.Heuristic)
	c.Symbols = CompareSymbols(ds.TruthSymbols, ds.HeuristicSymbols, ds.TruthRelations, ds.HeuristicRelations)
	return c
}
