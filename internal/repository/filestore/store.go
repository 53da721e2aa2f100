// Package filestore keeps evaluation and branch results as CSV and JSON
// files under one directory. It is the default backend when no database is
// configured, and what the recommendation stage reads its barrier input from.
package filestore

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/andresuchdata/restockplan/internal/domain"
	"github.com/andresuchdata/restockplan/internal/repository"
)

const (
	evaluationFile = "product_evaluation.csv"
	branchesDir    = "branches"
	requestsFile   = "requests.csv"
	capacityFile   = "capacity.json"
)

var evaluationHeader = []string{
	"code", "product_name", "category", "type", "closing_inventory", "total_sales",
	"dsi", "abc", "xyz", "margin", "doh",
}

var requestHeader = []string{
	"branch_group", "branch", "code", "sku", "product_name", "category", "type", "priority",
	"evaluated", "abc", "dsi", "doh", "margin", "avg_monthly_sales", "avg_monthly_cogs",
	"stock_cogs", "stock_quantity", "recommended_quantity", "box_quantity", "available_quantity",
}

// Store implements repository.Store on the local filesystem.
type Store struct {
	dir string
	mu  sync.RWMutex
}

var _ repository.Store = (*Store)(nil)

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dir, branchesDir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir is the store's root directory.
func (s *Store) Dir() string { return s.dir }

// EvaluationPath is where the evaluation table lives.
func (s *Store) EvaluationPath() string {
	return filepath.Join(s.dir, evaluationFile)
}

// GroupDir is where a group's results live.
func (s *Store) GroupDir(group string) string {
	return filepath.Join(s.dir, branchesDir, safeName(group))
}

func (s *Store) ReplaceEvaluations(ctx context.Context, runKey string, evals []domain.ProductEvaluation) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := make([][]string, 0, len(evals))
	for _, e := range evals {
		rows = append(rows, []string{
			e.Code, e.ProductName, e.Category, e.Type,
			formatFloat(e.ClosingInventory), formatFloat(e.TotalSales), formatFloat(e.DSI),
			string(e.ABC), string(e.XYZ), formatFloat(e.Margin), formatFloat(e.DOH),
		})
	}
	return writeCSV(s.EvaluationPath(), evaluationHeader, rows)
}

func (s *Store) ListEvaluations(ctx context.Context, filter domain.EvaluationFilter) ([]domain.ProductEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := readCSV(s.EvaluationPath(), evaluationHeader)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []domain.ProductEvaluation
	for i, r := range records {
		ev, err := decodeEvaluation(r)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", evaluationFile, i+2, err)
		}
		if filter.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *Store) GetEvaluation(ctx context.Context, code string) (*domain.ProductEvaluation, error) {
	evals, err := s.ListEvaluations(ctx, domain.EvaluationFilter{Codes: []string{code}})
	if err != nil {
		return nil, err
	}
	if len(evals) == 0 {
		return nil, repository.ErrNotFound
	}
	return &evals[0], nil
}

func (s *Store) SaveBranchResult(ctx context.Context, runKey string, res *domain.BranchResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := s.GroupDir(res.Group.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create group directory %s: %w", dir, err)
	}

	rows := make([][]string, 0, len(res.Lines))
	for _, l := range res.Lines {
		rows = append(rows, []string{
			l.Group, l.Branch, l.Code, l.SKU, l.ProductName, l.Category, l.Type, string(l.Priority),
			strconv.FormatBool(l.Evaluated), string(l.ABC), formatFloat(l.DSI), formatFloat(l.DOH),
			formatFloat(l.Margin), formatFloat(l.AvgMonthlySales), formatFloat(l.AvgMonthlyCogs),
			formatFloat(l.StockCogs), formatFloat(l.StockQuantity), formatFloat(l.RecommendedQuantity),
			formatFloat(l.BoxQuantity), formatFloat(l.AvailableQuantity),
		})
	}
	if err := writeCSV(filepath.Join(dir, requestsFile), requestHeader, rows); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(res.Capacity, "", "  ")
	if err != nil {
		return fmt.Errorf("encode capacity report of %s: %w", res.Group.Name, err)
	}
	return writeAtomic(filepath.Join(dir, capacityFile), func(w io.Writer) error {
		_, err := w.Write(payload)
		return err
	})
}

func (s *Store) ListCapacity(ctx context.Context) ([]domain.CapacityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(filepath.Join(s.dir, branchesDir, "*", capacityFile))
	if err != nil {
		return nil, fmt.Errorf("failed to list capacity reports: %w", err)
	}

	out := make([]domain.CapacityReport, 0, len(paths))
	for _, p := range paths {
		rep, err := readCapacity(p)
		if err != nil {
			return nil, err
		}
		out = append(out, *rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Group < out[j].Group })
	return out, nil
}

func (s *Store) GetCapacity(ctx context.Context, group string) (*domain.CapacityReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rep, err := readCapacity(filepath.Join(s.GroupDir(group), capacityFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, repository.ErrNotFound
	}
	return rep, err
}

func (s *Store) GetRequests(ctx context.Context, group string, priority domain.Priority) ([]domain.BranchRequestLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records, err := readCSV(filepath.Join(s.GroupDir(group), requestsFile), requestHeader)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var out []domain.BranchRequestLine
	for i, r := range records {
		l, err := decodeRequestLine(r)
		if err != nil {
			return nil, fmt.Errorf("%s/%s row %d: %w", group, requestsFile, i+2, err)
		}
		if priority == "" || l.Priority == priority {
			out = append(out, l)
		}
	}
	return out, nil
}

func readCapacity(path string) (*domain.CapacityReport, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rep domain.CapacityReport
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &rep, nil
}

func decodeEvaluation(r []string) (domain.ProductEvaluation, error) {
	p := floatParser{}
	ev := domain.ProductEvaluation{
		Code:             r[0],
		ProductName:      r[1],
		Category:         r[2],
		Type:             r[3],
		ClosingInventory: p.parse("closing_inventory", r[4]),
		TotalSales:       p.parse("total_sales", r[5]),
		DSI:              p.parse("dsi", r[6]),
		ABC:              domain.ABCClass(r[7]),
		XYZ:              domain.XYZClass(r[8]),
		Margin:           p.parse("margin", r[9]),
		DOH:              p.parse("doh", r[10]),
	}
	return ev, p.err
}

func decodeRequestLine(r []string) (domain.BranchRequestLine, error) {
	p := floatParser{}
	evaluated, err := strconv.ParseBool(r[8])
	if err != nil {
		return domain.BranchRequestLine{}, fmt.Errorf("evaluated: %w", err)
	}
	l := domain.BranchRequestLine{
		Group:               r[0],
		Branch:              r[1],
		Code:                r[2],
		SKU:                 r[3],
		ProductName:         r[4],
		Category:            r[5],
		Type:                r[6],
		Priority:            domain.Priority(r[7]),
		Evaluated:           evaluated,
		ABC:                 domain.ABCClass(r[9]),
		DSI:                 p.parse("dsi", r[10]),
		DOH:                 p.parse("doh", r[11]),
		Margin:              p.parse("margin", r[12]),
		AvgMonthlySales:     p.parse("avg_monthly_sales", r[13]),
		AvgMonthlyCogs:      p.parse("avg_monthly_cogs", r[14]),
		StockCogs:           p.parse("stock_cogs", r[15]),
		StockQuantity:       p.parse("stock_quantity", r[16]),
		RecommendedQuantity: p.parse("recommended_quantity", r[17]),
		BoxQuantity:         p.parse("box_quantity", r[18]),
		AvailableQuantity:   p.parse("available_quantity", r[19]),
	}
	return l, p.err
}

// floatParser keeps the first parse failure so decoders stay linear.
type floatParser struct {
	err error
}

func (p *floatParser) parse(field, s string) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return v
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if len(records) == 0 || strings.Join(records[0], ",") != strings.Join(header, ",") {
		return nil, fmt.Errorf("%s: unexpected header", path)
	}
	return records[1:], nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	return writeAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(rows); err != nil {
			return err
		}
		return cw.Error()
	})
}

// writeAtomic writes through a temp file in the same directory and renames
// it into place, so readers see either the old or the new file.
func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", path, err)
	}
	return nil
}

// safeName maps a group name to a single path segment.
func safeName(name string) string {
	name = strings.TrimSpace(name)
	repl := strings.NewReplacer("/", "_", "\\", "_", "..", "_", " ", "_")
	if name = repl.Replace(name); name == "" {
		return "_"
	}
	return name
}
