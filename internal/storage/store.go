package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/san-kum/bmcsim/internal/bloch"
	"github.com/san-kum/bmcsim/internal/sim"
)

const (
	metadataFile = "metadata.json"
	readoutsFile = "readouts.csv"
)

var ErrRunNotFound = errors.New("storage: run not found")

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

func (s *Store) Dir() string { return s.baseDir }

type RunMetadata struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Solver    string    `json:"solver"`
	Layout    string    `json:"layout"`
	CEST      int       `json:"cest_pools"`
	MT        bool      `json:"mt_pool"`
	B0        float64   `json:"b0"`
	Blocks    int       `json:"blocks"`
	Readouts  int       `json:"readouts"`
	Steps     int       `json:"steps"`
	Rebuilds  int       `json:"rebuilds"`
	// Elapsed is the wall time of the simulation in seconds.
	Elapsed float64            `json:"elapsed"`
	Offsets []float64          `json:"offsets_ppm,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
}

// Readouts is the per readout state as stored on disk.
type Readouts struct {
	Columns []string
	Times   []float64
	Labels  []string
	States  [][]float64
}

// Column returns the values of the named state column.
func (r *Readouts) Column(name string) ([]float64, error) {
	j := slices.Index(r.Columns, name)
	if j < 0 {
		return nil, fmt.Errorf("storage: no column %q", name)
	}
	out := make([]float64, len(r.States))
	for i, st := range r.States {
		out[i] = st[j]
	}
	return out, nil
}

// WaterMz is the "mz_w" column.
func (r *Readouts) WaterMz() ([]float64, error) { return r.Column("mz_w") }

// ColumnNames names the components of a state vector of layout l.
func ColumnNames(l bloch.Layout) []string {
	names := make([]string, l.Dim())
	for p := 0; p < l.Pools(); p++ {
		suffix := "w"
		if p > 0 {
			suffix = strconv.Itoa(p)
		}
		names[l.X(p)] = "mx_" + suffix
		names[l.Y(p)] = "my_" + suffix
		names[l.Z(p)] = "mz_" + suffix
	}
	if l.MT {
		names[l.MTZ()] = "mz_mt"
	}
	return names
}

// NewMetadata fills the run summary fields from res. ID and Timestamp are
// set by Save.
func NewMetadata(name string, res *sim.Result, b0 float64, offsets []float64) RunMetadata {
	meta := RunMetadata{
		Name:     name,
		Solver:   res.Solver.String(),
		Layout:   res.Final.Layout.String(),
		CEST:     res.Final.Layout.CEST,
		MT:       res.Final.Layout.MT,
		B0:       b0,
		Blocks:   res.Blocks,
		Readouts: res.Len(),
		Steps:    res.Steps,
		Rebuilds: res.Rebuilds,
		Offsets:  offsets,
		Metrics:  map[string]float64{},
	}
	return meta
}

func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	meta.Timestamp = time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Name, meta.Timestamp.UnixNano())
	runDir := filepath.Join(s.baseDir, meta.ID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, readoutsFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	if err := WriteCSV(csvFile, result); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// WriteCSV writes one row per readout: time, label and the state columns.
func WriteCSV(w io.Writer, result *sim.Result) error {
	cw := csv.NewWriter(w)
	header := append([]string{"time", "label"}, ColumnNames(result.Final.Layout)...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, m := range result.Trajectory {
		row := []string{strconv.FormatFloat(result.Times[i], 'g', -1, 64), result.Labels[i]}
		for _, val := range m.M {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	slices.SortFunc(runs, func(a, b RunMetadata) int { return a.Timestamp.Compare(b.Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *Store) LoadReadouts(runID string) (*Readouts, error) {
	file, err := s.open(runID, readoutsFile)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: %s has no header", readoutsFile)
	}

	out := &Readouts{Columns: records[0][2:]}
	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: row %d: %w", i+1, err)
		}
		state := make([]float64, len(record)-2)
		for j, field := range record[2:] {
			if state[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("storage: row %d column %s: %w", i+1, out.Columns[j], err)
			}
		}
		out.Times = append(out.Times, t)
		out.Labels = append(out.Labels, record[1])
		out.States = append(out.States, state)
	}
	return out, nil
}

func (s *Store) open(runID, name string) (*os.File, error) {
	f, err := os.Open(filepath.Join(s.baseDir, runID, name))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return f, err
}
