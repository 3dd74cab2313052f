package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/bmcsim/internal/analysis"
)

type ExportData struct {
	Metadata RunMetadata `json:"metadata"`
	Columns  []string    `json:"columns"`
	Times    []float64   `json:"times"`
	Labels   []string    `json:"labels"`
	States   [][]float64 `json:"states"`
	// ZSpectrum is set when the run recorded one readout per offset.
	ZSpectrum *ZSpectrumData `json:"z_spectrum,omitempty"`
}

type ZSpectrumData struct {
	Offsets []float64 `json:"offsets_ppm"`
	Z       []float64 `json:"z"`
	M0      float64   `json:"m0"`
}

// ExportJSON writes a stored run as one indented JSON document.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	ro, err := s.LoadReadouts(runID)
	if err != nil {
		return err
	}
	data := ExportData{
		Metadata:  *meta,
		Columns:   ro.Columns,
		Times:     ro.Times,
		Labels:    ro.Labels,
		States:    ro.States,
		ZSpectrum: zspectrum(meta, ro),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// ExportCSV copies the readout table of a stored run.
func (s *Store) ExportCSV(w io.Writer, runID string) error {
	f, err := s.open(runID, readoutsFile)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}

// ZSpectrum rebuilds the normalized spectrum of a stored run.
func (s *Store) ZSpectrum(runID string) (*analysis.ZSpectrum, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	ro, err := s.LoadReadouts(runID)
	if err != nil {
		return nil, err
	}
	mz, err := ro.WaterMz()
	if err != nil {
		return nil, err
	}
	return analysis.NewZSpectrum(meta.Offsets, mz)
}

func zspectrum(meta *RunMetadata, ro *Readouts) *ZSpectrumData {
	if len(meta.Offsets) == 0 || len(meta.Offsets) != len(ro.Times) {
		return nil
	}
	mz, err := ro.WaterMz()
	if err != nil {
		return nil
	}
	z, err := analysis.NewZSpectrum(meta.Offsets, mz)
	if err != nil {
		return nil
	}
	return &ZSpectrumData{Offsets: z.Offsets, Z: z.Z, M0: z.M0}
}
