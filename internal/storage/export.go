package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/trajset/internal/dataset"
)

type ExportData struct {
	Run          RunMetadata `json:"run"`
	Horizon      int         `json:"horizon"`
	Trajectories [][]float64 `json:"trajectories"`
	Scores       []float64   `json:"scores"`
}

// ExportJSON writes a run and all of its samples as one indented JSON
// document.
func ExportJSON(w io.Writer, meta *RunMetadata, ds *dataset.Dataset) error {
	data := ExportData{
		Run:          *meta,
		Horizon:      ds.Horizon(),
		Trajectories: make([][]float64, ds.Len()),
		Scores:       ds.Scores(),
	}

	for i := range data.Trajectories {
		traj, _, err := ds.Get(i)
		if err != nil {
			return err
		}
		data.Trajectories[i] = traj
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
