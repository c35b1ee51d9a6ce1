package assets

import (
	"mediafactory/internal/jobs"
	"mediafactory/internal/stage"
)

// Kinds of visual recorded in the manifest.
const (
	KindClip  = "clip"
	KindSlide = "slide"
)

// PrimaryFile lists the visuals of a job in section order.
const PrimaryFile = "manifest.json"

// Item is the visual chosen for one script section.
type Item struct {
	Index   int    `json:"index"`
	Heading string `json:"heading,omitempty"`
	Query   string `json:"query,omitempty"`
	Kind    string `json:"kind"`
	File    string `json:"file"`
	Source  string `json:"source,omitempty"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Bytes   int64  `json:"bytes"`
}

// Manifest is the committed output of the stage.
type Manifest struct {
	Items []Item `json:"items"`
}

// Counts returns how many clips and slides the manifest holds.
func (m Manifest) Counts() (clips, slides int) {
	for _, item := range m.Items {
		if item.Kind == KindClip {
			clips++
		} else {
			slides++
		}
	}
	return clips, slides
}

// LoadManifest reads the committed manifest of a job.
func LoadManifest(job *jobs.Job) (Manifest, error) {
	var m Manifest
	if err := stage.LoadJSON(job, jobs.StageAssets, PrimaryFile, &m); err != nil {
		return Manifest{}, err
	}
	return m, nil
}
