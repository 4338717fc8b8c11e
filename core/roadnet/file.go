package roadnet

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/evgrid/core/geo"
)

// File is the on-disk representation of a road network.
type File struct {
	Nodes []FileNode `json:"nodes" yaml:"nodes"`
	Edges []FileEdge `json:"edges" yaml:"edges"`
}

// FileNode is a node entry of a network file.
type FileNode struct {
	ID  int64   `json:"id" yaml:"id"`
	Lat float64 `json:"lat" yaml:"lat"`
	Lon float64 `json:"lon" yaml:"lon"`
}

// FileEdge is an edge entry. Edges are two-way unless Oneway is set.
type FileEdge struct {
	From    int64   `json:"from" yaml:"from"`
	To      int64   `json:"to" yaml:"to"`
	LengthM float64 `json:"length_m,omitempty" yaml:"length_m,omitempty"`
	Oneway  bool    `json:"oneway,omitempty" yaml:"oneway,omitempty"`
}

// LoadFile reads a network from a YAML or JSON file selected by extension.
func LoadFile(path string) (*Graph, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open road network: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Decode(f, format)
}

// Decode parses a network in the given format ("yaml" or "json").
func Decode(r io.Reader, format string) (*Graph, error) {
	var nf File
	switch format {
	case "yaml", "yml":
		if err := yaml.NewDecoder(r).Decode(&nf); err != nil {
			return nil, fmt.Errorf("decode road network: %w", err)
		}
	case "json":
		if err := json.NewDecoder(r).Decode(&nf); err != nil {
			return nil, fmt.Errorf("decode road network: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported road network format: %s", format)
	}
	return nf.Build()
}

// Build converts the file contents to a Graph.
func (nf File) Build() (*Graph, error) {
	if len(nf.Nodes) == 0 {
		return nil, ErrEmpty
	}
	g := New()
	for _, n := range nf.Nodes {
		g.AddNode(n.ID, geo.LatLon{Lat: n.Lat, Lon: n.Lon})
	}
	for _, e := range nf.Edges {
		var err error
		if e.Oneway {
			err = g.AddEdge(e.From, e.To, e.LengthM)
		} else {
			err = g.AddRoad(e.From, e.To, e.LengthM)
		}
		if err != nil {
			return nil, err
		}
	}
	return g, nil
}

// Save writes the graph in the given format. Every directed edge is written
// as a one-way entry.
func (r *Graph) Save(w io.Writer, format string) error {
	nf := File{}
	for _, n := range r.Nodes() {
		nf.Nodes = append(nf.Nodes, FileNode{ID: n.ID, Lat: n.Pos.Lat, Lon: n.Pos.Lon})
	}
	for _, e := range r.Edges() {
		nf.Edges = append(nf.Edges, FileEdge{From: e.From, To: e.To, LengthM: e.LengthM, Oneway: true})
	}
	switch format {
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(nf); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(nf)
	default:
		return fmt.Errorf("unsupported road network format: %s", format)
	}
}

// FormatFromPath returns the encoding implied by the file extension.
func FormatFromPath(path string) (string, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return "yaml", nil
	case ".json":
		return "json", nil
	default:
		return "", fmt.Errorf("unsupported road network format: %s", ext)
	}
}
