package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zero-day-ai/mxgraph/nodetype"
	"github.com/zero-day-ai/mxgraph/property"
)

// SocketRecord is the serialised form of a nodetype.Socket.
type SocketRecord struct {
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	Type          string `json:"type"`
	BoundProperty string `json:"bound_property,omitempty"`
}

// PropertyRecord is the serialised form of a property.Descriptor.
type PropertyRecord struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Source      string `json:"source"`
	Kind        string `json:"kind"`
	Subtype     string `json:"subtype,omitempty"`
	Size        int    `json:"size,omitempty"`
	Default     any    `json:"default,omitempty"`
	Min         any    `json:"min,omitempty"`
	Max         any    `json:"max,omitempty"`
	SoftMin     any    `json:"soft_min,omitempty"`
	SoftMax     any    `json:"soft_max,omitempty"`
	Folder      string `json:"folder,omitempty"`
	Doc         string `json:"doc,omitempty"`
}

// TypeRecord is the serialised form of a node type, shared by every
// transport that publishes catalogs.
type TypeRecord struct {
	ID         string           `json:"id"`
	Label      string           `json:"label"`
	Category   string           `json:"category"`
	Group      string           `json:"group,omitempty"`
	Type       string           `json:"type,omitempty"`
	NodeDef    string           `json:"nodedef"`
	Source     string           `json:"source,omitempty"`
	Inputs     []SocketRecord   `json:"inputs"`
	Outputs    []SocketRecord   `json:"outputs"`
	Properties []PropertyRecord `json:"properties"`
}

// Record returns the serialised form of nt.
func Record(nt *nodetype.NodeType) TypeRecord {
	r := TypeRecord{
		ID:         nt.ID,
		Label:      nt.Label,
		Category:   nt.Category,
		Group:      nt.Group,
		Inputs:     socketRecords(nt.Inputs),
		Outputs:    socketRecords(nt.Outputs),
		Properties: make([]PropertyRecord, len(nt.Properties)),
	}
	if nt.Def != nil {
		r.Type = nt.Def.Type
		r.NodeDef = nt.Def.Name
		r.Source = nt.Def.Source
	}
	for i, d := range nt.Properties {
		r.Properties[i] = propertyRecord(d)
	}
	return r
}

// Map returns r as a generic map of JSON-compatible values.
func (r TypeRecord) Map() (map[string]any, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal node type %s: %w", r.ID, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node type %s: %w", r.ID, err)
	}
	return m, nil
}

func socketRecords(ss []nodetype.Socket) []SocketRecord {
	out := make([]SocketRecord, len(ss))
	for i, s := range ss {
		out[i] = SocketRecord{
			Name:          s.Name,
			DisplayName:   s.DisplayName,
			Type:          s.Type,
			BoundProperty: s.BoundProperty,
		}
	}
	return out
}

func propertyRecord(d *property.Descriptor) PropertyRecord {
	r := PropertyRecord{
		Name:        d.Name,
		DisplayName: d.DisplayName,
		Type:        d.Type,
		Source:      d.Source.String(),
		Kind:        d.Kind.String(),
		Size:        d.Size,
		Default:     d.Default.Interface(),
		Min:         d.Min.Interface(),
		Max:         d.Max.Interface(),
		SoftMin:     d.SoftMin.Interface(),
		SoftMax:     d.SoftMax.Interface(),
		Folder:      d.Folder,
		Doc:         d.Doc,
	}
	if d.Subtype != property.SubtypeNone {
		r.Subtype = d.Subtype.String()
	}
	return r
}

// Snapshot is a serialisable copy of a catalog.
type Snapshot struct {
	Namespace string       `json:"namespace"`
	Revision  uint64       `json:"revision"`
	Digest    string       `json:"digest"`
	CreatedAt time.Time    `json:"created_at"`
	Types     []TypeRecord `json:"types"`
}

// NewSnapshot serialises c. The digest covers the node types only, so two
// catalogs with the same content have the same digest whatever their
// revisions.
func NewSnapshot(c *Catalog) (*Snapshot, error) {
	s := &Snapshot{
		Namespace: c.Namespace(),
		Revision:  c.Revision(),
		CreatedAt: time.Now().UTC(),
		Types:     make([]TypeRecord, 0, c.Len()),
	}
	for _, nt := range c.Types() {
		s.Types = append(s.Types, Record(nt))
	}

	data, err := json.Marshal(s.Types)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog: %w", err)
	}
	sum := sha256.Sum256(data)
	s.Digest = hex.EncodeToString(sum[:])
	return s, nil
}
