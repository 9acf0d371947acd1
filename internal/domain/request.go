package domain

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Operand is a job input given either inline as a FeatureCollection or
// as the id of a catalog layer.
type Operand struct {
	Ref        string
	Collection *geojson.FeatureCollection
}

// IsZero reports whether the operand was not set.
func (o *Operand) IsZero() bool {
	return o == nil || (o.Ref == "" && o.Collection == nil)
}

// UnmarshalJSON accepts a JSON string (layer id) or a GeoJSON object.
func (o *Operand) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &o.Ref)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("decoding feature collection: %w", err)
	}
	o.Collection = fc
	return nil
}

// MarshalJSON writes the reference or the inline collection.
func (o Operand) MarshalJSON() ([]byte, error) {
	if o.Collection != nil {
		return json.Marshal(o.Collection)
	}
	if o.Ref != "" {
		return json.Marshal(o.Ref)
	}
	return []byte("null"), nil
}

// LayerResolver looks up catalog layers by id.
type LayerResolver func(id string) (*Layer, error)

// JobRequest is the wire form of a job whose operands may reference
// catalog layers.
type JobRequest struct {
	ID       string     `json:"id"`
	Type     Operation  `json:"type"`
	A        *Operand   `json:"a,omitempty"`
	B        *Operand   `json:"b,omitempty"`
	Layer    *Operand   `json:"layer,omitempty"`
	Sources  []*Operand `json:"sources,omitempty"`
	Mask     *Operand   `json:"mask,omitempty"`
	Distance float64    `json:"distance,omitempty"`
	MinArea  float64    `json:"minArea,omitempty"`
}

// Resolve turns the request into a job, replacing layer references with
// the referenced collections. A nil resolver rejects references.
func (r *JobRequest) Resolve(resolve LayerResolver) (*Job, error) {
	job := &Job{
		ID:       r.ID,
		Type:     r.Type,
		Distance: r.Distance,
		MinArea:  r.MinArea,
	}

	var err error
	if job.A, err = resolveOperand("a", r.A, resolve); err != nil {
		return nil, err
	}
	if job.B, err = resolveOperand("b", r.B, resolve); err != nil {
		return nil, err
	}
	if job.Layer, err = resolveOperand("layer", r.Layer, resolve); err != nil {
		return nil, err
	}
	if job.Mask, err = resolveOperand("mask", r.Mask, resolve); err != nil {
		return nil, err
	}
	for i, src := range r.Sources {
		fc, err := resolveOperand(fmt.Sprintf("sources[%d]", i), src, resolve)
		if err != nil {
			return nil, err
		}
		job.Sources = append(job.Sources, fc)
	}
	return job, nil
}

func resolveOperand(field string, o *Operand, resolve LayerResolver) (*geojson.FeatureCollection, error) {
	if o.IsZero() {
		return nil, nil
	}
	if o.Collection != nil {
		return o.Collection, nil
	}
	if resolve == nil {
		return nil, &ValidationError{
			Field:      field,
			Value:      o.Ref,
			Constraint: "FeatureCollection",
			Message:    "layer references are not supported here",
		}
	}
	layer, err := resolve(o.Ref)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", field, err)
	}
	return layer.Features(), nil
}
