package simulation

import (
	"encoding/json"
	"math"

	"gopkg.in/yaml.v3"
)

// Transforms are the four pluggable stages of the state pipeline:
//
//	write:  state  -> state   (before sending)
//	serialize: state -> bytes
//	deserialize: bytes -> state
//	read:   state  -> state   (after receiving)
//
// Defaults are identity for write/read and JSON for the codec, all lossless.
type Transforms struct {
	Write       func(State) (State, error)
	Read        func(State) (State, error)
	Serialize   func(State) ([]byte, error)
	Deserialize func([]byte) (State, error)
}

func DefaultTransforms() Transforms {
	return Transforms{
		Write:       Identity,
		Read:        Identity,
		Serialize:   JSONSerialize,
		Deserialize: JSONDeserialize,
	}
}

func Identity(s State) (State, error) {
	return s, nil
}

func JSONSerialize(s State) ([]byte, error) {
	return json.Marshal(s)
}

func JSONDeserialize(raw []byte) (State, error) {
	var s State
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func YAMLSerialize(s State) ([]byte, error) {
	return yaml.Marshal(s)
}

func YAMLDeserialize(raw []byte) (State, error) {
	var s State
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// YAMLCodec is a transform set that keeps the default write/read and speaks YAML.
func YAMLCodec() Transforms {
	return Transforms{Serialize: YAMLSerialize, Deserialize: YAMLDeserialize}
}

// MapValues returns a transform that rewrites every field value with fn.
func MapValues(fn func(field string, v float64) float64) func(State) (State, error) {
	return func(s State) (State, error) {
		out := make(State, len(s))
		for id, group := range s {
			g := make(Group, len(group))
			for name, rec := range group {
				r := rec.Clone()
				for field, v := range r {
					r[field] = fn(field, v)
				}
				g[name] = r
			}
			out[id] = g
		}
		return out, nil
	}
}

// RoundTo is a lossy write transform keeping the given number of decimals.
func RoundTo(decimals int) func(State) (State, error) {
	p := math.Pow10(decimals)
	return MapValues(func(_ string, v float64) float64 {
		return math.Round(v*p) / p
	})
}

// Float32 is a lossy write transform reducing every value to single precision.
func Float32() func(State) (State, error) {
	return MapValues(func(_ string, v float64) float64 {
		return float64(float32(v))
	})
}

// Compose chains transforms left to right.
func Compose(fns ...func(State) (State, error)) func(State) (State, error) {
	return func(s State) (State, error) {
		var err error
		for _, fn := range fns {
			if s, err = fn(s); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}
