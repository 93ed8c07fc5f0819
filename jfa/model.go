package jfa

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/mat"

	"github.com/ieee0824/voiceprint-go/gmm"
	"github.com/ieee0824/voiceprint-go/internal/mathutil"
)

// serializable types for msgpack encoding
type serializedBase struct {
	UBM []byte      `msgpack:"ubm"`
	U   [][]float64 `msgpack:"u"`
	V   [][]float64 `msgpack:"v"`
	D   []float64   `msgpack:"d"`
}

type serializedMachine struct {
	Base serializedBase `msgpack:"base"`
	Y    []float64      `msgpack:"y"`
	Z    []float64      `msgpack:"z"`
}

func rows(a *mat.Dense) [][]float64 {
	r, c := a.Dims()
	out := mathutil.NewMat(r, c)
	for i := range out {
		mat.Row(out[i], i, a)
	}
	return out
}

func fromRows(name string, data [][]float64, r, c int) (*mat.Dense, error) {
	if len(data) != r {
		return nil, fmt.Errorf("%w: stored %s has %d rows, want %d", ErrDimensionMismatch, name, len(data), r)
	}
	a := mat.NewDense(r, c, nil)
	for i, row := range data {
		if len(row) != c {
			return nil, fmt.Errorf("%w: stored %s row %d has %d columns, want %d", ErrDimensionMismatch, name, i, len(row), c)
		}
		a.SetRow(i, row)
	}
	return a, nil
}

func (m *BaseMachine) serialize() (serializedBase, error) {
	var ubm bytes.Buffer
	if err := m.ubm.Save(&ubm); err != nil {
		return serializedBase{}, err
	}
	return serializedBase{UBM: ubm.Bytes(), U: rows(m.u), V: rows(m.v), D: m.d}, nil
}

func deserializeBase(sb serializedBase) (*BaseMachine, error) {
	ubm, err := gmm.Load(bytes.NewReader(sb.UBM))
	if err != nil {
		return nil, err
	}
	if len(sb.U) == 0 || len(sb.V) == 0 {
		return nil, fmt.Errorf("%w: stored subspaces are empty", ErrDimensionMismatch)
	}
	m, err := NewBaseMachine(ubm, len(sb.U[0]), len(sb.V[0]))
	if err != nil {
		return nil, err
	}
	cd := m.SupervectorLen()
	if m.u, err = fromRows("U", sb.U, cd, m.RankU()); err != nil {
		return nil, err
	}
	if m.v, err = fromRows("V", sb.V, cd, m.RankV()); err != nil {
		return nil, err
	}
	if err := m.SetD(sb.D); err != nil {
		return nil, err
	}
	return m, nil
}

// Save serializes the base machine, including its UBM, using msgpack encoding.
func (m *BaseMachine) Save(w io.Writer) error {
	sb, err := m.serialize()
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(&sb)
}

// LoadBaseMachine deserializes a base machine from a reader.
func LoadBaseMachine(r io.Reader) (*BaseMachine, error) {
	var sb serializedBase
	if err := msgpack.NewDecoder(r).Decode(&sb); err != nil {
		return nil, fmt.Errorf("jfa: decode: %w", err)
	}
	return deserializeBase(sb)
}

// Save serializes the enrolled machine together with its base machine.
func (m *Machine) Save(w io.Writer) error {
	sb, err := m.Base.serialize()
	if err != nil {
		return err
	}
	return msgpack.NewEncoder(w).Encode(&serializedMachine{Base: sb, Y: m.Y, Z: m.Z})
}

// LoadMachine deserializes an enrolled machine from a reader.
func LoadMachine(r io.Reader) (*Machine, error) {
	var sm serializedMachine
	if err := msgpack.NewDecoder(r).Decode(&sm); err != nil {
		return nil, fmt.Errorf("jfa: decode: %w", err)
	}
	base, err := deserializeBase(sm.Base)
	if err != nil {
		return nil, err
	}
	m := &Machine{Base: base, Y: sm.Y, Z: sm.Z}
	if _, err := m.SpeakerShift(); err != nil {
		return nil, err
	}
	return m, nil
}
