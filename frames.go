package fds

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Names of the frames registered by NewFrameGraph.
const (
	GCRF    = "GCRF"
	EME2000 = "EME2000"
	MOD     = "MOD"
	TOD     = "TOD"
	TEME    = "TEME"
	PEF     = "PEF"
	CIRF    = "CIRF"
	TIRF    = "TIRF"
	ITRF    = "ITRF"
	WGS84   = "WGS84"
	// MoonFrame and SunFrame are EME2000 oriented, centred on their body.
	MoonFrame = "Moon"
	SunFrame  = "Sun"
)

// Transform maps a 6 element state (position and velocity) from one frame to another as
// out = M·in + Offset, where M = [[R, 0], [Ṙ, R]].
type Transform struct {
	M      *mat.Dense
	Offset [6]float64
}

// IdentityTransform returns the transform which does nothing.
func IdentityTransform() Transform {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 6; i++ {
		m.Set(i, i, 1)
	}
	return Transform{M: m}
}

// RotationTransform returns the transform of a frame whose axes are rotated by rot from the
// target frame, and rotating at ω (expressed in the source frame) with respect to it:
// r' = rot·r and v' = rot·(v + ω×r).
func RotationTransform(rot mat.Matrix, ω []float64) Transform {
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, rot.At(i, j))
			m.Set(i+3, j+3, rot.At(i, j))
		}
	}
	if ω != nil {
		var rdot mat.Dense
		rdot.Mul(rot, skew(ω))
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				m.Set(i+3, j, rdot.At(i, j))
			}
		}
	}
	return Transform{M: m}
}

// Translate returns the transform followed by a translation of the origin.
func (t Transform) Translate(offset []float64) Transform {
	out := Transform{M: t.M, Offset: t.Offset}
	for i := range offset {
		out.Offset[i] += offset[i]
	}
	return out
}

// Apply returns the transformed state.
func (t Transform) Apply(s []float64) []float64 {
	var v mat.VecDense
	v.MulVec(t.M, mat.NewVecDense(6, append([]float64(nil), s[:6]...)))
	out := make([]float64, 6)
	for i := 0; i < 6; i++ {
		out[i] = v.AtVec(i) + t.Offset[i]
	}
	return out
}

// Then returns the transform applying t then next.
func (t Transform) Then(next Transform) Transform {
	m := mat.NewDense(6, 6, nil)
	m.Mul(next.M, t.M)
	var off mat.VecDense
	off.MulVec(next.M, mat.NewVecDense(6, append([]float64(nil), t.Offset[:]...)))
	out := Transform{M: m}
	for i := 0; i < 6; i++ {
		out.Offset[i] = off.AtVec(i) + next.Offset[i]
	}
	return out
}

// Inverse returns the inverse transform.
func (t Transform) Inverse() Transform {
	var rt, rdot, tmp, a mat.Dense
	rt.CloneFrom(t.M.Slice(0, 3, 0, 3).T())
	rdot.CloneFrom(t.M.Slice(3, 6, 0, 3))
	tmp.Mul(&rt, &rdot)
	a.Mul(&tmp, &rt)
	m := mat.NewDense(6, 6, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, rt.At(i, j))
			m.Set(i+3, j+3, rt.At(i, j))
			m.Set(i+3, j, -a.At(i, j))
		}
	}
	out := Transform{M: m}
	var off mat.VecDense
	off.MulVec(m, mat.NewVecDense(6, append([]float64(nil), t.Offset[:]...)))
	for i := 0; i < 6; i++ {
		out.Offset[i] = -off.AtVec(i)
	}
	return out
}

// Rotation returns the rotation matrix.
func (t Transform) Rotation() *mat.Dense {
	return mat.DenseCopyOf(t.M.Slice(0, 3, 0, 3))
}

// RotationRate returns the time derivative of the rotation matrix.
func (t Transform) RotationRate() *mat.Dense {
	return mat.DenseCopyOf(t.M.Slice(3, 6, 0, 3))
}

// Translation returns the position of the source origin in the target frame.
func (t Transform) Translation() []float64 {
	return []float64{t.Offset[0], t.Offset[1], t.Offset[2]}
}

// TranslationRate returns the velocity of the source origin in the target frame.
func (t Transform) TranslationRate() []float64 {
	return []float64{t.Offset[3], t.Offset[4], t.Offset[5]}
}

// Orientation is the kind of orientation model of a frame.
type Orientation uint8

const (
	// Fixed frames have a constant transform to their parent.
	Fixed Orientation = iota + 1
	// Series frames have a transform computed from time series models (precession, nutation, EOP).
	Series
	// Generator frames follow a moving object and are never cached.
	Generator
)

func (o Orientation) String() string {
	switch o {
	case Fixed:
		return "fixed"
	case Series:
		return "series"
	case Generator:
		return "generator"
	default:
		return "unknown"
	}
}

// TransformFunc returns the transform from a frame to its parent at the provided epoch.
type TransformFunc func(e Epoch) (Transform, error)

// Frame is a node of the frame graph. It only knows the transform to its parent.
type Frame struct {
	name     string
	parent   *Frame
	center   CelestialObject
	kind     Orientation
	toParent TransformFunc
}

// NewFixedFrame returns a frame with a constant transform to its parent.
func NewFixedFrame(name string, parent *Frame, center CelestialObject, t Transform) *Frame {
	return &Frame{name: name, parent: parent, center: center, kind: Fixed, toParent: func(Epoch) (Transform, error) { return t, nil }}
}

// NewSeriesFrame returns a frame whose transform to its parent depends on time.
func NewSeriesFrame(name string, parent *Frame, center CelestialObject, f TransformFunc) *Frame {
	return &Frame{name: name, parent: parent, center: center, kind: Series, toParent: f}
}

// NewGeneratorFrame returns a frame following a moving object.
func NewGeneratorFrame(name string, parent *Frame, center CelestialObject, f TransformFunc) *Frame {
	return &Frame{name: name, parent: parent, center: center, kind: Generator, toParent: f}
}

// Name returns the name of the frame.
func (f *Frame) Name() string { return f.name }

// Parent returns the parent frame, nil for a root.
func (f *Frame) Parent() *Frame { return f.parent }

// Center returns the body at the origin of the frame.
func (f *Frame) Center() CelestialObject { return f.center }

// Kind returns the orientation model kind.
func (f *Frame) Kind() Orientation { return f.kind }

func (f *Frame) String() string { return f.name }

// ancestors returns the frame and all its ancestors, starting with the frame itself.
func (f *Frame) ancestors() []*Frame {
	var out []*Frame
	for cur := f; cur != nil; cur = cur.parent {
		out = append(out, cur)
	}
	return out
}

// FrameGraph is the registry of frames. It must be fully populated before propagation starts:
// lookups are safe for concurrent use, registration during propagation is not supported.
type FrameGraph struct {
	mu     sync.RWMutex
	frames map[string]*Frame
	eop    *EOPProvider
}

// NewEmptyFrameGraph returns a graph without any frame.
func NewEmptyFrameGraph(eop *EOPProvider) *FrameGraph {
	return &FrameGraph{frames: make(map[string]*Frame), eop: eop}
}

// EOP returns the EOP provider used by the Earth frames.
func (g *FrameGraph) EOP() *EOPProvider { return g.eop }

// Register adds a frame. Registering an existing name fails unless override is set.
func (g *FrameGraph) Register(f *Frame, override bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.frames[f.name]; exists && !override {
		return &FrameError{Frame: f.name, Msg: "already registered"}
	}
	g.frames[f.name] = f
	return nil
}

// Get returns the frame of that name.
func (g *FrameGraph) Get(name string) (*Frame, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	f, ok := g.frames[name]
	if !ok {
		return nil, &FrameError{Frame: name, Err: ErrUnknownFrame}
	}
	return f, nil
}

// Names returns the registered frame names, sorted.
func (g *FrameGraph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.frames))
	for n := range g.frames {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Transform returns the transform from the frame named from to the frame named to.
func (g *FrameGraph) Transform(from, to string, e Epoch) (Transform, error) {
	src, err := g.Get(from)
	if err != nil {
		return Transform{}, err
	}
	dst, err := g.Get(to)
	if err != nil {
		return Transform{}, err
	}
	return TransformFrames(src, dst, e, nil)
}

// Convert returns the state (position and velocity) expressed in another frame.
func (g *FrameGraph) Convert(state []float64, from, to string, e Epoch) ([]float64, error) {
	t, err := g.Transform(from, to, e)
	if err != nil {
		return nil, err
	}
	return t.Apply(state), nil
}

// TransformFrames composes the transforms from src to dst through their lowest common ancestor.
// If batch is not nil, the transforms of non generator frames are cached by epoch.
func TransformFrames(src, dst *Frame, e Epoch, batch *TransformBatch) (Transform, error) {
	if src == dst {
		return IdentityTransform(), nil
	}
	srcChain := src.ancestors()
	dstChain := dst.ancestors()
	inDst := make(map[*Frame]int, len(dstChain))
	for i, f := range dstChain {
		inDst[f] = i
	}
	lca, dstIdx := -1, -1
	for i, f := range srcChain {
		if j, ok := inDst[f]; ok {
			lca, dstIdx = i, j
			break
		}
	}
	if lca < 0 {
		return Transform{}, &FrameError{Frame: src.name, Msg: fmt.Sprintf("no common ancestor with '%s'", dst.name)}
	}
	up := IdentityTransform()
	for _, f := range srcChain[:lca] {
		t, err := batch.toParent(f, e)
		if err != nil {
			return Transform{}, err
		}
		up = up.Then(t)
	}
	down := IdentityTransform()
	for _, f := range dstChain[:dstIdx] {
		t, err := batch.toParent(f, e)
		if err != nil {
			return Transform{}, err
		}
		down = down.Then(t)
	}
	return up.Then(down.Inverse()), nil
}

type batchKey struct {
	frame *Frame
	epoch Epoch
}

// TransformBatch caches the parent transforms of fixed and series frames, per epoch, while
// converting many states (e.g. an ephemeris). Generator frames are never cached.
type TransformBatch struct {
	cache map[batchKey]Transform
}

// NewTransformBatch returns an empty cache.
func NewTransformBatch() *TransformBatch {
	return &TransformBatch{cache: make(map[batchKey]Transform)}
}

func (b *TransformBatch) toParent(f *Frame, e Epoch) (Transform, error) {
	if b == nil || f.kind == Generator {
		return f.toParent(e)
	}
	k := batchKey{frame: f, epoch: e.In(TAI)}
	if t, ok := b.cache[k]; ok {
		return t, nil
	}
	t, err := f.toParent(e)
	if err != nil {
		return t, err
	}
	b.cache[k] = t
	return t, nil
}

// Len returns the number of cached transforms.
func (b *TransformBatch) Len() int { return len(b.cache) }
