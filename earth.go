package fds

// NewFrameGraph returns a graph holding the Earth frames (rooted at GCRF) and the EME2000
// oriented Moon and Sun frames. Earth orientation parameters come from eop (nil means zeros).
func NewFrameGraph(eop *EOPProvider) *FrameGraph {
	g := NewEmptyFrameGraph(eop)

	gcrf := NewFixedFrame(GCRF, nil, Earth, IdentityTransform())
	eme := NewFixedFrame(EME2000, gcrf, Earth, RotationTransform(frameBias().T(), nil))

	mod := NewSeriesFrame(MOD, eme, Earth, func(e Epoch) (Transform, error) {
		return RotationTransform(precession(e.Centuries(TT)), nil), nil
	})

	tod := NewSeriesFrame(TOD, mod, Earth, func(e Epoch) (Transform, error) {
		rec, err := eop.At(e)
		if err != nil {
			return Transform{}, &FrameError{Frame: TOD, Msg: "no nutation correction", Err: err}
		}
		return RotationTransform(nutationAt(e, rec).matrix(), nil), nil
	})

	teme := NewSeriesFrame(TEME, tod, Earth, func(e Epoch) (Transform, error) {
		rec, err := eop.At(e)
		if err != nil {
			return Transform{}, &FrameError{Frame: TEME, Msg: "no nutation correction", Err: err}
		}
		return RotationTransform(R3(-nutationAt(e, rec).equinoxEquation(e, false)), nil), nil
	})

	pef := NewSeriesFrame(PEF, tod, Earth, func(e Epoch) (Transform, error) {
		st, err := siderealAt(eop, e)
		if err != nil {
			return Transform{}, err
		}
		return RotationTransform(R3(-st.gast), earthRotation(st.rec)), nil
	})

	cirf := NewSeriesFrame(CIRF, gcrf, Earth, func(e Epoch) (Transform, error) {
		st, err := siderealAt(eop, e)
		if err != nil {
			return Transform{}, err
		}
		mjdUT1 := e.MJD(UTC) + st.rec.UT1UTC/SecondsPerDay
		return RotationTransform(celestialToIntermediate(e, st, mjdUT1), nil), nil
	})

	tirf := NewSeriesFrame(TIRF, cirf, Earth, func(e Epoch) (Transform, error) {
		rec, err := eop.At(e)
		if err != nil {
			return Transform{}, &FrameError{Frame: TIRF, Msg: "no UT1", Err: err}
		}
		mjdUT1 := e.MJD(UTC) + rec.UT1UTC/SecondsPerDay
		return RotationTransform(R3(-era(mjdUT1)), earthRotation(rec)), nil
	})

	itrf := NewSeriesFrame(ITRF, tirf, Earth, func(e Epoch) (Transform, error) {
		rec, err := eop.At(e)
		if err != nil {
			return Transform{}, &FrameError{Frame: ITRF, Msg: "no polar motion", Err: err}
		}
		return RotationTransform(polarMotion(rec.X, rec.Y, e.Centuries(TT)), nil), nil
	})

	wgs := NewFixedFrame(WGS84, itrf, Earth, IdentityTransform())

	moon := NewSeriesFrame(MoonFrame, eme, Moon, func(e Epoch) (Transform, error) {
		return IdentityTransform().Translate(MoonState(e)), nil
	})
	sun := NewSeriesFrame(SunFrame, eme, Sun, func(e Epoch) (Transform, error) {
		return IdentityTransform().Translate(SunState(e)), nil
	})

	for _, f := range []*Frame{gcrf, eme, mod, tod, teme, pef, cirf, tirf, itrf, wgs, moon, sun} {
		// Names are unique in a new graph.
		_ = g.Register(f, false)
	}
	return g
}
