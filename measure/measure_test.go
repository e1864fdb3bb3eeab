package measure

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/diff/fd"
)

func measurement(name string, vals ...float64) *Measurement {
	m := New(name, nil)
	for _, v := range vals {
		m.Bins = append(m.Bins, Value{Val: v})
	}
	return m
}

func TestFromH1D(t *testing.T) {
	h := hbook.NewH1D(3, 0, 3)
	h.Fill(0.5, 1)
	h.Fill(0.5, 2)
	h.Fill(2.5, 1)
	h.Fill(-1, 10) // underflow is ignored

	m := FromH1D("h", h)
	assert.Equal(t, []float64{0, 1, 2, 3}, m.Edges)
	require.Equal(t, 3, m.Len())
	assert.Equal(t, 3., m.Bins[0].Val)
	assert.InDelta(t, math.Sqrt(5), m.Bins[0].Err, 1e-12)
	assert.Equal(t, Value{}, m.Bins[1])
	assert.Equal(t, Value{Val: 1, Err: 1}, m.Bins[2])

	in := m.Integral()
	assert.Equal(t, 4., in.Val)
	assert.InDelta(t, math.Sqrt(6), in.Err, 1e-12)
}

func TestS2D(t *testing.T) {
	m := &Measurement{
		Name:  "fr",
		Edges: []float64{20, 30, 50, 100},
		Bins:  []Value{{0.3, 0.01}, {0.2, 0.02}, {0.1, 0.05}},
	}
	s := m.S2D()
	require.Equal(t, 3, s.Len())
	assert.Equal(t, 40., s.Point(1).X)
	assert.Equal(t, hbook.Range{Min: 10, Max: 10}, s.Point(1).ErrX)
	assert.Equal(t, "fr", s.Annotation()["name"])

	back := FromS2D("fr", s)
	assert.Equal(t, m.Edges, back.Edges)
	for i := range m.Bins {
		assert.InDelta(t, m.Bins[i].Val, back.Bins[i].Val, 1e-12)
		assert.InDelta(t, m.Bins[i].Err, back.Bins[i].Err, 1e-12)
	}
}

func TestCloneAndAdd(t *testing.T) {
	m := &Measurement{Name: "data", Bins: []Value{{10, 3}, {20, 4}}}
	c := m.Clone("subtracted")
	require.NoError(t, c.Add(&Measurement{Bins: []Value{{2, 4}, {4, 3}}}, -1))

	assert.Equal(t, []Value{{8, 5}, {16, 5}}, c.Bins)
	assert.Equal(t, []Value{{10, 3}, {20, 4}}, m.Bins, "clone shares no bins")

	err := c.Add(&Measurement{Name: "short", Bins: []Value{{1, 1}}}, 1)
	assert.True(t, errors.Is(err, ErrMisaligned))
}

func TestDivision(t *testing.T) {
	num := &Measurement{Name: "id"}
	den := &Measurement{Name: "reco"}
	for _, v := range [][2]float64{{2, 10}, {5, 10}, {9, 10}, {30, 1000}, {0.5, 3.5}} {
		num.Bins = append(num.Bins, Value{v[0], math.Sqrt(v[0])})
		den.Bins = append(den.Bins, Value{v[1], math.Sqrt(v[1])})
	}

	plain, err := Divide("plain", num, den)
	require.NoError(t, err)
	binomial, err := DivideBinomial("binomial", num, den)
	require.NoError(t, err)

	for i := range num.Bins {
		assert.InDelta(t, plain.Bins[i].Val, binomial.Bins[i].Val, 1e-15)
		assert.Less(t, binomial.Bins[i].Err, plain.Bins[i].Err, "bin %d", i)
	}

	// sqrt(r(1-r)/n) for unweighted counts
	assert.InDelta(t, math.Sqrt(0.2*0.8/10), binomial.Bins[0].Err, 1e-12)
	// sqrt(r²(1/n + 1/d))
	assert.InDelta(t, math.Sqrt(0.04*(1./2+1./10)), plain.Bins[0].Err, 1e-12)
}

func TestDivisionEdgeCases(t *testing.T) {
	assert.Equal(t, Value{}, Ratio(Value{3, 1}, Value{0, 1}))
	assert.Equal(t, Value{}, BinomialRatio(Value{3, 1}, Value{0, 1}))

	full := BinomialRatio(Value{10, math.Sqrt(10)}, Value{10, math.Sqrt(10)})
	assert.Equal(t, 1., full.Val)
	assert.InDelta(t, 0, full.Err, 1e-12)

	_, err := DivideBinomial("x", measurement("a", 1, 2), measurement("b", 1))
	assert.ErrorIs(t, err, ErrMisaligned)
}

func TestSymmetrize(t *testing.T) {
	assert.Equal(t, 2.5, Symmetrize(10, 12, 7))
	assert.Equal(t, 2.5, Symmetrize(10, 7, 12))
	assert.Equal(t, 0., Symmetrize(10, 10, 10))
	assert.Equal(t, 2., Symmetrize(10, 12, 12))
}

func TestBinWiseSyst(t *testing.T) {
	nom := &Measurement{Name: "nom", Bins: []Value{{10, 0.5}, {4, 0.2}}}
	up := measurement("up", 12, 5)
	down := measurement("down", 7, 4)

	syst, err := BinWiseSyst("syst", nom, up, down)
	require.NoError(t, err)
	assert.Equal(t, "syst", syst.Name)
	assert.Equal(t, []Value{{10, 2.5}, {4, 0.5}}, syst.Bins)
	assert.Equal(t, 0.5, nom.Bins[0].Err, "nominal is not modified")

	total := nom.Clone("total")
	require.NoError(t, AddBinWiseSyst(total, nom, up, down))
	assert.InDelta(t, math.Hypot(0.5, 2.5), total.Bins[0].Err, 1e-12)
	assert.InDelta(t, math.Hypot(0.2, 0.5), total.Bins[1].Err, 1e-12)
	assert.Equal(t, 10., total.Bins[0].Val)

	assert.ErrorIs(t, AddBinWiseSyst(total, nom, up, measurement("short", 1)), ErrMisaligned)
}

func TestQuadratureOrder(t *testing.T) {
	nom := &Measurement{Name: "nom", Bins: []Value{{0.31, 0.013}, {0.17, 0.021}}}
	vars := map[string][2]*Measurement{
		"TES":      {measurement("", 0.33, 0.18), measurement("", 0.30, 0.165)},
		"pileup":   {measurement("", 0.305, 0.171), measurement("", 0.3125, 0.1693)},
		"Z_window": {measurement("", 0.29, 0.2), measurement("", 0.327, 0.15)},
	}
	orders := [][]string{
		{"TES", "pileup", "Z_window"},
		{"TES", "Z_window", "pileup"},
		{"pileup", "TES", "Z_window"},
		{"pileup", "Z_window", "TES"},
		{"Z_window", "TES", "pileup"},
		{"Z_window", "pileup", "TES"},
	}

	var ref []Value
	for _, order := range orders {
		total := nom.Clone("total")
		env := NewEnvelope(nom)
		for _, name := range order {
			require.NoError(t, AddBinWiseSyst(total, nom, vars[name][0], vars[name][1]))
			require.NoError(t, env.Add(name, vars[name][0], vars[name][1]))
		}
		got := env.Total("total")
		if ref == nil {
			ref = total.Bins
		}
		for i := range ref {
			assert.InDelta(t, ref[i].Err, total.Bins[i].Err, 1e-15)
			assert.InDelta(t, ref[i].Err, got.Bins[i].Err, 1e-15)
		}
		assert.Equal(t, []string{"TES", "Z_window", "pileup"}, env.Sources())
	}

	env := NewEnvelope(nom)
	require.NoError(t, env.Add("TES", vars["TES"][0], vars["TES"][1]))
	assert.Error(t, env.Add("TES", vars["TES"][0], vars["TES"][1]))
	tes, ok := env.Source("TES")
	require.True(t, ok)
	assert.InDelta(t, 0.015, tes.Bins[0].Err, 1e-12)
	assert.InDelta(t, 0.015, env.Syst("syst").Bins[0].Err, 1e-12)
	assert.InDelta(t, math.Hypot(0.015, 0.013), env.Total("total").Bins[0].Err, 1e-12)
}

func TestWithVariation(t *testing.T) {
	nom := &Measurement{Name: "q", Bins: []Value{{0.30, 0.03}, {0.5, 0.1}}}
	got, err := WithVariation("q", nom, measurement("q_up", 0.34, 0.5))
	require.NoError(t, err)
	assert.InDelta(t, 0.05, got.Bins[0].Err, 1e-12)
	assert.InDelta(t, 0.1, got.Bins[1].Err, 1e-12)
	assert.Equal(t, 0.30, got.Bins[0].Val)
}

func TestQuarkFakeRate(t *testing.T) {
	in := []float64{0.10, 0.30, 0.05, 0.10} // f1, q1, f2, q2
	sigma := []float64{0.01, 0.02, 0.01, 0.02}

	got, err := QuarkFakeRate(Value{in[0], sigma[0]}, Value{in[1], sigma[1]}, Value{in[2], sigma[2]}, Value{in[3], sigma[3]})
	require.NoError(t, err)
	assert.InDelta(t, ((1-0.10)*0.10-(1-0.30)*0.05)/(0.30-0.10), got.Val, 1e-12)
	assert.InDelta(t, 0.275, got.Val, 1e-12)

	quark := func(x []float64) float64 {
		v, _ := QuarkFakeRate(Value{Val: x[0]}, Value{Val: x[1]}, Value{Val: x[2]}, Value{Val: x[3]})
		return v.Val
	}
	assert.InDelta(t, numericError(quark, in, sigma), got.Err, 1e-6)
	assert.InDelta(t, math.Sqrt(0.0040625), got.Err, 1e-12)
}

func TestGluonFakeRate(t *testing.T) {
	in := []float64{0.12, 0.65, 0.21, 0.25}
	sigma := []float64{0.015, 0.04, 0.02, 0.03}

	got, err := GluonFakeRate(Value{in[0], sigma[0]}, Value{in[1], sigma[1]}, Value{in[2], sigma[2]}, Value{in[3], sigma[3]})
	require.NoError(t, err)
	assert.InDelta(t, (0.25*0.12-0.65*0.21)/(0.25-0.65), got.Val, 1e-12)

	gluon := func(x []float64) float64 {
		v, _ := GluonFakeRate(Value{Val: x[0]}, Value{Val: x[1]}, Value{Val: x[2]}, Value{Val: x[3]})
		return v.Val
	}
	assert.InDelta(t, numericError(gluon, in, sigma), got.Err, 1e-6)
}

// The quark and gluon fake rates must reproduce the measured fake rates of
// both regions.
func TestQuarkGluonClosure(t *testing.T) {
	f1, q1 := Value{Val: 0.14}, Value{Val: 0.7}
	f2, q2 := Value{Val: 0.09}, Value{Val: 0.35}
	fq, err := QuarkFakeRate(f1, q1, f2, q2)
	require.NoError(t, err)
	fg, err := GluonFakeRate(f1, q1, f2, q2)
	require.NoError(t, err)

	assert.InDelta(t, f1.Val, q1.Val*fq.Val+(1-q1.Val)*fg.Val, 1e-12)
	assert.InDelta(t, f2.Val, q2.Val*fq.Val+(1-q2.Val)*fg.Val, 1e-12)
}

func numericError(f func([]float64) float64, x, sigma []float64) float64 {
	grad := fd.Gradient(nil, f, x, &fd.Settings{Formula: fd.Central})
	var err2 float64
	for i, g := range grad {
		err2 += g * g * sigma[i] * sigma[i]
	}
	return math.Sqrt(err2)
}

func TestDegenerate(t *testing.T) {
	f1, f2 := Value{0.1, 0.01}, Value{0.05, 0.01}
	q := Value{0.3, 0.02}

	v, err := QuarkFakeRate(f1, q, f2, q)
	assert.Equal(t, Value{}, v)
	var deg *DegenerateBinError
	require.ErrorAs(t, err, &deg)
	assert.Equal(t, "quark", deg.Flavor)

	v, err = GluonFakeRate(f1, q, f2, q)
	assert.Equal(t, Value{}, v)
	require.ErrorAs(t, err, &deg)
	assert.Equal(t, "gluon", deg.Flavor)
}

func TestCombiner(t *testing.T) {
	var buf bytes.Buffer
	c := Combiner{Log: slog.New(slog.NewTextHandler(&buf, nil))}

	fr1 := &Measurement{Name: "fr1", Edges: []float64{20, 40, 100}, Bins: []Value{{0.10, 0.01}, {0.2, 0.01}}}
	q1 := &Measurement{Name: "q1", Bins: []Value{{0.30, 0.02}, {0.4, 0.02}}}
	fr2 := &Measurement{Name: "fr2", Bins: []Value{{0.05, 0.01}, {0.1, 0.01}}}
	q2 := &Measurement{Name: "q2", Bins: []Value{{0.10, 0.02}, {0.4, 0.03}}}

	fq, err := c.Quark("FR_Q_1_Prong_loose", fr1, q1, fr2, q2)
	require.NoError(t, err)
	assert.Equal(t, "FR_Q_1_Prong_loose", fq.Name)
	assert.Equal(t, fr1.Edges, fq.Edges)
	assert.InDelta(t, 0.275, fq.Bins[0].Val, 1e-12)
	assert.Equal(t, Value{}, fq.Bins[1])

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, `bin="FR_Q_1_Prong_loose Bin 2"`)
	assert.NotContains(t, out, "Bin 1")

	buf.Reset()
	fg, err := c.Gluon("FR_G", fr1, q1, fr2, q2)
	require.NoError(t, err)
	assert.Equal(t, Value{}, fg.Bins[1])
	assert.Contains(t, buf.String(), "flavor=gluon")

	_, err = c.Quark("x", fr1, q1, fr2, &Measurement{Bins: []Value{{}}})
	assert.ErrorIs(t, err, ErrMisaligned)
}
