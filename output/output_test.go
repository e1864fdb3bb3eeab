package output

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rhist"
	"go-hep.org/x/hep/hbook"

	"github.com/decibelcooper/fakerate/measure"
)

func fakeRate() *measure.Measurement {
	return &measure.Measurement{
		Name:  "tau_0_pt",
		Edges: []float64{20, 30, 50, 100},
		Bins:  []measure.Value{{Val: 0.31, Err: 0.02}, {Val: 0.22, Err: 0.015}, {Val: 0.14, Err: 0.03}},
	}
}

func TestCreate(t *testing.T) {
	base := t.TempDir()
	path := filepath.Join(base, "plots", "FakeRates_Syst_20170826-111733")

	d, err := Create(path)
	require.NoError(t, err)
	assert.DirExists(t, d.Path)

	_, err = Create(path)
	var collision *OutputCollisionError
	require.ErrorAs(t, err, &collision)
	assert.Equal(t, path, collision.Dir)

	_, err = Open(path)
	assert.NoError(t, err)
	_, err = Open(filepath.Join(base, "missing"))
	assert.Error(t, err)

	assert.Equal(t, filepath.Join("plots", "FakeRates_Syst_20170826-111733"),
		DefaultPath("FakeRates_Syst", time.Date(2017, 8, 26, 11, 17, 33, 0, time.UTC)))
}

func TestResults(t *testing.T) {
	d, err := Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	r, err := d.Results("FakeRates_Syst.txt")
	require.NoError(t, err)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.Printf("line %02d\n", i))
		}(i)
	}
	wg.Wait()
	require.NoError(t, r.Close())

	r, err = d.Results("FakeRates_Syst.txt")
	require.NoError(t, err)
	_, err = r.Write([]byte("appended\n"))
	require.NoError(t, err)
	require.NoError(t, r.Close())

	data, err := os.ReadFile(d.Join("FakeRates_Syst.txt"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 21)
	assert.Equal(t, "appended", lines[20])
	for _, l := range lines[:20] {
		assert.Regexp(t, `^line \d\d$`, l)
	}
}

func TestWriteSettings(t *testing.T) {
	d, err := Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	require.NoError(t, d.WriteSettings(Settings{
		Luminosity:  3212.96,
		Systematics: []string{"TES", "PRW"},
		Weight:      "weight_total",
		Selection:   "(tau_0_pt > 20) && (lep_0_pt > 30)",
		Files: map[string][]string{
			"Zee":  {"zee.root"},
			"Data": {"data15.root", "data16.root"},
		},
	}))

	data, err := os.ReadFile(d.Join("plot-settings.txt"))
	require.NoError(t, err)
	s := string(data)
	assert.Contains(t, s, "\nluminosity:\n3212.96\n")
	assert.Contains(t, s, "\nsystSet:\n[TES PRW]\n")
	assert.Contains(t, s, "\nselection:\n(tau_0_pt > 20) && (lep_0_pt > 30)\n")
	assert.Contains(t, s, "\nProcess: Data\nFile: data15.root\nFile: data16.root\n\nProcess: Zee\nFile: zee.root\n")
}

func TestStoreLoad(t *testing.T) {
	d, err := Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)
	m := fakeRate()
	require.NoError(t, d.Store("tau_0_pt_1_Prong_Data_allSysts_loose", "tau_0_pt", m))

	got, err := d.Load("tau_0_pt_1_Prong_Data_allSysts_loose", "tau_0_pt")
	require.NoError(t, err)
	require.Equal(t, m.Len(), got.Len())
	for i := range m.Bins {
		assert.InDelta(t, m.Edges[i], got.Edges[i], 1e-12)
		assert.InDelta(t, m.Bins[i].Val, got.Bins[i].Val, 1e-12)
		assert.InDelta(t, m.Bins[i].Err, got.Bins[i].Err, 1e-12)
	}
	assert.InDelta(t, 100, got.Edges[3], 1e-12)

	yoda, err := os.ReadFile(d.Join("tau_0_pt_1_Prong_Data_allSysts_loose.yoda"))
	require.NoError(t, err)
	assert.Contains(t, string(yoda), "BEGIN YODA_SCATTER2D")

	_, err = d.Load("tau_0_pt_1_Prong_Data_allSysts_loose", "missing")
	assert.Error(t, err)
	_, err = d.Load("missing", "tau_0_pt")
	assert.Error(t, err)
}

func TestLoadHistogram(t *testing.T) {
	dir := t.TempDir()
	fname := filepath.Join(dir, "purity.root")

	h := hbook.NewH1DFromEdges([]float64{20, 40, 100})
	h.Fill(30, 0.6)
	h.Fill(30, 0.2)
	h.Fill(60, 0.5)

	f, err := groot.Create(fname)
	require.NoError(t, err)
	require.NoError(t, f.Put("h_q", rhist.NewH1DFrom(h)))
	require.NoError(t, f.Close())

	m, err := Load(fname, "h_q")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 40, 100}, m.Edges)
	assert.InDelta(t, 0.8, m.Bins[0].Val, 1e-12)
	assert.InDelta(t, math.Sqrt(0.6*0.6+0.2*0.2), m.Bins[0].Err, 1e-12)
	assert.InDelta(t, 0.5, m.Bins[1].Val, 1e-12)
}

func TestPlot(t *testing.T) {
	d, err := Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	sf := fakeRate()
	require.NoError(t, d.Plot("tau_0_pt_1_Prong_SF", Style{
		XLabel:     "p_T [GeV]",
		YLabel:     "Scale Factor",
		Luminosity: 3212.96,
		OneLine:    true,
		YLow:       0.5,
		YHigh:      2,
	}, Series{M: sf, Label: "Loose ID"}, Series{M: sf.Clone("tight")}))
	assert.FileExists(t, d.Join("tau_0_pt_1_Prong_SF.pdf"))
	assert.FileExists(t, d.Join("tau_0_pt_1_Prong_SF.png"))

	h := hbook.NewH1D(4, 0, 4)
	h.Fill(1.5, 1)
	require.NoError(t, d.Distributions("reco", "x", []string{"reco"}, h))
	assert.FileExists(t, d.Join("reco.png"))

	assert.Equal(t, "√s = 13 TeV, ∫L dt = 3.21 fb⁻¹", Title(3212.96))
}

func TestStack(t *testing.T) {
	d, err := Create(filepath.Join(t.TempDir(), "out"))
	require.NoError(t, err)

	data := hbook.NewH1DFromEdges([]float64{20, 30, 50, 100})
	zee := hbook.NewH1DFromEdges([]float64{20, 30, 50, 100})
	ttbar := hbook.NewH1DFromEdges([]float64{20, 30, 50, 100})
	for _, x := range []float64{25, 25, 40, 60} {
		data.Fill(x, 1)
	}
	zee.Fill(25, 1.5)
	zee.Fill(40, 1)
	ttbar.Fill(60, 0.8)

	ratio := fakeRate()
	require.NoError(t, d.Stack("tau_0_pt", Style{
		XLabel:     "p_T [GeV]",
		YLabel:     "Events",
		Luminosity: 3212.96,
		YLow:       0.5,
		YHigh:      1.5,
	}, data, []string{"Z→ee", "ttbar"}, []*hbook.H1D{zee, ttbar}, ratio))
	assert.FileExists(t, d.Join("tau_0_pt.pdf"))
	assert.FileExists(t, d.Join("tau_0_pt.png"))

	assert.Error(t, d.Stack("empty", Style{}, data, []string{"Z→ee"}, []*hbook.H1D{zee, ttbar}, ratio))
}
