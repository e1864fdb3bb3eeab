package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/groot"
	"go-hep.org/x/hep/groot/rtree"

	"github.com/decibelcooper/fakerate"
	"github.com/decibelcooper/fakerate/measure"
	"github.com/decibelcooper/fakerate/output"
)

const analysisYAML = `
luminosity: 3212.96
weight: weight_total
cuts:
  - {name: TauPt, title: "p_{T}(#tau) > 20 GeV", expr: "tau_0_pt > 20"}
  - {name: ZWindow, expr: "abs(m_ll - 91) < 10"}
  - {name: ZWindowUp, expr: "abs(m_ll - 91) < 15"}
  - {name: ZWindowDown, expr: "abs(m_ll - 91) < 5"}
  - {name: OneProng, title: "1 Prong", expr: "tau_0_n_tracks == 1"}
  - {name: Loose, title: "Loose ID", expr: "tau_0_loose == 1"}
  - {name: QuarkMatch, expr: "abs(tau_0_jet_pdgid) < 6"}
  - {name: GluonMatch, expr: "tau_0_jet_pdgid == 21"}
  - {name: ZptLow, expr: "pt_ll < 25"}
  - {name: ZptHigh, expr: "pt_ll >= 25"}
selections:
  - {name: sel_base, all: [TauPt, ZWindow]}
processes:
  - {name: Data, data: true, files: [data.root]}
  - {name: Zee, fake_rate: true, scale: 0.001, files: [zee.root]}
systematics:
  - {name: Lumi, kind: scale, scale: {up: 1.021, down: 0.979}}
variables:
  - {name: tau_0_pt, title: "p_{T}(#tau)", unit: GeV, edges: [20, 50, 100]}
cutflow: [TauPt, ZWindow, OneProng]
fakerate:
  base: [sel_base]
  no_window: [TauPt]
  window_up: ZWindowUp
  window_down: ZWindowDown
  prongs:
    - {name: 1_Prong, cut: OneProng}
  working_points:
    - {name: loose, cut: Loose}
  variables: [tau_0_pt]
extract:
  quark_region: out/measure
  gluon_region: out/measure
  variable: tau_0_pt
  working_points: [loose]
  purities:
    - {prong: 1_Prong, quark: tf/q_1p.root, gluon: tf/g_1p.root}
separation:
  base: [sel_base]
  quark: QuarkMatch
  gluon: GluonMatch
  regions:
    - {name: q_enriched, title: "p_{T}(ll) < 25 GeV", cut: ZptLow}
    - {name: g_enriched, title: "p_{T}(ll) > 25 GeV", cut: ZptHigh}
  prongs:
    - {name: 1_Prong, title: "1 Prong", cut: OneProng}
  variables: [tau_0_pt]
yields:
  base: [sel_base]
  selections: [Loose]
datamc:
  selection: [sel_base, OneProng]
  variables: [tau_0_pt]
`

func writeEvents(t *testing.T, fname string, n, stride int) {
	f, err := groot.Create(fname)
	require.NoError(t, err)
	defer f.Close()

	var (
		pt     float32
		mll    float32
		ntrack int32
		loose  int32
		pdgid  int32
		ptll   float32
		weight float64
	)
	w, err := rtree.NewWriter(f, "NOMINAL", []rtree.WriteVar{
		{Name: "tau_0_pt", Value: &pt},
		{Name: "m_ll", Value: &mll},
		{Name: "tau_0_n_tracks", Value: &ntrack},
		{Name: "tau_0_loose", Value: &loose},
		{Name: "tau_0_jet_pdgid", Value: &pdgid},
		{Name: "pt_ll", Value: &ptll},
		{Name: "weight_total", Value: &weight},
	})
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		k := i * stride
		pt = float32(15 + k%85)
		mll = float32(76 + (i*13)%30)
		ntrack = int32(1 + 2*(i%4/3))
		loose = int32(k % 3 % 2)
		pdgid = 1
		if i%5 == 0 {
			pdgid = 21
		}
		ptll = float32((i * 17) % 50)
		weight = 0.5 + 0.1*float64(i%4)
		_, err := w.Write()
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
}

func setup(t *testing.T) string {
	dir := t.TempDir()
	writeEvents(t, filepath.Join(dir, "data.root"), 300, 7)
	writeEvents(t, filepath.Join(dir, "zee.root"), 200, 11)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "analysis.yaml"), []byte(analysisYAML), 0o644))
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append(args, "--no-progress", "--log-level", "warn"))
	err := execute(context.Background())
	return out.String(), err
}

func TestMeasureExtract(t *testing.T) {
	dir := setup(t)
	cfg := filepath.Join(dir, "analysis.yaml")
	measured := filepath.Join(dir, "out", "measure")

	_, err := run(t, "measure", "-c", cfg, "-o", measured)
	require.NoError(t, err)
	for _, name := range []string{
		"plot-settings.txt",
		"FakeRates_Syst.txt",
		"tau_0_pt_1_Prong_MC_allSysts_loose.root",
		"tau_0_pt_1_Prong_Data_allSysts_loose.root",
		"tau_0_pt_1_Prong_SF_allSysts_loose.yoda",
		"tau_0_pt_1_Prong_SF.png",
	} {
		assert.FileExists(t, filepath.Join(measured, name))
	}

	_, err = run(t, "measure", "-c", cfg, "-o", measured)
	var collision *output.OutputCollisionError
	require.ErrorAs(t, err, &collision)

	tf, err := output.Create(filepath.Join(dir, "tf"))
	require.NoError(t, err)
	q := measure.New("h_q", []float64{20, 50, 100})
	q.Bins[0], q.Bins[1] = measure.Value{Val: 0.8, Err: 0.05}, measure.Value{Val: 0.7, Err: 0.05}
	require.NoError(t, tf.Store("q_1p", "h_q", q))
	g := q.Clone("h_q")
	g.Bins[0].Val, g.Bins[1].Val = 0.3, 0.35
	require.NoError(t, tf.Store("g_1p", "h_q", g))

	out, err := run(t, "extract", "-c", cfg, "-o", filepath.Join(dir, "out", "extract"))
	require.NoError(t, err)
	assert.Contains(t, out, "1_Prong_loose\n")

	// the same fake rate in both regions is also the quark and gluon fake rate
	data, err := output.Load(filepath.Join(measured, "tau_0_pt_1_Prong_Data_allSysts_loose.root"), "tau_0_pt")
	require.NoError(t, err)
	fq, err := output.Load(filepath.Join(dir, "out", "extract", "Extract_QG_FakeRates_1_Prong_loose_Q.root"), "tau_0_pt")
	require.NoError(t, err)
	fg, err := output.Load(filepath.Join(dir, "out", "extract", "Extract_QG_FakeRates_1_Prong_loose_G.root"), "tau_0_pt")
	require.NoError(t, err)
	for i := range data.Bins {
		assert.InDelta(t, data.Bins[i].Val, fq.Bins[i].Val, 1e-9)
		assert.InDelta(t, data.Bins[i].Val, fg.Bins[i].Val, 1e-9)
	}
}

func TestMeasureOptions(t *testing.T) {
	dir := setup(t)
	cfg := filepath.Join(dir, "analysis.yaml")

	_, err := run(t, "measure", "-c", cfg, "-o", filepath.Join(dir, "bad"), "--variable", "missing")
	assert.ErrorContains(t, err, "unknown variable missing")
	measureVariables = nil

	out := filepath.Join(dir, "edges")
	_, err = run(t, "measure", "-c", cfg, "-o", out, "--edges", "20,30,60,100", "-j", "1")
	require.NoError(t, err)
	m, err := output.Load(filepath.Join(out, "tau_0_pt_1_Prong_MC_allSysts_loose.root"), "tau_0_pt")
	require.NoError(t, err)
	assert.Equal(t, []float64{20, 30, 60, 100}, m.Edges)
	measureEdges = fakerate.FloatArrayFlags{}

	_, err = run(t, "measure", "-c", cfg, "-o", filepath.Join(dir, "prof"), "--profile", "gpu")
	assert.ErrorContains(t, err, `unknown profile "gpu"`)
	profMode = ""
}

func TestProfileOnFailure(t *testing.T) {
	dir := setup(t)
	t.Chdir(dir)

	_, err := run(t, "measure", "-c", "analysis.yaml", "-o", "bad", "--variable", "missing", "--profile", "mem")
	assert.ErrorContains(t, err, "unknown variable missing")
	measureVariables = nil
	profMode = ""

	assert.Nil(t, profiler)
	assert.FileExists(t, filepath.Join(dir, "mem.pprof"))
}

func TestCutflow(t *testing.T) {
	dir := setup(t)
	out, err := run(t, "cutflow", "-c", filepath.Join(dir, "analysis.yaml"), "-o", filepath.Join(dir, "cutflow"))
	require.NoError(t, err)
	assert.Contains(t, out, "\nProcess: Data\n")
	assert.Contains(t, out, "after application of: OneProng\n")
	assert.FileExists(t, filepath.Join(dir, "cutflow", "Cutflow.txt"))
}

func TestCuts(t *testing.T) {
	dir := setup(t)
	records := filepath.Join(dir, "records.yaml")
	require.NoError(t, os.WriteFile(records, []byte(`
- {tau_0_pt: 25, m_ll: 90, tau_0_n_tracks: 1, tau_0_loose: true}
- {tau_0_pt: 15.5, m_ll: 70, tau_0_n_tracks: 3, tau_0_loose: false}
`), 0o644))

	out, err := run(t, "cuts", "-c", filepath.Join(dir, "analysis.yaml"), "TauPt", "sel_base", "--eval", records)
	require.NoError(t, err)
	assert.Contains(t, out, "(tau_0_pt > 20) && (abs(m_ll - 91) < 10)")
	assert.Regexp(t, `(?m)^0\s+true\s+true\s*$`, out)
	assert.Regexp(t, `(?m)^1\s+false\s+false\s*$`, out)
	evalPath = ""

	out, err = run(t, "cuts", "-c", filepath.Join(dir, "analysis.yaml"), "Loose", "--eval", records)
	require.NoError(t, err)
	assert.Regexp(t, `(?m)^0\s+true\s*$`, out)
	assert.Regexp(t, `(?m)^1\s+false\s*$`, out)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("- {tau_0_pt: high}\n"), 0o644))
	_, err = run(t, "cuts", "-c", filepath.Join(dir, "analysis.yaml"), "TauPt", "--eval", bad)
	assert.ErrorContains(t, err, "field tau_0_pt")
	evalPath = ""

	_, err = run(t, "cuts", "-c", filepath.Join(dir, "analysis.yaml"), "NoSuchCut")
	assert.ErrorContains(t, err, `unknown cut "NoSuchCut"`)
}

func TestPurity(t *testing.T) {
	dir := setup(t)
	out := filepath.Join(dir, "qg")
	_, err := run(t, "purity", "-c", filepath.Join(dir, "analysis.yaml"), "-o", out)
	require.NoError(t, err)

	for _, region := range []string{"q_enriched", "g_enriched"} {
		q, err := output.Load(filepath.Join(out, region+"_1_Prong_tau_0_pt.root"), "h_q")
		require.NoError(t, err, region)
		assert.Equal(t, []float64{20, 50, 100}, q.Edges)
		for _, b := range q.Bins {
			assert.True(t, b.Val > 0 && b.Val <= 1, "%s: %v", region, b)
		}
	}
	assert.FileExists(t, filepath.Join(out, "Q-G-Separation_1_Prong_tau_0_pt_ratio.png"))
	report, err := os.ReadFile(filepath.Join(out, "Q-G-Separation.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "Probing: 1 Prong\n")
	assert.Contains(t, string(report), "Region p_{T}(ll) > 25 GeV:\n")
}

func TestYields(t *testing.T) {
	dir := setup(t)
	out, err := run(t, "yields", "-c", filepath.Join(dir, "analysis.yaml"), "-o", filepath.Join(dir, "yields"))
	require.NoError(t, err)
	assert.Contains(t, out, "Weighted Yields\n")
	assert.Contains(t, out, "Unweighted Yields\n")
	assert.Contains(t, out, "Without Selection\nYields (value, uncertainty):\nData:\t\t300 +- ")
	assert.Contains(t, out, "Zee:\t\t200 +- ")
	assert.Contains(t, out, "Additional Selection: Loose\n")

	txt, err := os.ReadFile(filepath.Join(dir, "yields", "yields.txt"))
	require.NoError(t, err)
	assert.Equal(t, out, string(txt))
}

func TestDataMC(t *testing.T) {
	dir := setup(t)
	out := filepath.Join(dir, "datamc")
	_, err := run(t, "datamc", "-c", filepath.Join(dir, "analysis.yaml"), "-o", out)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(out, "tau_0_pt.png"))
	assert.FileExists(t, filepath.Join(out, "plot-settings.txt"))
	ratio, err := output.Load(filepath.Join(out, "tau_0_pt_DataMC.root"), "tau_0_pt")
	require.NoError(t, err)
	assert.Len(t, ratio.Bins, 2)
}
