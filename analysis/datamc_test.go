package analysis

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decibelcooper/fakerate/config"
	"github.com/decibelcooper/fakerate/cut"
	"github.com/decibelcooper/fakerate/event"
	"github.com/decibelcooper/fakerate/output"
)

func TestDataMC(t *testing.T) {
	d, err := output.Create(filepath.Join(t.TempDir(), "DataMC"))
	require.NoError(t, err)
	dm := &DataMC{
		Settings: Settings{Luminosity: 1},
		Config:   &config.Comparison{Selection: cut.New("Pt", "", "pt > 0"), Variables: []event.Variable{pt}},
		Processes: []Process{
			{Name: "Data", Title: "Data", Data: true, Tree: "T", Open: trees(map[string]event.Table{"T": {{"pt": 10}, {"pt": 20}, {"pt": 30}, {"pt": 60}}})},
			{Name: "Zee", Title: "Z→ee", Tree: "T", Open: trees(map[string]event.Table{"T": {{"pt": 10}, {"pt": 60}}})},
			{Name: "Ttbar", Title: "ttbar", Tree: "T", Scale: 2, Open: trees(map[string]event.Table{"T": {{"pt": 10}}})},
		},
		Out: d,
	}
	fills := 0
	dm.Progress = func() { fills++ }

	cmps, err := dm.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dm.Fills(), fills)
	require.Len(t, cmps, 1)
	c := cmps[0]
	assert.Equal(t, []string{"Z→ee", "ttbar"}, c.Labels)
	require.Len(t, c.MC, 2)
	assert.InDelta(t, 1, c.Ratio.Bins[0].Val, 1e-12)
	assert.InDelta(t, 1, c.Ratio.Bins[1].Val, 1e-12)

	assert.FileExists(t, d.Join("pt.png"))
	assert.FileExists(t, d.Join("pt.pdf"))
	stored, err := d.Load("pt_DataMC", "pt")
	require.NoError(t, err)
	assert.InDelta(t, c.Ratio.Bins[0].Err, stored.Bins[0].Err, 1e-12)
}
