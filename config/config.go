// Package config loads the YAML description of a fake-rate analysis.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/decibelcooper/fakerate/event"
)

// DefaultTree is the tree read when neither the analysis nor a process
// names one.
const DefaultTree = "NOMINAL"

// DefaultPurityObject is the name of the quark fraction in a purity file.
const DefaultPurityObject = "h_q"

// Config is the file format of an analysis.
type Config struct {
	Luminosity  float64      `yaml:"luminosity"` // in pb^-1
	Weight      string       `yaml:"weight"`
	Tree        string       `yaml:"tree"`
	Cuts        []Cut        `yaml:"cuts"`
	Selections  []Selection  `yaml:"selections"`
	Processes   []Process    `yaml:"processes"`
	Systematics []Systematic `yaml:"systematics"`
	Variables   []Variable   `yaml:"variables"`
	Cutflow     []string     `yaml:"cutflow"`
	FakeRate    *FakeRate    `yaml:"fakerate"`
	Extract     *Extract     `yaml:"extract"`
	Separation  *Separation  `yaml:"separation"`
	Yields      *Yields      `yaml:"yields"`
	DataMC      *DataMC      `yaml:"datamc"`
}

type Cut struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
	Expr  string `yaml:"expr"`
}

// Selection combines previously defined cuts or selections. Exactly one of
// All and Any is set.
type Selection struct {
	Name  string   `yaml:"name"`
	Title string   `yaml:"title"`
	All   []string `yaml:"all"`
	Any   []string `yaml:"any"`
}

type Process struct {
	Name     string   `yaml:"name"`
	Title    string   `yaml:"title"`
	Data     bool     `yaml:"data"`
	Scale    float64  `yaml:"scale"`
	Weight   string   `yaml:"weight"`
	FakeRate bool     `yaml:"fake_rate"` // simulated sample the MC fake rate is measured in
	Tree     string   `yaml:"tree"`
	Files    []string `yaml:"files"`
}

type Systematic struct {
	Name    string   `yaml:"name"`
	Title   string   `yaml:"title"`
	Kind    string   `yaml:"kind"` // tree, weight or scale
	Up      string   `yaml:"up"`
	Down    string   `yaml:"down"`
	Nominal string   `yaml:"nominal"`
	Scale   *Scale   `yaml:"scale"`
	Only    []string `yaml:"only_regions"`
	Not     []string `yaml:"not_regions"`
}

type Scale struct {
	Up      float64 `yaml:"up"`
	Down    float64 `yaml:"down"`
	Nominal float64 `yaml:"nominal"`
}

type Variable struct {
	Name          string `yaml:"name"`
	Expr          string `yaml:"expr"`
	Title         string `yaml:"title"`
	Unit          string `yaml:"unit"`
	event.Binning `yaml:",inline"`
}

// Category is one entry of a loop over selections, a tau prong
// multiplicity or an identification working point.
type Category struct {
	Name  string `yaml:"name"`
	Title string `yaml:"title"`
	Cut   string `yaml:"cut"`
}

// FakeRate configures the fake-rate and scale-factor measurement.
type FakeRate struct {
	Base          []string   `yaml:"base"`
	NoWindow      []string   `yaml:"no_window"`
	WindowUp      string     `yaml:"window_up"`
	WindowDown    string     `yaml:"window_down"`
	TruthMatch    string     `yaml:"truth_match"`
	Prongs        []Category `yaml:"prongs"`
	WorkingPoints []Category `yaml:"working_points"`
	Variables     []string   `yaml:"variables"`
	SkipMC        bool       `yaml:"skip_mc"`
	SkipData      bool       `yaml:"skip_data"`
	PlotEachSyst  bool       `yaml:"plot_each_syst"`
}

// Extract configures the quark/gluon separation of stored fake rates.
type Extract struct {
	QuarkRegion   string             `yaml:"quark_region"`
	GluonRegion   string             `yaml:"gluon_region"`
	QuarkMC       string             `yaml:"quark_mc"`
	GluonMC       string             `yaml:"gluon_mc"`
	Variable      string             `yaml:"variable"`
	WorkingPoints []string           `yaml:"working_points"`
	Purities      []Purity           `yaml:"purities"`
	YHigh         map[string]float64 `yaml:"y_high"` // keyed by <prong>_<working point>
}

// Separation configures the quark fraction of the fake-rate candidates in
// simulation, measured by truth matching in each region.
type Separation struct {
	Base      []string   `yaml:"base"`
	Quark     string     `yaml:"quark"` // matched to a quark
	Gluon     string     `yaml:"gluon"` // matched to a gluon, or to nothing
	Regions   []Category `yaml:"regions"`
	Prongs    []Category `yaml:"prongs"`
	Variables []string   `yaml:"variables"`
}

// Yields configures the yield tables: every process without selection,
// after the base selection and after the base and each extra cut.
type Yields struct {
	Base       []string `yaml:"base"`
	Selections []string `yaml:"selections"`
}

// DataMC configures the comparison of data with the stacked simulation.
type DataMC struct {
	Selection []string `yaml:"selection"`
	Variables []string `yaml:"variables"`
}

// Purity names the quark fractions of both regions for one prong, each with
// an alternative estimate used as its systematic.
type Purity struct {
	Prong          string `yaml:"prong"`
	Object         string `yaml:"object"`
	Quark          string `yaml:"quark"`
	QuarkVariation string `yaml:"quark_variation"`
	Gluon          string `yaml:"gluon"`
	GluonVariation string `yaml:"gluon_variation"`
}

// Load reads and validates the configuration in path. Relative file names
// in it are taken relative to the directory of path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	c.rebase(filepath.Dir(path))
	return c, nil
}

// Parse decodes and validates a configuration. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, err
	}
	c.defaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) defaults() {
	if c.Tree == "" {
		c.Tree = DefaultTree
	}
	for i := range c.Processes {
		p := &c.Processes[i]
		if p.Title == "" {
			p.Title = p.Name
		}
		if p.Scale == 0 {
			p.Scale = 1
		}
		if p.Tree == "" {
			p.Tree = c.Tree
		}
	}
	if c.Extract != nil {
		for i := range c.Extract.Purities {
			if c.Extract.Purities[i].Object == "" {
				c.Extract.Purities[i].Object = DefaultPurityObject
			}
		}
	}
}

func (c *Config) rebase(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	for i := range c.Processes {
		for j, f := range c.Processes[i].Files {
			c.Processes[i].Files[j] = abs(f)
		}
	}
	if x := c.Extract; x != nil {
		x.QuarkRegion, x.GluonRegion = abs(x.QuarkRegion), abs(x.GluonRegion)
		x.QuarkMC, x.GluonMC = abs(x.QuarkMC), abs(x.GluonMC)
		for i := range x.Purities {
			p := &x.Purities[i]
			p.Quark, p.QuarkVariation = abs(p.Quark), abs(p.QuarkVariation)
			p.Gluon, p.GluonVariation = abs(p.Gluon), abs(p.GluonVariation)
		}
	}
}

// Validate checks what can be checked without resolving names.
func (c *Config) Validate() error {
	var errs []error
	if c.Luminosity < 0 {
		errs = append(errs, fmt.Errorf("negative luminosity %g", c.Luminosity))
	}
	names := make(map[string]bool)
	for _, p := range c.Processes {
		switch {
		case p.Name == "":
			errs = append(errs, errors.New("process without a name"))
		case names[p.Name]:
			errs = append(errs, fmt.Errorf("duplicate process %q", p.Name))
		case len(p.Files) == 0:
			errs = append(errs, fmt.Errorf("process %q has no files", p.Name))
		}
		names[p.Name] = true
	}
	for _, s := range c.Selections {
		if (len(s.All) == 0) == (len(s.Any) == 0) {
			errs = append(errs, fmt.Errorf("selection %q needs exactly one of all and any", s.Name))
		}
	}
	for _, s := range c.Systematics {
		switch s.Kind {
		case "tree", "weight":
		case "scale":
			if s.Scale == nil {
				errs = append(errs, fmt.Errorf("scale systematic %q has no scale", s.Name))
			}
		default:
			errs = append(errs, fmt.Errorf("systematic %q has unknown kind %q", s.Name, s.Kind))
		}
	}
	for _, v := range c.Variables {
		if err := v.Binning.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("variable %q: %w", v.Name, err))
		}
	}
	if f := c.FakeRate; f != nil {
		if len(f.Prongs) == 0 || len(f.WorkingPoints) == 0 || len(f.Variables) == 0 {
			errs = append(errs, errors.New("fakerate needs prongs, working points and variables"))
		}
		if f.SkipMC && f.SkipData {
			errs = append(errs, errors.New("fakerate skips both simulation and data"))
		}
	}
	if s := c.Separation; s != nil {
		if s.Quark == "" || s.Gluon == "" {
			errs = append(errs, errors.New("separation needs quark and gluon cuts"))
		}
		if len(s.Regions) == 0 || len(s.Prongs) == 0 || len(s.Variables) == 0 {
			errs = append(errs, errors.New("separation needs regions, prongs and variables"))
		}
	}
	if d := c.DataMC; d != nil && len(d.Variables) == 0 {
		errs = append(errs, errors.New("datamc needs variables"))
	}
	if x := c.Extract; x != nil {
		if x.QuarkRegion == "" || x.GluonRegion == "" {
			errs = append(errs, errors.New("extract needs a quark and a gluon region"))
		}
		for _, p := range x.Purities {
			if p.Quark == "" || p.Gluon == "" {
				errs = append(errs, fmt.Errorf("purity of %q needs quark and gluon files", p.Prong))
			}
		}
	}
	return errors.Join(errs...)
}
