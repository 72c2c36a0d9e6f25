// Package config decodes YAML run configurations and turns them into
// simulation scenarios.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"carboncore/internal/compartment"
	"carboncore/internal/core"
	"carboncore/pkg/domain"
)

// File is a run configuration.
type File struct {
	Name         string `yaml:"name" validate:"required"`
	Realizations int    `yaml:"realizations" validate:"gte=1"`
	// Parallelism bounds concurrent realizations; 0 runs them sequentially.
	Parallelism    int     `yaml:"parallelism" validate:"gte=0"`
	ExtensionYears int     `yaml:"extension_years" validate:"gte=0"`
	Step           int     `yaml:"step" validate:"required_with=ExtensionYears,gte=0"`
	EvenAged       bool    `yaml:"even_aged"`
	Rotation       float64 `yaml:"rotation" validate:"gte=0"`
	// Graph describes the processor graph; when absent the reference graph is used.
	Graph      *Graph      `yaml:"graph"`
	Categories []string    `yaml:"categories" validate:"dive,required"`
	Stands     []Stand     `yaml:"stands" validate:"required,min=1,dive"`
	Deviates   []Deviates  `yaml:"deviates" validate:"dive"`
	Parameters *Parameters `yaml:"parameters"`
	Storage    Storage     `yaml:"storage"`
}

// Graph is a processor graph declared by name. Processors are added in
// order, so a parent must be declared before its children.
type Graph struct {
	Processors      []Processor       `yaml:"processors" validate:"required,min=1,dive"`
	Loss            string            `yaml:"loss"`
	DefaultDisposal string            `yaml:"default_disposal"`
	Bindings        map[string]string `yaml:"bindings" validate:"required,min=1,dive,keys,required,endkeys,required"`
}

// Processor declares one graph node.
type Processor struct {
	Name   string  `yaml:"name" validate:"required"`
	Parent string  `yaml:"parent"`
	Intake float64 `yaml:"intake" validate:"gte=0,lte=1"`
	Kind   string  `yaml:"kind" validate:"required,oneof=split end_use landfill left_in_forest diversion"`
	// Yield defaults to 1 when omitted.
	Yield                *float64 `yaml:"yield" validate:"omitempty,gt=0,lte=1"`
	Emissions            float64  `yaml:"emissions" validate:"gte=0"`
	UseClass             string   `yaml:"use_class" validate:"omitempty,use_class"`
	Lifetime             float64  `yaml:"lifetime" validate:"gte=0"`
	Disposal             Disposal `yaml:"disposal"`
	Docf                 float64  `yaml:"docf" validate:"gte=0,lte=1"`
	EnergySubstitution   float64  `yaml:"energy_substitution" validate:"gte=0"`
	MaterialSubstitution float64  `yaml:"material_substitution" validate:"gte=0"`
	// Target names the line a diversion forwards to.
	Target string `yaml:"target" validate:"required_if=Kind diversion"`
}

// Disposal declares the end-of-life policy of an end-use product.
type Disposal struct {
	Kind     string  `yaml:"kind" validate:"omitempty,oneof=none fraction forward"`
	Fraction float64 `yaml:"fraction" validate:"gte=0,lte=1"`
	Target   string  `yaml:"target" validate:"required_if=Kind forward"`
}

// Stand is one harvest event.
type Stand struct {
	Date    int     `yaml:"date"`
	Biomass Biomass `yaml:"biomass"`
	Harvest []Piece `yaml:"harvest" validate:"dive"`
}

// Biomass is a stand's living biomass carbon.
type Biomass struct {
	AboveGround float64 `yaml:"above_ground" validate:"gte=0"`
	BelowGround float64 `yaml:"below_ground" validate:"gte=0"`
}

// Piece is a bucked wood piece.
type Piece struct {
	Category string  `yaml:"category" validate:"required"`
	Volume   float64 `yaml:"volume" validate:"gte=0"`
	Biomass  float64 `yaml:"biomass" validate:"gte=0"`
	Carbon   float64 `yaml:"carbon" validate:"gte=0"`
}

// Deviates is one row of the sensitivity table.
type Deviates struct {
	Biomass  float64            `yaml:"biomass" validate:"gte=0"`
	Lifetime map[string]float64 `yaml:"lifetime" validate:"dive,keys,use_class,endkeys,gt=0"`
}

// Parameters overrides the landfill methane constants.
type Parameters struct {
	MethaneFraction float64 `yaml:"methane_fraction" validate:"gte=0,lte=1"`
	MethaneGWP      float64 `yaml:"methane_gwp" validate:"gte=0"`
}

// Storage selects the result store; empty fields keep the environment's value.
type Storage struct {
	Driver      string `yaml:"driver" validate:"omitempty,oneof=memory sqlite postgres badger blob"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
	BadgerPath  string `yaml:"badger_path"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("use_class", func(fl validator.FieldLevel) bool {
		return domain.UseClass(fl.Field().String()).Known()
	})
	return v
}

// Load reads and validates the configuration at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a single YAML document, rejecting unknown fields, and validates it.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty configuration")
		}
		return nil, fmt.Errorf("decode config: %w", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("multiple YAML documents are not supported")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks the struct tags and the graph's name references.
func (f *File) Validate() error {
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", strings.TrimPrefix(fe.Namespace(), "File."), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return err
	}
	if f.Graph != nil {
		if _, err := f.Graph.ids(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	return nil
}

// Scenario converts the configuration into a simulation scenario.
func (f *File) Scenario() (*core.Scenario, error) {
	graph, err := f.BuildGraph()
	if err != nil {
		return nil, err
	}
	sc := &core.Scenario{
		Name:           f.Name,
		Graph:          graph,
		Categories:     append([]string(nil), f.Categories...),
		ExtensionYears: f.ExtensionYears,
		Step:           f.Step,
		EvenAged:       f.EvenAged,
		Rotation:       f.Rotation,
	}
	for _, st := range f.Stands {
		stand := core.Stand{
			Date:    st.Date,
			Biomass: domain.Biomass{AboveGround: st.Biomass.AboveGround, BelowGround: st.Biomass.BelowGround},
		}
		for _, p := range st.Harvest {
			stand.Harvest = append(stand.Harvest, core.WoodPiece{
				Category: p.Category,
				Amounts:  domain.NewAmountMap(p.Volume, p.Biomass, p.Carbon),
			})
		}
		sc.Stands = append(sc.Stands, stand)
	}
	if len(f.Deviates) > 0 {
		table := make(core.DeviateTable, len(f.Deviates))
		for i, d := range f.Deviates {
			table[i] = domain.Deviates{Biomass: d.Biomass}
			if len(d.Lifetime) > 0 {
				table[i].Lifetime = make(map[domain.UseClass]float64, len(d.Lifetime))
				for u, v := range d.Lifetime {
					table[i].Lifetime[domain.UseClass(u)] = v
				}
			}
		}
		sc.Deviates = table
	}
	if f.Parameters != nil {
		sc.Parameters = &compartment.Parameters{
			MethaneFraction: f.Parameters.MethaneFraction,
			MethaneGWP:      f.Parameters.MethaneGWP,
		}
	}
	return sc, nil
}

// StorageConfig overlays the file's storage section on base.
func (f *File) StorageConfig(base core.StorageConfig) core.StorageConfig {
	if f.Storage.Driver != "" {
		base.Driver = core.StorageDriver(f.Storage.Driver)
	}
	if f.Storage.SQLitePath != "" {
		base.SQLitePath = f.Storage.SQLitePath
	}
	if f.Storage.PostgresDSN != "" {
		base.PostgresDSN = f.Storage.PostgresDSN
	}
	if f.Storage.BadgerPath != "" {
		base.BadgerPath = f.Storage.BadgerPath
	}
	return base
}
