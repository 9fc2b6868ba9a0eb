package configuration

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoConfiguration     = errors.New("no configuration for organisation")
	ErrInvalidOrganisation = errors.New("invalid organisation configuration")
)

const (
	DefaultHistoryLimitDays = 5
	DefaultStartGraceDays   = 14
)

type OAuth struct {
	TokenURL     string `yaml:"tokenUrl" toml:"tokenUrl" validate:"required,url"`
	ClientID     string `yaml:"clientId" toml:"clientId" validate:"required"`
	ClientSecret string `yaml:"clientSecret" toml:"clientSecret" validate:"required"`
	Username     string `yaml:"username" toml:"username" validate:"required"`
	Password     string `yaml:"password" toml:"password" validate:"required"`
	Scope        string `yaml:"scope" toml:"scope"`
}

// Endpoints are resolved against BaseURL unless absolute.
type Endpoints struct {
	BaseURL            string `yaml:"baseUrl" toml:"baseUrl" validate:"required,url"`
	GraphQL            string `yaml:"graphql" toml:"graphql"`
	PersonnelResource  string `yaml:"personnelResource" toml:"personnelResource"`
	PersonnelFolder    string `yaml:"personnelFolder" toml:"personnelFolder"`
	AdministrativeUnit string `yaml:"administrativeUnit" toml:"administrativeUnit"`
	ArchiveResource    string `yaml:"archiveResource" toml:"archiveResource"`
}

func (e *Endpoints) setDefaults() {
	if e.GraphQL == "" {
		e.GraphQL = "/graphql/graphql"
	}
	if e.PersonnelResource == "" {
		e.PersonnelResource = "/administrasjon/personal/personalressurs"
	}
	if e.PersonnelFolder == "" {
		e.PersonnelFolder = "/arkiv/personal/personalmappe"
	}
	if e.AdministrativeUnit == "" {
		e.AdministrativeUnit = "/arkiv/noark/administrativenhet"
	}
	if e.ArchiveResource == "" {
		e.ArchiveResource = "/arkiv/noark/arkivressurs"
	}
}

// Resolve returns path joined to BaseURL, or path itself when it is absolute.
func (e Endpoints) Resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimRight(e.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

type Organisation struct {
	ID         string    `yaml:"id" toml:"id" validate:"required"`
	OAuth      OAuth     `yaml:"oauth" toml:"oauth"`
	Endpoints  Endpoints `yaml:"endpoints" toml:"endpoints"`
	Categories []string  `yaml:"personnelResourceCategories" toml:"personnelResourceCategories" validate:"required,min=1,dive,required"`
	Excluded   []string  `yaml:"administrativeUnitsExcluded" toml:"administrativeUnitsExcluded" validate:"dive,required"`
	BulkLimit  int       `yaml:"bulkLimit" toml:"bulkLimit" validate:"gte=0"`

	Bulk            bool `yaml:"bulk" toml:"bulk"`
	Delta           bool `yaml:"delta" toml:"delta"`
	Retry           bool `yaml:"retry" toml:"retry"`
	ArchiveResource bool `yaml:"archiveResource" toml:"archiveResource"`

	// TransformationScripts are file paths, applied in order before every submission.
	TransformationScripts []string `yaml:"transformationScripts" toml:"transformationScripts" validate:"dive,required"`
	HistoryLimitDays      int      `yaml:"historyLimit" toml:"historyLimit" validate:"gte=0"`
	// StartGraceDays admits employments starting within this many days. Nil means the default.
	StartGraceDays  *int   `yaml:"startGraceDays" toml:"startGraceDays" validate:"omitempty,gte=0"`
	IdentityMasking string `yaml:"identityMasking" toml:"identityMasking" validate:"omitempty,oneof=legacy keyed"`
}

func (o *Organisation) setDefaults() {
	o.Endpoints.setDefaults()
	if o.HistoryLimitDays == 0 {
		o.HistoryLimitDays = DefaultHistoryLimitDays
	}
	if o.IdentityMasking == "" {
		o.IdentityMasking = "legacy"
	}
}

func (o Organisation) StartGrace() time.Duration {
	days := DefaultStartGraceDays
	if o.StartGraceDays != nil {
		days = *o.StartGraceDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (o Organisation) HistoryLimit() time.Duration {
	return time.Duration(o.HistoryLimitDays) * 24 * time.Hour
}

type organisationsFile struct {
	Organisations []Organisation `yaml:"organisations" toml:"organisations" validate:"dive"`
}

// Organisations is the validated set of configured organisations keyed by id.
type Organisations struct {
	byID  map[string]Organisation
	order []string
}

func (o *Organisations) Get(id string) (Organisation, error) {
	if o != nil {
		if org, ok := o.byID[id]; ok {
			return org, nil
		}
	}
	return Organisation{}, errors.Wrapf(ErrNoConfiguration, "org %q", id)
}

// All returns the organisations in file order.
func (o *Organisations) All() []Organisation {
	if o == nil {
		return nil
	}
	out := make([]Organisation, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.byID[id])
	}
	return out
}

func (o *Organisations) IDs() []string {
	if o == nil {
		return nil
	}
	return append([]string(nil), o.order...)
}

// LoadOrganisations reads a YAML (.yaml, .yml) or TOML (.toml) organisations file.
func LoadOrganisations(path string) (*Organisations, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read organisations file")
	}
	return ParseOrganisations(raw, strings.ToLower(filepath.Ext(path)))
}

func ParseOrganisations(raw []byte, ext string) (*Organisations, error) {
	var file organisationsFile
	switch ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			return nil, errors.Wrap(err, "decode yaml organisations")
		}
	case ".toml":
		md, err := toml.Decode(string(raw), &file)
		if err != nil {
			return nil, errors.Wrap(err, "decode toml organisations")
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, errors.Errorf("decode toml organisations: unknown key %q", undecoded[0].String())
		}
	default:
		return nil, errors.Errorf("unsupported organisations file extension %q", ext)
	}

	for i := range file.Organisations {
		file.Organisations[i].setDefaults()
	}
	if err := validator.New().Struct(file); err != nil {
		return nil, errors.Wrap(ErrInvalidOrganisation, err.Error())
	}

	orgs := &Organisations{byID: make(map[string]Organisation, len(file.Organisations))}
	for _, org := range file.Organisations {
		if _, dup := orgs.byID[org.ID]; dup {
			return nil, errors.Wrapf(ErrInvalidOrganisation, "duplicate organisation id %q", org.ID)
		}
		orgs.byID[org.ID] = org
		orgs.order = append(orgs.order, org.ID)
	}
	return orgs, nil
}
