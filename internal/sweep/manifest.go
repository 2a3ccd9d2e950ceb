package sweep

import (
	"github.com/packagewjx/cacheflow/internal/cacti"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest 记录每次CACTI调用，便于复现
type Manifest struct {
	CactiDir string          `yaml:"cactiDir"`
	TechNM   float64         `yaml:"techNM"`
	TargetNM float64         `yaml:"targetNM"`
	Entries  []ManifestEntry `yaml:"entries"`
}

type ManifestEntry struct {
	Proc   string       `yaml:"proc"`
	SizeKB int          `yaml:"sizeKB"`
	Name   string       `yaml:"name"`
	Level  string       `yaml:"level"`
	Config string       `yaml:"config"`
	Output string       `yaml:"output"`
	Report cacti.Report `yaml:"report"`
}

func (m *Manifest) Marshal() ([]byte, error) {
	out, err := yaml.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "序列化manifest出错")
	}
	return out, nil
}

func ReadManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, errors.Wrap(err, "解析manifest出错")
	}
	return m, nil
}
