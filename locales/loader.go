package locales

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

type localesFile struct {
	Locales []Locale `yaml:"locales" toml:"locales"`
}

// LoadFile reads locales from a YAML (.yml, .yaml) or TOML (.toml) file of the form
//
//	locales:
//	  - code: en_US
//	    default: true
//	  - code: en_NZ
//	    fallbacks: [en_US]
func LoadFile(path string) (*Registry, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locales file: %w", err)
	}

	var file localesFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(content, &file)
	case ".toml":
		err = toml.Unmarshal(content, &file)
	default:
		return nil, fmt.Errorf("%w: unsupported locales file extension %q", ErrInvalidLocale, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse locales file %s: %w", path, err)
	}

	return New(file.Locales...)
}
