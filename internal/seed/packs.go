package seed

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed packs/*.yml
var packFS embed.FS

// WordPack is an embedded theme pack shipped with the server. Packs are
// seeded as public approved themes so rooms work out of the box.
type WordPack struct {
	Title string   `yaml:"titulo"`
	Code  string   `yaml:"codigo"`
	Words []string `yaml:"palavras"`
}

// LoadPacks parses every embedded word pack.
func LoadPacks() ([]WordPack, error) {
	entries, err := packFS.ReadDir("packs")
	if err != nil {
		return nil, fmt.Errorf("read packs dir: %w", err)
	}

	packs := make([]WordPack, 0, len(entries))
	for _, entry := range entries {
		raw, err := packFS.ReadFile("packs/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("read pack %s: %w", entry.Name(), err)
		}

		var pack WordPack
		if err := yaml.Unmarshal(raw, &pack); err != nil {
			return nil, fmt.Errorf("parse pack %s: %w", entry.Name(), err)
		}
		if pack.Title == "" || len(pack.Code) != 6 || len(pack.Words) == 0 {
			return nil, fmt.Errorf("pack %s is malformed", entry.Name())
		}
		packs = append(packs, pack)
	}
	return packs, nil
}
