package universe

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/skilltrack/internal/contracts"
)

// Entry describes one universe of the catalog
type Entry struct {
	Name      string   `yaml:"name"`
	Aliases   []string `yaml:"aliases"`
	SourceURL string   `yaml:"source_url"`
}

// File is the on-disk catalog layout (UNIVERSE_CATALOG)
type File struct {
	Universes []Entry `yaml:"universes"`
}

// Catalog resolves artifact path segments and user input to universes
// ⭐ SSOT: 유니버스 별칭 테이블은 여기서만
type Catalog struct {
	aliases map[string]contracts.Universe
	sources map[contracts.Universe]string
}

// 기본 카탈로그: 고정 유니버스 + 대표 별칭
var defaultEntries = []Entry{
	{
		Name:      string(contracts.UniverseSP500),
		Aliases:   []string{"sp500", "s&p500", "s&p 500", "spx", "gspc", "snp500"},
		SourceURL: "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies",
	},
	{
		Name:      string(contracts.UniverseDOW30),
		Aliases:   []string{"dow30", "dow", "dji", "djia", "dowjones"},
		SourceURL: "https://en.wikipedia.org/wiki/Dow_Jones_Industrial_Average",
	},
	{
		Name:      string(contracts.UniverseNASDAQ100),
		Aliases:   []string{"nasdaq100", "nasdaq-100", "ndx", "nq100"},
		SourceURL: "https://en.wikipedia.org/wiki/Nasdaq-100",
	},
}

// DefaultCatalog returns the built-in catalog
func DefaultCatalog() *Catalog {
	c := &Catalog{
		aliases: make(map[string]contracts.Universe),
		sources: make(map[contracts.Universe]string),
	}
	for _, e := range defaultEntries {
		_ = c.add(e)
	}
	return c
}

// LoadCatalog merges a YAML catalog file onto the defaults.
// An empty path returns the defaults.
// KnownFields(true): 오타/미사용 필드는 즉시 실패
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe catalog: %w", err)
	}

	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode universe catalog %s: %w", path, err)
	}

	for _, e := range f.Universes {
		if err := c.add(e); err != nil {
			return nil, fmt.Errorf("universe catalog %s: %w", path, err)
		}
	}
	return c, nil
}

func (c *Catalog) add(e Entry) error {
	u := contracts.ParseUniverse(e.Name)
	if u == contracts.UniverseUnknown || u == contracts.UniverseAll {
		return fmt.Errorf("unknown universe %q", e.Name)
	}

	c.aliases[aliasKey(string(u))] = u
	for _, a := range e.Aliases {
		key := aliasKey(a)
		if key == "" {
			continue
		}
		if prev, ok := c.aliases[key]; ok && prev != u {
			return fmt.Errorf("alias %q maps to both %s and %s", a, prev, u)
		}
		c.aliases[key] = u
	}
	if e.SourceURL != "" {
		c.sources[u] = e.SourceURL
	}
	return nil
}

// Resolve maps a name or alias to a universe; unknown names give UNKNOWN
func (c *Catalog) Resolve(name string) contracts.Universe {
	if u, ok := c.aliases[aliasKey(name)]; ok {
		return u
	}
	return contracts.UniverseUnknown
}

// SourceURL returns the constituents page of a universe, if any
func (c *Catalog) SourceURL(u contracts.Universe) (string, bool) {
	url, ok := c.sources[u]
	return url, ok
}

// Universes returns the universes that have a constituents source, sorted
func (c *Catalog) Universes() []contracts.Universe {
	out := make([]contracts.Universe, 0, len(c.sources))
	for u := range c.sources {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Mapper returns a pure path → universe function. The universe is the path
// segment right after the first marker directory (…/predictions/<UNIVERSE>/…).
func (c *Catalog) Mapper(marker string) contracts.UniverseMapper {
	return func(path string) contracts.Universe {
		parts := strings.Split(filepath.ToSlash(path), "/")
		for i, p := range parts {
			if p == marker && i+1 < len(parts)-1 {
				return c.Resolve(parts[i+1])
			}
		}
		return contracts.UniverseUnknown
	}
}

// aliasKey lowercases and keeps only letters and digits ("S&P 500" → "sp500")
func aliasKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
