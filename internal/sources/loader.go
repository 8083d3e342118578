// Package sources loads source descriptors from the websites YAML file.
//
// The file nests sources as category -> group -> list:
//
//	finance:
//	  domestic:
//	    - name: Example
//	      url: https://example.com
//	      type: scrapy
//	      list_selector: ".news-list li"
package sources

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/fincrawl/internal/domain"
)

// rawSource mirrors one entry of the websites file.
type rawSource struct {
	Name            string   `yaml:"name"`
	URL             string   `yaml:"url"`
	Type            string   `yaml:"type"`
	ListURL         string   `yaml:"list_url"`
	ListSelector    string   `yaml:"list_selector"`
	TitleSelector   string   `yaml:"title_selector"`
	LinkSelector    string   `yaml:"link_selector"`
	DateSelector    string   `yaml:"date_selector"`
	RSSURL          string   `yaml:"rss_url"`
	Encoding        string   `yaml:"encoding"`
	ExcludePatterns []string `yaml:"exclude_patterns"`
	MaxItems        int      `yaml:"max_items"`
	Enabled         *bool    `yaml:"enabled"`
	UseStealth      bool     `yaml:"use_stealth"`
	ProxyURL        string   `yaml:"proxy_url"`
	WaitTime        float64  `yaml:"wait_time"`
	Headless        *bool    `yaml:"headless"`
}

// defaultKind applies to entries that omit type.
const defaultKind = "scrapy"

// LoadFile reads and parses a websites file.
func LoadFile(path string) ([]domain.SourceDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	return Parse(data)
}

// Parse decodes websites YAML, preserving file order.
func Parse(data []byte) ([]domain.SourceDescriptor, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse sources yaml: %w", err)
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return nil, errors.New("sources yaml: top level must be a mapping of categories")
	}

	var out []domain.SourceDescriptor
	seen := make(map[string]struct{})

	for i := 0; i+1 < len(doc.Content); i += 2 {
		category := doc.Content[i].Value
		groups := doc.Content[i+1]
		if groups.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("sources yaml: category %q must be a mapping", category)
		}

		for j := 0; j+1 < len(groups.Content); j += 2 {
			group := groups.Content[j].Value
			list := groups.Content[j+1]
			if list.Kind != yaml.SequenceNode {
				return nil, fmt.Errorf("sources yaml: %s.%s must be a list", category, group)
			}

			for _, entry := range list.Content {
				src, err := decodeEntry(entry, category, group)
				if err != nil {
					return nil, err
				}
				if _, dup := seen[src.Name]; dup {
					return nil, fmt.Errorf("sources yaml: duplicate source name %q", src.Name)
				}
				seen[src.Name] = struct{}{}
				out = append(out, src)
			}
		}
	}

	return out, nil
}

func decodeEntry(node *yaml.Node, category, group string) (domain.SourceDescriptor, error) {
	var generic map[string]any
	if err := node.Decode(&generic); err != nil {
		return domain.SourceDescriptor{}, fmt.Errorf("sources yaml line %d: %w", node.Line, err)
	}

	var raw rawSource
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "yaml",
		Result:           &raw,
		WeaklyTypedInput: true,
		ZeroFields:       true,
	})
	if err != nil {
		return domain.SourceDescriptor{}, err
	}
	if err = decoder.Decode(generic); err != nil {
		return domain.SourceDescriptor{}, fmt.Errorf("sources yaml line %d: %w", node.Line, err)
	}

	src, err := raw.toDescriptor(category, group)
	if err != nil {
		return domain.SourceDescriptor{}, fmt.Errorf("sources yaml line %d: %w", node.Line, err)
	}
	return src, nil
}

func (r rawSource) toDescriptor(category, group string) (domain.SourceDescriptor, error) {
	kindName := r.Type
	if kindName == "" {
		kindName = defaultKind
	}
	kind, err := domain.ParseSourceKind(kindName)
	if err != nil {
		return domain.SourceDescriptor{}, err
	}

	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}

	src := domain.SourceDescriptor{
		Name:     r.Name,
		Category: category,
		Group:    group,
		Kind:     kind,
		BaseURL:  r.URL,
		ListURL:  r.ListURL,
		FeedURL:  r.RSSURL,
		Encoding: r.Encoding,
		Selectors: domain.Selectors{
			List:  r.ListSelector,
			Title: r.TitleSelector,
			Link:  r.LinkSelector,
			Date:  r.DateSelector,
		},
		ExcludePatterns: r.ExcludePatterns,
		MaxItems:        r.MaxItems,
		Enabled:         enabled,
		Browser: domain.BrowserOptions{
			Stealth:  r.UseStealth,
			Proxy:    r.ProxyURL,
			WaitTime: time.Duration(r.WaitTime * float64(time.Second)),
			Headless: r.Headless,
		},
	}

	if err = src.Validate(); err != nil {
		return domain.SourceDescriptor{}, err
	}
	return src, nil
}
