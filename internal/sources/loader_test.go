package sources_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/sources"
)

const websitesYAML = `
finance:
  domestic:
    - name: Sina Finance
      url: https://finance.sina.com.cn
      type: scrapy
      list_url: https://finance.sina.com.cn/roll
      list_selector: ".list li"
      title_selector: "a"
      link_selector: "a"
      date_selector: ".time"
      encoding: gbk
      exclude_patterns: ["/ad/", "/video/"]
      max_items: "20"
    - name: Eastmoney Feed
      url: https://www.eastmoney.com
      type: rss
      rss_url: https://www.eastmoney.com/rss.xml
  international:
    - name: Rendered Markets
      url: https://markets.example.com
      type: playwright
      use_stealth: true
      wait_time: 2.5
      headless: false
      enabled: false
tech:
  general:
    - name: Tech Daily
      url: https://tech.example.com
`

func TestParse_FlattensInFileOrder(t *testing.T) {
	t.Parallel()

	list, err := sources.Parse([]byte(websitesYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := []string{"Sina Finance", "Eastmoney Feed", "Rendered Markets", "Tech Daily"}
	if len(list) != len(want) {
		t.Fatalf("len = %d, want %d", len(list), len(want))
	}
	for i, name := range want {
		if list[i].Name != name {
			t.Errorf("list[%d].Name = %q, want %q", i, list[i].Name, name)
		}
	}
}

func TestParse_StaticFields(t *testing.T) {
	t.Parallel()

	list, err := sources.Parse([]byte(websitesYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	s := list[0]
	if s.Kind != domain.KindStatic || s.Category != "finance" || s.Group != "domestic" {
		t.Errorf("kind/category/group = %s/%s/%s", s.Kind, s.Category, s.Group)
	}
	if s.ListTarget() != "https://finance.sina.com.cn/roll" {
		t.Errorf("ListTarget() = %q", s.ListTarget())
	}
	if s.Selectors.List != ".list li" || s.Selectors.Date != ".time" {
		t.Errorf("selectors = %+v", s.Selectors)
	}
	if s.Encoding != "gbk" {
		t.Errorf("Encoding = %q", s.Encoding)
	}
	if s.MaxItems != 20 {
		t.Errorf("MaxItems = %d, want 20 from a quoted value", s.MaxItems)
	}
	if len(s.ExcludePatterns) != 2 {
		t.Errorf("ExcludePatterns = %v", s.ExcludePatterns)
	}
	if !s.Enabled {
		t.Error("Enabled should default to true")
	}
}

func TestParse_FeedAndBrowser(t *testing.T) {
	t.Parallel()

	list, err := sources.Parse([]byte(websitesYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	feed := list[1]
	if feed.Kind != domain.KindFeed || feed.FeedURL != "https://www.eastmoney.com/rss.xml" {
		t.Errorf("feed = %+v", feed)
	}

	b := list[2]
	if b.Kind != domain.KindBrowser || b.Group != "international" {
		t.Errorf("browser kind/group = %s/%s", b.Kind, b.Group)
	}
	if b.Enabled {
		t.Error("enabled: false was ignored")
	}
	if !b.Browser.Stealth {
		t.Error("use_stealth not applied")
	}
	if b.Browser.WaitTime != 2500*time.Millisecond {
		t.Errorf("WaitTime = %v", b.Browser.WaitTime)
	}
	if b.Browser.Headless == nil || *b.Browser.Headless {
		t.Errorf("Headless = %v, want explicit false", b.Browser.Headless)
	}

	if list[3].Kind != domain.KindStatic {
		t.Errorf("missing type should default to static, got %s", list[3].Kind)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"top level list", "- name: x\n"},
		{"group not list", "finance:\n  domestic:\n    name: x\n"},
		{"missing url", "finance:\n  domestic:\n    - name: x\n"},
		{"unknown type", "finance:\n  domestic:\n    - name: x\n      url: https://x\n      type: carrier-pigeon\n"},
		{"duplicate name", "a:\n  b:\n    - {name: x, url: https://x}\n    - {name: x, url: https://y}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := sources.Parse([]byte(tt.yaml)); err == nil {
				t.Error("Parse() error = nil")
			}
		})
	}
}

func TestParse_UnknownTypeIsTyped(t *testing.T) {
	t.Parallel()

	_, err := sources.Parse([]byte("a:\n  b:\n    - {name: x, url: https://x, type: fax}\n"))
	if !errors.Is(err, domain.ErrUnknownKind) {
		t.Errorf("error = %v, want ErrUnknownKind", err)
	}
}

func TestParse_Empty(t *testing.T) {
	t.Parallel()

	list, err := sources.Parse(nil)
	if err != nil || len(list) != 0 {
		t.Errorf("Parse(nil) = %v, %v", list, err)
	}
}

func TestProvider_FileAndReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "websites.yaml")
	if err := os.WriteFile(path, []byte(websitesYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := sources.NewProvider(path)
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	all, _ := p.AllSources(context.Background())
	if len(all) != 4 {
		t.Fatalf("AllSources() len = %d", len(all))
	}

	got, err := p.Find("Tech Daily")
	if err != nil || got.Category != "tech" {
		t.Errorf("Find() = %+v, %v", got, err)
	}
	if _, err = p.Find("nope"); !errors.Is(err, sources.ErrNotFound) {
		t.Errorf("Find(nope) error = %v", err)
	}

	if err = os.WriteFile(path, []byte("x:\n  y:\n    - {name: only, url: https://o}\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err = p.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	all, _ = p.AllSources(context.Background())
	if len(all) != 1 || all[0].Name != "only" {
		t.Errorf("after reload = %+v", all)
	}
}

func TestProvider_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	p := sources.NewStaticProvider(domain.SourceDescriptor{Name: "a", BaseURL: "https://a", Kind: domain.KindStatic})
	first, _ := p.AllSources(context.Background())
	first[0].Name = "mutated"

	second, _ := p.AllSources(context.Background())
	if second[0].Name != "a" {
		t.Errorf("provider state leaked: %q", second[0].Name)
	}
}

func TestNewProvider_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := sources.NewProvider(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("NewProvider() error = nil for a missing file")
	}
}
