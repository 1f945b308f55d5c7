// Package selector_site is a site adapter driven entirely by CSS selectors
// from the configuration, so a new job board needs no code.
package selector_site

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/jobcrawler/internal/entity"
	"github.com/user/jobcrawler/internal/repository"
	"github.com/user/jobcrawler/pkg/config"
	"github.com/user/jobcrawler/pkg/utils"
)

var digits = regexp.MustCompile(`\d+`)

// Adapter implements repository.SiteAdapter.
type Adapter struct {
	cfg        config.SiteConfig
	base       *url.URL
	regions    []entity.Region
	businessID *regexp.Regexp
}

// New validates cfg and builds the adapter.
func New(cfg config.SiteConfig) (*Adapter, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("site %s: invalid base_url %q", cfg.Name, cfg.BaseURL)
	}
	if cfg.Selectors.Entry == "" {
		return nil, fmt.Errorf("site %s: selectors.entry is required", cfg.Name)
	}
	if len(cfg.Regions) == 0 {
		return nil, fmt.Errorf("site %s: at least one region is required", cfg.Name)
	}
	if cfg.PageParam == "" {
		cfg.PageParam = "page"
	}

	a := &Adapter{cfg: cfg, base: base}
	for _, r := range cfg.Regions {
		a.regions = append(a.regions, entity.Region{Name: r.Name, Path: r.Path})
	}
	if cfg.BusinessID != "" {
		a.businessID, err = regexp.Compile(cfg.BusinessID)
		if err != nil {
			return nil, fmt.Errorf("site %s: business_id_pattern: %w", cfg.Name, err)
		}
	}
	return a, nil
}

var _ repository.SiteAdapter = (*Adapter)(nil)

func (a *Adapter) Name() string   { return a.cfg.Name }
func (a *Adapter) Source() string { return a.cfg.Source }

// Regions returns the configured regions in order.
func (a *Adapter) Regions() []entity.Region {
	out := make([]entity.Region, len(a.regions))
	copy(out, a.regions)
	return out
}

// PageURL returns the region path resolved against the base URL, with the
// page parameter set from the second page on.
func (a *Adapter) PageURL(region entity.Region, pageIndex int) string {
	rel, err := url.Parse(region.Path)
	if err != nil {
		rel = &url.URL{Path: region.Path}
	}
	u := a.base.ResolveReference(rel)
	if pageIndex > 1 {
		q := u.Query()
		q.Set(a.cfg.PageParam, strconv.Itoa(pageIndex))
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// PageCount returns the largest number found in the pagination elements.
// A page without pagination has one page.
func (a *Adapter) PageCount(ctx context.Context, tab repository.Tab) (int, error) {
	if a.cfg.Selectors.PageCount == "" {
		return 1, nil
	}
	doc, err := document(ctx, tab)
	if err != nil {
		return 0, err
	}
	count := 1
	doc.Find(a.cfg.Selectors.PageCount).Each(func(_ int, s *goquery.Selection) {
		for _, m := range digits.FindAllString(s.Text(), -1) {
			if n, err := strconv.Atoi(m); err == nil && n > count {
				count = n
			}
		}
	})
	return count, nil
}

// Entries lists the listings on the loaded result page. Entries without a
// link are dropped.
func (a *Adapter) Entries(ctx context.Context, tab repository.Tab) ([]entity.ListingEntry, error) {
	doc, err := document(ctx, tab)
	if err != nil {
		return nil, err
	}
	pageURL := a.base
	if u, err := url.Parse(tab.URL()); err == nil && u.Host != "" {
		pageURL = u
	}

	sel := a.cfg.Selectors
	var entries []entity.ListingEntry
	doc.Find(sel.Entry).Each(func(_ int, s *goquery.Selection) {
		link := s
		if sel.EntryLink != "" {
			link = s.Find(sel.EntryLink).First()
		} else if !s.Is("a") {
			link = s.Find("a[href]").First()
		}
		href, ok := link.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		abs, err := utils.ToAbsoluteURL(pageURL, href)
		if err != nil {
			return
		}

		title := s
		if sel.EntryTitle != "" {
			title = s.Find(sel.EntryTitle).First()
		}
		entry := entity.ListingEntry{
			Title: collapse(title.Text()),
			URL:   abs,
		}
		if sel.Company != "" {
			if c, ok := s.Find(sel.Company).First().Attr("href"); ok {
				if companyURL, err := utils.ToAbsoluteURL(pageURL, c); err == nil {
					entry.CompanyURL = companyURL
				}
			}
		}
		entries = append(entries, entry)
	})
	return entries, nil
}

// Extract reads the listing body from the loaded page. Without a body
// selector, the text of <body> is used with scripts and styles removed.
func (a *Adapter) Extract(ctx context.Context, tab repository.Tab, entry entity.ListingEntry) (entity.Extraction, error) {
	doc, err := document(ctx, tab)
	if err != nil {
		return entity.Extraction{}, err
	}

	fields := make(map[string]string)
	if t := collapse(doc.Find("title").First().Text()); t != "" {
		fields["page_title"] = t
	}
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		content, _ := s.Attr("content")
		if name == "description" && content != "" {
			fields["description"] = content
		}
	})

	doc.Find("script, style, noscript").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})
	var body string
	if a.cfg.Selectors.Body != "" {
		body = collapse(doc.Find(a.cfg.Selectors.Body).Text())
	}
	if body == "" {
		body = collapse(doc.Find("body").Text())
	}

	ex := entity.Extraction{Body: body, Fields: fields}
	if a.businessID != nil {
		if m := a.businessID.FindStringSubmatch(body); m != nil {
			ex.BusinessID = m[len(m)-1]
		}
	}
	return ex, nil
}

func document(ctx context.Context, tab repository.Tab) (*goquery.Document, error) {
	html, err := tab.HTML(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", repository.ErrExtractionFailed, tab.URL(), err)
	}
	return doc, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
