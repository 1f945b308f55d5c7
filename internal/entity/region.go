package entity

// Region is a named partition of a site's listings, e.g. a county.
type Region struct {
	ID   int64
	Name string
	Path string // site-relative path of the region's first result page
}
