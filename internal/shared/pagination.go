package shared

// Page is a limit/offset window over a remote listing.
type Page struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// NewPage clamps limit into (0, max] falling back to def, and offset to >= 0.
func NewPage(limit, offset, def, max int) Page {
	if limit <= 0 {
		limit = def
	}
	if max > 0 && limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}
