package netsuite

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Row is one SuiteQL result row. Column names are lower case.
type Row map[string]any

type suiteQLRequest struct {
	Q string `json:"q"`
}

type suiteQLResponse struct {
	Items   []Row `json:"items"`
	HasMore bool  `json:"hasMore"`
}

var transientHeader = http.Header{"Prefer": []string{"transient"}}

// Query runs a SuiteQL statement and returns up to limit rows from the
// first page.
func (c *Client) Query(ctx context.Context, q string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 1000
	}
	var resp suiteQLResponse
	endpoint := "/query/v1/suiteql?limit=" + strconv.Itoa(limit)
	if _, err := c.remote.DoJSON(ctx, http.MethodPost, endpoint, suiteQLRequest{Q: q}, &resp, transientHeader); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Quote renders s as a SuiteQL string literal.
func Quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// String returns the column as text.
func (r Row) String(col string) string {
	v, ok := r[col]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns the column as an integer, truncating fractions.
func (r Row) Int(col string) int {
	f, err := strconv.ParseFloat(r.String(col), 64)
	if err != nil {
		return 0
	}
	return int(f)
}

// Bool reads the ERP's "T"/"F" flags.
func (r Row) Bool(col string) bool {
	switch strings.ToUpper(r.String(col)) {
	case "T", "TRUE":
		return true
	}
	return false
}

func (r Row) customer() Customer {
	return Customer{
		ID:          r.String("id"),
		Email:       r.String("email"),
		Phone:       r.String("phone"),
		CompanyName: r.String("companyname"),
		FirstName:   r.String("firstname"),
		LastName:    r.String("lastname"),
		IsPerson:    r.Bool("isperson"),
		ParentID:    r.String("parent"),
	}
}
