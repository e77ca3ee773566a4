package id

import "github.com/rs/xid"

// New returns a sortable, URL-safe identifier for work items.
func New() string {
	return xid.New().String()
}
