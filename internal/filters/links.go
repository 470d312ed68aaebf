package filters

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/boutdepapier/dynamicfilters/pkg/filter"
)

// Links holds the URLs of the filter actions of one entity listing.
type Links struct {
	Listing string `json:"listing"`
	Add     string `json:"add_filter"`
	Save    string `json:"save_filter"`
	Delete  string `json:"delete_filter,omitempty"`
	Clear   string `json:"clear_filter"`
	// Load activates a preset when its id is appended.
	Load string `json:"load_preset"`
}

// NewLinks builds the action URLs of the entity listing mounted under prefix.
func NewLinks(prefix, namespace, entity string, params filter.ParamNames) Links {
	if params == (filter.ParamNames{}) {
		params = filter.DefaultParamNames()
	}
	base := ListingPath(prefix, namespace, entity)

	return Links{
		Listing: base,
		Add:     base + "add_filter/",
		Save:    base + "save_filter/",
		Clear:   base + "clear_filter/",
		Load:    base + "save_filter/?" + url.QueryEscape(params.Load) + "=",
	}
}

// ListingPath returns "<prefix>/<namespace>/<entity>/" with a lowercase
// entity name.
func ListingPath(prefix, namespace, entity string) string {
	joined := path.Join("/", prefix, namespace, strings.ToLower(entity))
	return joined + "/"
}

// ForSet returns a copy with the delete URL of filter set id.
func (l Links) ForSet(id uint) Links {
	if l.Listing == "" {
		return l
	}
	l.Delete = fmt.Sprintf("%sdelete_filter/%d/", l.Listing, id)
	return l
}
