package api

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"strconv"

	"github.com/tutaexport/tutaexport/internal/apierrors"
)

// Direction controls which way a LIST-type aggregate is walked relative
// to startID.
type Direction int

const (
	DirectionAsc Direction = iota
	DirectionDesc
)

func (d Direction) queryValue() string {
	if d == DirectionDesc {
		return "false"
	}
	return "true"
}

// defaultPageLimit matches spec.md §4.5's default page size.
const defaultPageLimit = 1000

// ListRange fetches one page of a LIST-type aggregate (e.g. the mails
// in a folder), starting after startID in the given direction. Pass
// "min" (or "max" for [DirectionDesc]) as startID to begin at either
// end of the list.
func (c *Client) ListRange(ctx context.Context, listID, startID string, dir Direction, limit int) ([]RawEntity, error) {
	if limit <= 0 {
		limit = defaultPageLimit
	}

	path := fmt.Sprintf("/rest/tutanota/mail/%s?start=%s&count=%s&reverse=%s",
		url.PathEscape(listID),
		url.QueryEscape(startID),
		url.QueryEscape(strconv.Itoa(limit)),
		url.QueryEscape(dir.queryValue()),
	)

	var page listPage
	if err := c.Do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, apierrors.WithResourceType(err, apierrors.ResourceMail)
	}
	return page.Elements, nil
}

// elementID reads an entity's "_id" field; entities missing it (a
// malformed page) are reported through the iterator's error slot
// rather than silently skipped.
func elementID(e RawEntity) (string, bool) {
	raw, ok := e["_id"]
	if !ok {
		return "", false
	}
	var id string
	if err := json.Unmarshal(raw, &id); err != nil {
		return "", false
	}
	return id, true
}

// ListAll lazily walks every element of a LIST-type aggregate in
// ascending order, repeatedly calling [Client.ListRange] and stopping
// once a page returns fewer than limit elements. Consumers range over
// it with the two-value range-over-func form and must check the error
// on every iteration; a non-nil error terminates the sequence.
//
// Element IDs are tracked across pages to enforce spec.md §4.5/§3's
// ordering guarantee: a page-boundary ID repeated from the previous
// page is suppressed rather than yielded twice, and any element whose
// ID is less than the last yielded ID is a hard error (the list is
// only ever walked ascending, so a decreasing ID means the server
// broke monotonicity).
func (c *Client) ListAll(ctx context.Context, listID string, limit int) iter.Seq2[RawEntity, error] {
	return func(yield func(RawEntity, error) bool) {
		startID := "min"
		var lastYielded string
		haveLast := false

		for {
			page, err := c.ListRange(ctx, listID, startID, DirectionAsc, limit)
			if err != nil {
				yield(nil, err)
				return
			}
			if len(page) == 0 {
				return
			}

			advanced := false
			for _, element := range page {
				id, ok := elementID(element)
				if !ok {
					yield(nil, fmt.Errorf("list %s: page element missing _id", listID))
					return
				}
				if haveLast {
					if id == lastYielded {
						continue // page-boundary ID repeated from the previous page
					}
					if id < lastYielded {
						yield(nil, fmt.Errorf("list %s: element %q out of order after %q", listID, id, lastYielded))
						return
					}
				}
				if !yield(element, nil) {
					return
				}
				lastYielded = id
				haveLast = true
				advanced = true
			}

			if len(page) < limit {
				return
			}
			if !advanced {
				yield(nil, fmt.Errorf("list %s: server returned repeated boundary id %q", listID, lastYielded))
				return
			}
			startID = lastYielded
		}
	}
}
