package pagination

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"net/url"

	"github.com/rs/zerolog/log"
)

// Getter is the transport capability the pager needs: an authenticated
// GET that decodes a JSON response and turns bad statuses into errors.
// *client.Client satisfies it.
type Getter interface {
	GetJSON(ctx context.Context, pathOrURL string, params url.Values, out any) error
}

// page is one wire response from a paginated collection. A null or
// absent next means the collection is exhausted.
type page struct {
	Data []json.RawMessage `json:"data"`
	Next string            `json:"next"`
}

// Unpaginate presents a paginated collection as one lazy sequence of raw
// records. params apply to the first request only; continuation state is
// embedded in the server's next links, which are requested unmodified.
// Each range performs fresh requests, so the sequence reflects the
// collection at iteration time and is not restartable. A fetch or decode
// error is yielded once with a nil record and ends the sequence.
func Unpaginate(ctx context.Context, api Getter, pathOrURL string, params url.Values) iter.Seq2[json.RawMessage, error] {
	logger := log.With().Str("component", "pagination").Logger()

	return func(yield func(json.RawMessage, error) bool) {
		target := pathOrURL
		pages := 0
		records := 0

		for {
			var p page
			if err := api.GetJSON(ctx, target, params, &p); err != nil {
				yield(nil, err)
				return
			}
			params = nil
			pages++

			logger.Debug().
				Str("url", target).
				Int("records", len(p.Data)).
				Bool("has_next", p.Next != "").
				Msg("Fetched page")

			// Drain the full page before fetching the next one.
			for _, record := range p.Data {
				if !yield(record, nil) {
					return
				}
				records++
			}

			if p.Next == "" {
				logger.Debug().
					Int("pages", pages).
					Int("records", records).
					Msg("Collection exhausted")
				return
			}
			target = p.Next
		}
	}
}

// Collect materializes an entire collection, unmarshaling every record
// into T. It is the helper behind the resource layer's list operations.
func Collect[T any](ctx context.Context, api Getter, pathOrURL string, params url.Values) ([]T, error) {
	var out []T
	for record, err := range Unpaginate(ctx, api, pathOrURL, params) {
		if err != nil {
			return nil, err
		}
		var item T
		if err := json.Unmarshal(record, &item); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, item)
	}
	return out, nil
}
