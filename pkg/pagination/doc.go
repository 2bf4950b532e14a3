// Package pagination walks server-paginated collections as single lazy
// sequences.
//
// The platform pages every list endpoint with a uniform envelope:
//
//	GET <collection-url>?<initial-params>
//	200 OK { "data": [ <record>, ... ], "next": "<url-or-null>" }
//
// Unpaginate follows the next links until they run out, yielding every
// record in server order. Query parameters apply to the first request
// only; the server embeds continuation state in each next link, so next
// links are requested with no extra parameters.
//
// Example usage:
//
//	for record, err := range pagination.Unpaginate(ctx, api, "projects/", nil) {
//		if err != nil {
//			return err
//		}
//		// unmarshal record
//	}
//
// Records stream page by page: a full page is buffered, drained, and
// only then is the next page fetched. A transport error aborts the
// sequence; this layer performs no retries of its own.
package pagination
