// internal/edgeserver/etag.go
//
// Content-derived ETag: a weak hash over the ranked broker ids, the
// country, and the current hour.  Hour granularity means validators roll
// over at most 24 times a day while ranking changes still bust
// conditional requests within the hour that follows a cache refresh.
package edgeserver

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/traderanked/edge/internal/broker"
)

// pageETag computes the weak validator for one personalized response.
func pageETag(brokers []broker.Broker, country string, now time.Time) string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", country, now.UTC().Truncate(time.Hour).Unix())
	for _, b := range brokers {
		fmt.Fprintf(h, ":%d", b.ID)
	}
	return fmt.Sprintf(`W/"%016x"`, h.Sum64())
}
