package reconciler

import (
	"context"

	"github.com/openagenda-tools/uniqloc/pkg/errors"
	"github.com/openagenda-tools/uniqloc/pkg/logging"
)

// collector pages through a collection.
type collector struct {
	source   EventSource
	pageSize int
}

func newCollector(source EventSource, pageSize int) *collector {
	return &collector{source: source, pageSize: pageSize}
}

// collect fetches every page of a collection until an empty page. On a fetch
// failure it returns the events gathered so far along with a *errors.FetchError.
func (c *collector) collect(ctx context.Context, col Collection) ([]Event, int, error) {
	logger := logging.FromContext(ctx)

	var (
		events []Event
		pages  int
	)
	for offset := 0; ; offset += c.pageSize {
		if err := ctx.Err(); err != nil {
			return events, pages, err
		}

		page, err := c.source.ListEvents(ctx, col.ID, offset, c.pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return events, pages, ctx.Err()
			}
			return events, pages, errors.NewFetchError(col.ID, offset, err)
		}
		pages++
		if len(page) == 0 {
			return events, pages, nil
		}

		for _, ev := range page {
			if ev.CollectionID == "" {
				ev.CollectionID = col.ID
			}
			events = append(events, ev)
		}
		logger.Debug().
			Int("offset", offset).
			Int("page_events", len(page)).
			Int("total_events", len(events)).
			Msg("Fetched page")
	}
}
