package crawler

// ProgressStatus labels one crawl progress event.
type ProgressStatus string

const (
	ProgressStarting  ProgressStatus = "starting"
	ProgressCrawling  ProgressStatus = "crawling"
	ProgressError     ProgressStatus = "error"
	ProgressCompleted ProgressStatus = "completed"
	ProgressCancelled ProgressStatus = "cancelled"
)

// ProgressEvent reports crawl progress after each processed page and at
// the crawl boundaries. Events describe work that has fully happened,
// never work in flight.
type ProgressEvent struct {
	Status        ProgressStatus `json:"status"`
	Message       string         `json:"message,omitempty"`
	PagesCrawled  int            `json:"pages_crawled"`
	ProductsFound int            `json:"products_found"`
}

// ProgressSink receives progress events. Implementations must not block;
// the crawl loop calls Publish inline.
type ProgressSink interface {
	Publish(event ProgressEvent)
}

// ProgressFunc adapts a function to a ProgressSink.
type ProgressFunc func(event ProgressEvent)

func (f ProgressFunc) Publish(event ProgressEvent) { f(event) }

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Publish(ProgressEvent) {}
