package main

import "sync"

// resolveAttachments reads every uri through provider concurrently,
// bounded by a fixed-size semaphore so resolving a large attachment set
// (e.g. a directory of files for a query) can't spawn one goroutine per
// file (spec §5's bounded worker pool for CPU-bound attachment work).
// Results preserve the input order.
func resolveAttachments(provider AttachmentProvider, cwd string, uris []string, concurrency int) ([]Attachment, []error) {
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]Attachment, len(uris))
	errs := make([]error, len(uris))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, uri := range uris {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, uri string) {
			defer wg.Done()
			defer func() { <-sem }()
			att, err := provider.Get(cwd, uri)
			results[i] = att
			errs[i] = err
		}(i, uri)
	}
	wg.Wait()

	return results, errs
}
