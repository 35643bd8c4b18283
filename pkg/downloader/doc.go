// Package downloader drives paginated KOS resources to completion.
//
// A Downloader owns a FIFO queue of page attempts. Submit translates a
// ResourceRequest into the next page of its resource; Run drains the queue,
// answering attempts from the cache when possible and otherwise fetching them
// through a Transport with at most Config.MaxConnections fetches in flight.
//
// Each outcome goes through the Classifier:
//
//	transport error        -> fatal, Run returns it
//	non-2xx status         -> retry while the ledger allows, then drop the page
//	unparsable body        -> retry while the ledger allows, then fatal
//	2xx with a valid feed  -> cache, schedule the next page, call the Handler
//
// Basic usage:
//
//	kos, _ := client.New(client.DefaultConfig(user, password))
//	d, err := downloader.New(downloader.Config{
//		BaseURL:        "https://kos.example.com/api/3",
//		Semester:       "B232",
//		MaxConnections: 8,
//	}, kos, cache.NewDiskStore("var/cache", logger), logger)
//	if err != nil {
//		return err
//	}
//
//	d.Submit(&downloader.ResourceRequest{
//		Resource: "courses",
//		Handler: func(doc *feed.Document, req *downloader.ResourceRequest, page int) {
//			for _, e := range doc.Entries() {
//				fmt.Println(e.Code(), e.Title())
//			}
//		},
//	})
//	err = d.Run(ctx)
package downloader
