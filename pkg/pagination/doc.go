// Package pagination turns logical resource requests into concrete page URLs
// for the KOS API and detects whether a fetched page has a successor.
//
// KOS pages resources with offset/limit query parameters and advertises a
// following page through an Atom <link rel="next"/>. The Engine keeps one page
// cursor per resource name; every attempt built for a resource takes the
// current cursor value as its page number and advances it:
//
//	engine := pagination.NewEngine("https://kos.example.com/api/3", "B232")
//	first := engine.BuildAttempt("courses", map[string]string{"limit": "100"}, nil)
//	// first.Page == 0, first.URL == ".../courses?lang=cs&limit=100&multilang=false&offset=0&sem=B232"
//	second := engine.BuildAttempt("courses", map[string]string{"limit": "100"}, nil)
//	// second.Page == 1, offset=100
//
// Query parameters are always encoded in sorted key order so that the same
// logical page yields byte-identical URLs, which the response cache relies on.
package pagination
