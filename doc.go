// Package suggest runs autocomplete fetch cycles in-process.
//
// Sources describe what they want fetched for a query; the client batches the
// descriptions of one cycle per backend, executes them in a single round-trip
// each and hands every source back exactly its own results.
//
//	client, _ := suggest.New(ctx,
//	    suggest.WithValkey("catalog", "localhost:6379", ""),
//	    suggest.WithSearchSource("products", "catalog",
//	        suggest.Query{Collection: "products", Params: map[string]string{"hitsPerPage": "5"}},
//	    ),
//	    suggest.WithStaticSource("categories", []suggest.Item{{"label": "Shoes"}}),
//	)
//	defer client.Close()
//
//	collections, _ := client.Suggest(ctx, "sho")
//
// Interactive callers keep a Session so stale cycles are discarded and the
// stalled status is reported while a slow backend answers:
//
//	s := client.NewSession()
//	state, err := s.Input(ctx, "sho")
package suggest
