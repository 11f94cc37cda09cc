// Package ingestion loads, splits, embeds and stores documents.
//
// A Pipeline runs the whole flow for one Config:
//
//	provider, _ := openai.NewProvider(ai.NewConfig(ai.WithAPIKey(key)))
//	p, err := ingestion.NewPipeline(provider.Embedder(), ingestion.ConnectURI(uri))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	handle, err := p.Run(ctx, ingestion.DefaultConfig())
//
// Failures are returned as *StageError and wrap one of the core error
// sentinels, so callers can test them with errors.Is and report the stage.
//
// A Sink can also be used directly to embed and store chunks produced
// elsewhere.
package ingestion
