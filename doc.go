// Package tapedeck records web pages. Every session owns a private display
// server, audio server, message bus, browser and media pipelines; the
// registry starts and stops them in a fixed order so that recordings are
// always finalized.
//
// End-users typically interact with the recorder via the high-level Service
// façade exposed by the root package:
//
//	cfg, _ := tapedeck.LoadConfig(ctx, "file:///etc/tapedeck.yaml")
//	srv, _ := tapedeck.New(cfg)
//	_ = srv.Start(ctx)
//	_ = srv.Record(ctx, 0, "https://example.com")
//	...
//	_ = srv.Stop(ctx, 0)
//	_ = srv.Shutdown(ctx)
package tapedeck
