// Package client wraps an ai.Provider with the controls needed for bulk work:
// a concurrency cap shared by every caller, adaptive capacity on throttling,
// per-request timeouts, retries with backoff and order-preserving batching.
//
//	c, err := client.New(provider, client.WithConcurrency(8))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	vectors, err := c.EmbedTexts(ctx, texts) // vectors[i] belongs to texts[i]
package client
