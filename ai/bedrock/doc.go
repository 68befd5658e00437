// Package bedrock provides AI service implementations backed by Amazon Bedrock.
//
// Embeddings use InvokeModel with a per-model adapter: Titan embeds one text
// per request and reports its input token count, Cohere embeds a batch of
// texts per request. Reranking uses a Cohere rerank model through the same
// InvokeModel call.
//
// Bedrock error codes are mapped onto ai.ErrThrottled, ai.ErrTransient and
// ai.ErrPermanent.
package bedrock
