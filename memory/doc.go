// Package memory provides a local vector store for conversational
// recall. It stores past exchanges (user message + assistant reply) so
// the assistant can bring earlier context back into the prompt.
//
// Architecture:
//   - Store: vector storage backend (chromem-go locally)
//   - Embedder: text-to-vector conversion (ONNX offline, mock for tests)
//   - Manager: orchestrates retrieval and recording
//
// Integration:
//   - RETRIEVE phase: load relevant exchanges before generation
//   - RECORD phase: store the new exchange after generation completes
//
// Retrieval output is plain text sized for the prompt's context slice;
// the token budget upstream does the final trimming.
package memory
