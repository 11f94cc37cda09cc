// Package splitter divides documents into overlapping chunks.
//
// Splitting is delegated to the langchaingo recursive character splitter,
// which tries paragraph, line, word and character boundaries in turn. Lengths
// are measured in Unicode code points. Each chunk records its start_index, the
// code point offset in the parent document where the chunk text begins.
package splitter
