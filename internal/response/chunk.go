package response

import "github.com/go-omads/omads/internal/wire"

// SplitLargeObject splits payload into chunks no larger than maxChunk
// bytes, returning one wire.Item per chunk with MoreData set on all but the
// last (spec §4.6 "large objects emit chunks with MoreData set on all but
// the last"). Only the first chunk carries the declared total Size; the
// glossary's "large object" is reassembled by the peer's StorageBuffer.
func SplitLargeObject(target, source string, meta wire.ItemMeta, payload []byte, maxChunk int64) []wire.Item {
	if maxChunk <= 0 || int64(len(payload)) <= maxChunk {
		m := meta
		m.Size = int64(len(payload))
		return []wire.Item{{Target: target, Source: source, Meta: &m, Data: payload}}
	}

	total := int64(len(payload))
	var chunks []wire.Item
	for offset := int64(0); offset < total; offset += maxChunk {
		end := offset + maxChunk
		if end > total {
			end = total
		}
		item := wire.Item{
			Target:   target,
			Source:   source,
			Data:     payload[offset:end],
			MoreData: end < total,
		}
		if offset == 0 {
			m := meta
			m.Size = total
			item.Meta = &m
		}
		chunks = append(chunks, item)
	}
	return chunks
}
