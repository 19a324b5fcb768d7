package document

import (
	"bytes"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// TOML tables are unordered, so documents are stored as an array of tables:
//
//	[[entry]]
//	key = "Music"
//	value = [".mp3", ".flac"]
type tomlEntry[V any] struct {
	Key   string `toml:"key"`
	Value V      `toml:"value"`
}

type tomlDocument[V any] struct {
	Entries []tomlEntry[V] `toml:"entry"`
}

func decodeTOML[V any](data []byte) ([]Entry[V], error) {
	var doc tomlDocument[V]
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}

	entries := make([]Entry[V], 0, len(doc.Entries))
	for i, e := range doc.Entries {
		if e.Key == "" {
			return nil, fmt.Errorf("entry %d has no key", i+1)
		}
		entries = append(entries, Entry[V]{Key: e.Key, Value: e.Value})
	}
	return entries, nil
}

func encodeTOML[V any](entries []Entry[V]) ([]byte, error) {
	doc := tomlDocument[V]{Entries: make([]tomlEntry[V], 0, len(entries))}
	for _, e := range entries {
		doc.Entries = append(doc.Entries, tomlEntry[V]{Key: e.Key, Value: e.Value})
	}
	return toml.Marshal(doc)
}
