package convo

import "encoding/json"

// OrderedValues is an insertion-ordered string -> JSON value map, used for
// ConversationEvent.Metadata and config trees where key order affects
// on-disk byte-for-byte stability (round-trip law in spec §8).
type OrderedValues struct {
	keys   []string
	values map[string]any
}

func NewOrderedValues() *OrderedValues {
	return &OrderedValues{values: map[string]any{}}
}

func (o *OrderedValues) IsEmpty() bool { return o == nil || len(o.keys) == 0 }

func (o *OrderedValues) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

func (o *OrderedValues) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	v, ok := o.values[key]
	return v, ok
}

// Set inserts or overwrites key, preserving original position on overwrite.
func (o *OrderedValues) Set(key string, value any) {
	if _, exists := o.values[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.values[key] = value
}

func (o *OrderedValues) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Extend merges other into o, last-writer-wins per key, used for merging
// per-part and per-flush metadata in convo/builder.
func (o *OrderedValues) Extend(other *OrderedValues) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		o.Set(k, other.values[k])
	}
}

func (o *OrderedValues) Clone() *OrderedValues {
	out := NewOrderedValues()
	if o == nil {
		return out
	}
	for _, k := range o.keys {
		out.Set(k, o.values[k])
	}
	return out
}

func (o OrderedValues) MarshalJSON() ([]byte, error) {
	if len(o.keys) == 0 {
		return []byte("{}"), nil
	}
	var buf []byte
	buf = append(buf, '{')
	for i, k := range o.keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(o.values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

func (o *OrderedValues) UnmarshalJSON(data []byte) error {
	o.keys = nil
	o.values = map[string]any{}
	dec := json.NewDecoder(jsonReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key := keyTok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return err
		}
		o.Set(key, v)
	}
	return nil
}
