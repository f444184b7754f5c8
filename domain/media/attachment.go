package media

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Attachment is a host-managed media record: an original file plus the
// renditions the host generated for it.
type Attachment struct {
	ID       int64     `json:"id"`
	Path     string    `json:"path"`
	MimeType string    `json:"mime_type,omitempty"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Metadata mirrors the host's generated attachment metadata.
type Metadata struct {
	// File is the upload-relative path of the original, e.g. "2024/01/a.png"
	File   string             `json:"file"`
	Width  int                `json:"width,omitempty"`
	Height int                `json:"height,omitempty"`
	Sizes  map[string]Variant `json:"sizes,omitempty"`

	// order holds the size names as they appeared in the decoded document
	order []string
}

// Variant is a derived rendition such as a thumbnail.
type Variant struct {
	File     string `json:"file"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	MimeType string `json:"mime-type,omitempty"`
}

// NamedVariant pairs a variant with its size name.
type NamedVariant struct {
	Name string
	Variant
}

// UnmarshalJSON keeps the order in which the host listed the sizes. An empty
// JSON array is accepted for sizes since the host encodes empty maps that way.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	var wire struct {
		File   string          `json:"file"`
		Width  int             `json:"width"`
		Height int             `json:"height"`
		Sizes  json.RawMessage `json:"sizes"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	sizes, order, err := decodeSizes(wire.Sizes)
	if err != nil {
		return err
	}

	*m = Metadata{File: wire.File, Width: wire.Width, Height: wire.Height, Sizes: sizes, order: order}
	return nil
}

// MarshalJSON writes sizes in OrderedSizes order so the order survives a
// trip through the queue.
func (m Metadata) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"file":`)
	file, err := json.Marshal(m.File)
	if err != nil {
		return nil, err
	}
	buf.Write(file)
	if m.Width != 0 {
		fmt.Fprintf(&buf, `,"width":%d`, m.Width)
	}
	if m.Height != 0 {
		fmt.Fprintf(&buf, `,"height":%d`, m.Height)
	}

	if sizes := m.OrderedSizes(); len(sizes) > 0 {
		buf.WriteString(`,"sizes":{`)
		for i, size := range sizes {
			if i > 0 {
				buf.WriteByte(',')
			}
			name, err := json.Marshal(size.Name)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(size.Variant)
			if err != nil {
				return nil, err
			}
			buf.Write(name)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeSizes(raw json.RawMessage) (map[string]Variant, []string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("[]")) {
		return nil, nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("sizes: expected object, got %v", tok)
	}

	sizes := make(map[string]Variant)
	var order []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		name, _ := tok.(string)

		var v Variant
		if err := dec.Decode(&v); err != nil {
			return nil, nil, fmt.Errorf("sizes.%s: %w", name, err)
		}
		if _, seen := sizes[name]; !seen {
			order = append(order, name)
		}
		sizes[name] = v
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}

	return sizes, order, nil
}

// OrderedSizes returns the variants in the order the host listed them.
// Metadata built in code carries no such order and falls back to size-name
// order so that the same metadata always yields the same sequence.
func (m *Metadata) OrderedSizes() []NamedVariant {
	if m == nil || len(m.Sizes) == 0 {
		return nil
	}

	names := m.order
	if !sameNames(names, m.Sizes) {
		names = make([]string, 0, len(m.Sizes))
		for name := range m.Sizes {
			names = append(names, name)
		}
		sort.Strings(names)
	}

	out := make([]NamedVariant, 0, len(names))
	for _, name := range names {
		out = append(out, NamedVariant{Name: name, Variant: m.Sizes[name]})
	}
	return out
}

// sameNames reports whether order still lists exactly the keys of sizes.
func sameNames(order []string, sizes map[string]Variant) bool {
	if len(order) != len(sizes) {
		return false
	}
	for _, name := range order {
		if _, ok := sizes[name]; !ok {
			return false
		}
	}
	return true
}

// KeysOf returns the remote keys of refs in order.
func KeysOf(refs []FileRef) []string {
	keys := make([]string, len(refs))
	for i, ref := range refs {
		keys[i] = ref.Key
	}
	return keys
}

// FileRef ties one local file to the remote key it is mirrored under.
type FileRef struct {
	LocalPath   string `json:"local_path"`
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	// Variant is the size name, empty for the original
	Variant string `json:"variant,omitempty"`
}
