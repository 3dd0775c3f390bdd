package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the server-side pagination envelope used by paginated endpoints
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether the server advertised another page
func (p *Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// List decodes the three list shapes the API uses: a bare array, a
// pagination envelope ({"results": [...]}) or a data wrapper ({"data": [...]}).
type List[T any] []T

// UnmarshalJSON implements json.Unmarshaler
func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = List[T]{}
		return nil
	}

	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = normalize(items)
		return nil
	}

	var envelope struct {
		Results *[]T `json:"results"`
		Data    *[]T `json:"data"`
		Items   *[]T `json:"items"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode list: %w", err)
	}

	switch {
	case envelope.Results != nil:
		*l = normalize(*envelope.Results)
	case envelope.Data != nil:
		*l = normalize(*envelope.Data)
	case envelope.Items != nil:
		*l = normalize(*envelope.Items)
	default:
		return fmt.Errorf("decode list: no results, data or items field in %s", truncate(data))
	}

	return nil
}

func normalize[T any](items []T) List[T] {
	if items == nil {
		return List[T]{}
	}
	return List[T](items)
}

func truncate(data []byte) string {
	if len(data) > 80 {
		return string(data[:80]) + "..."
	}
	return string(data)
}
