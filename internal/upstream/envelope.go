package upstream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// envelopeShape is the pagination envelope a page was decoded as.
type envelopeShape int

const (
	// {"data": [...], "pagination": {"hasMore": bool}}
	shapePaginationObject envelopeShape = iota + 1
	// {"data": [...], "hasMore": bool}
	shapeTopLevelHasMore
	// {"data": [...]} without any pagination metadata
	shapeDataOnly
	// [...]
	shapeBareArray
)

func (s envelopeShape) String() string {
	switch s {
	case shapePaginationObject:
		return "pagination-object"
	case shapeTopLevelHasMore:
		return "top-level-hasMore"
	case shapeDataOnly:
		return "data-only"
	case shapeBareArray:
		return "bare-array"
	}
	return "unknown"
}

// page is one decoded response. HasMore is nil when the envelope carried no
// pagination metadata.
type page struct {
	Shape   envelopeShape
	Records []json.RawMessage
	HasMore *bool
}

// more reports whether another page should be requested. Without metadata a
// full-sized page means more may follow.
func (p page) more(pageSize int) bool {
	if len(p.Records) == 0 {
		return false
	}
	if p.HasMore != nil {
		return *p.HasMore
	}
	return len(p.Records) >= pageSize
}

type rawEnvelope struct {
	Data       json.RawMessage `json:"data"`
	HasMore    *bool           `json:"hasMore"`
	Pagination *struct {
		HasMore *bool `json:"hasMore"`
	} `json:"pagination"`
}

var errNoData = errors.New("response object has no data array")

// decodePage probes the body in a fixed order: envelope with a pagination
// object, envelope with top-level hasMore, envelope without metadata, and
// finally a bare array.
func decodePage(body []byte) (page, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return page{}, errors.New("empty response body")
	}

	switch body[0] {
	case '[':
		var records []json.RawMessage
		if err := json.Unmarshal(body, &records); err != nil {
			return page{}, fmt.Errorf("decode array: %w", err)
		}
		return page{Shape: shapeBareArray, Records: records}, nil
	case '{':
		var env rawEnvelope
		if err := json.Unmarshal(body, &env); err != nil {
			return page{}, fmt.Errorf("decode envelope: %w", err)
		}
		records, err := decodeData(env.Data)
		if err != nil {
			return page{}, err
		}
		switch {
		case env.Pagination != nil && env.Pagination.HasMore != nil:
			return page{Shape: shapePaginationObject, Records: records, HasMore: env.Pagination.HasMore}, nil
		case env.HasMore != nil:
			return page{Shape: shapeTopLevelHasMore, Records: records, HasMore: env.HasMore}, nil
		default:
			return page{Shape: shapeDataOnly, Records: records}, nil
		}
	}
	return page{}, fmt.Errorf("unexpected response starting with %q", body[0])
}

func decodeData(data json.RawMessage) ([]json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errNoData
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode data array: %w", err)
	}
	return records, nil
}
