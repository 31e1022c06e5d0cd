package mux

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Encoder serializes a structured handler result into a response body.
type Encoder func(v any) ([]byte, error)

// Media types served by the default encoders.
const (
	MediaTypeJSON    = "application/json"
	MediaTypeXML     = "application/xml"
	MediaTypeMsgPack = "application/msgpack"
	MediaTypeYAML    = "application/yaml"
)

// JSONEncoder encodes v as JSON followed by a newline.
func JSONEncoder(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// XMLEncoder encodes v as XML.
func XMLEncoder(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := xml.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MsgPackEncoder encodes v as MessagePack.
func MsgPackEncoder(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// YAMLEncoder encodes v as YAML.
func YAMLEncoder(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

type encoderEntry struct {
	mediaType string
	encode    Encoder
}

// encoderRegistry maps media types to encoders. The first entry is the
// default used when the client expresses no usable preference.
type encoderRegistry struct {
	mu      sync.RWMutex
	entries []encoderEntry
}

func newEncoderRegistry() *encoderRegistry {
	return &encoderRegistry{
		entries: []encoderEntry{
			{mediaType: MediaTypeJSON, encode: JSONEncoder},
			{mediaType: MediaTypeXML, encode: XMLEncoder},
			{mediaType: MediaTypeMsgPack, encode: MsgPackEncoder},
			{mediaType: "application/x-msgpack", encode: MsgPackEncoder},
			{mediaType: MediaTypeYAML, encode: YAMLEncoder},
			{mediaType: "application/x-yaml", encode: YAMLEncoder},
		},
	}
}

// register adds or replaces the encoder for mediaType.
func (r *encoderRegistry) register(mediaType string, enc Encoder) {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.mediaType == mediaType {
			r.entries[i].encode = enc
			return
		}
	}
	r.entries = append(r.entries, encoderEntry{mediaType: mediaType, encode: enc})
}

// encode serializes v with the encoder preferred by the Accept header. When
// the preferred encoder cannot represent v, the default encoder is tried.
func (r *encoderRegistry) encode(accept string, v any) (string, []byte, error) {
	r.mu.RLock()
	preferred := r.negotiateLocked(accept)
	fallback := r.entries[0]
	r.mu.RUnlock()

	body, err := preferred.encode(v)
	if err == nil {
		return preferred.mediaType, body, nil
	}

	if preferred.mediaType == fallback.mediaType {
		return "", nil, err
	}

	body, fallbackErr := fallback.encode(v)
	if fallbackErr != nil {
		return "", nil, err
	}
	return fallback.mediaType, body, nil
}

// negotiateLocked picks the encoder for an Accept header. The caller must
// hold the lock.
func (r *encoderRegistry) negotiateLocked(accept string) encoderEntry {
	for _, ar := range ParseAccept(accept) {
		if ar.Quality <= 0 {
			continue
		}

		if ar.Value == "*/*" {
			return r.entries[0]
		}

		if prefix, ok := strings.CutSuffix(ar.Value, "/*"); ok {
			for _, e := range r.entries {
				if strings.HasPrefix(e.mediaType, prefix+"/") {
					return e
				}
			}
			continue
		}

		for _, e := range r.entries {
			if e.mediaType == ar.Value {
				return e
			}
		}
	}

	return r.entries[0]
}

// AcceptRange is one element of an Accept-style header.
type AcceptRange struct {
	// Value is the lowercased media range or coding, e.g. "application/json".
	Value string

	// Quality is the q parameter, 1.0 when absent.
	Quality float64
}

// ParseAccept parses an Accept or Accept-Encoding header value into its
// ranges ordered by descending quality. Ranges with equal quality keep their
// header order.
func ParseAccept(header string) []AcceptRange {
	if strings.TrimSpace(header) == "" {
		return nil
	}

	var ranges []AcceptRange
	for part := range strings.SplitSeq(header, ",") {
		value, quality := parseAcceptPart(strings.TrimSpace(part))
		if value == "" {
			continue
		}
		ranges = append(ranges, AcceptRange{
			Value:   strings.ToLower(value),
			Quality: parseQuality(quality),
		})
	}

	sort.SliceStable(ranges, func(i, j int) bool {
		return ranges[i].Quality > ranges[j].Quality
	})

	return ranges
}

// parseQuality converts a quality string to a float64.
// An empty string defaults to 1.0 (implicit full quality per RFC 9110 Section 12.4.2).
func parseQuality(s string) float64 {
	if s == "" {
		return 1.0
	}

	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}

	return q
}

// parseAcceptPart splits a range token into its value and quality. For
// "text/html;level=1;q=0.8" it returns ("text/html", "0.8").
func parseAcceptPart(s string) (value, quality string) {
	value, params, ok := strings.Cut(s, ";")
	if !ok {
		return strings.TrimSpace(value), ""
	}

	for param := range strings.SplitSeq(params, ";") {
		key, val, found := strings.Cut(strings.TrimSpace(param), "=")
		if found && strings.EqualFold(strings.TrimSpace(key), "q") {
			return strings.TrimSpace(value), strings.TrimSpace(val)
		}
	}

	return strings.TrimSpace(value), ""
}
