package vdoc

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Virtual documents travel inside the URI itself: the checker can reference
// content that never existed on disk (synthesized stubs, playground
// snippets) through a typeline: URI whose query carries the full text,
// base64-encoded. Nothing is persisted.

const Scheme = "typeline"

const contentParam = "content"

var (
	ErrWrongScheme    = errors.New("not a typeline uri")
	ErrMissingContent = errors.New("uri has no content parameter")
)

// Encode builds a typeline: URI for the given document name and content.
func Encode(name, content string) string {
	v := url.Values{}
	v.Set(contentParam, base64.URLEncoding.EncodeToString([]byte(content)))
	return fmt.Sprintf("%s:%s?%s", Scheme, url.PathEscape(name), v.Encode())
}

// Decode extracts the document content from a typeline: URI. It is the
// exact inverse of Encode: the content bytes come back verbatim, so callers
// that accept foreign input normalize before encoding, not here.
func Decode(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, Scheme+":")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrWrongScheme, uri)
	}

	_, query, ok := strings.Cut(rest, "?")
	if !ok {
		return "", ErrMissingContent
	}

	values, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("invalid query component: %w", err)
	}

	// An empty document is legal; only an absent parameter is an error.
	if !values.Has(contentParam) {
		return "", ErrMissingContent
	}

	data, err := base64.URLEncoding.DecodeString(values.Get(contentParam))
	if err != nil {
		return "", fmt.Errorf("invalid base64 content: %w", err)
	}

	return string(data), nil
}

// Name extracts the document name from a typeline: URI.
func Name(uri string) (string, error) {
	rest, ok := strings.CutPrefix(uri, Scheme+":")
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrWrongScheme, uri)
	}
	name, _, _ := strings.Cut(rest, "?")
	decoded, err := url.PathUnescape(name)
	if err != nil {
		return "", fmt.Errorf("invalid document name: %w", err)
	}
	return decoded, nil
}

// Provider resolves typeline: URIs to document text. It is stateless; the
// URI is the storage.
type Provider struct{}

func NewProvider() *Provider {
	return &Provider{}
}

func (p *Provider) Content(uri string) (string, error) {
	return Decode(uri)
}
