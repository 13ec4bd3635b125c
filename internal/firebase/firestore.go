package firebase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/soudorock6666/Pet-Shop/pkg/config"
)

// Sentinel errors for document store operations.
var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrPermissionDenied is returned when the store's authorization rules
	// reject the operation for the presented ID token.
	ErrPermissionDenied = errors.New("permission denied")
)

// Value is one typed field value in the document store's wire format.
// Exactly one of the pointers is set. Integers travel as decimal strings
// on the wire.
type Value struct {
	StringValue    *string  `json:"stringValue,omitempty"`
	IntegerValue   *string  `json:"integerValue,omitempty"`
	DoubleValue    *float64 `json:"doubleValue,omitempty"`
	BooleanValue   *bool    `json:"booleanValue,omitempty"`
	TimestampValue *string  `json:"timestampValue,omitempty"`
	NullValue      *string  `json:"nullValue,omitempty"`
}

// StringVal builds a string field value.
func StringVal(s string) Value {
	return Value{StringValue: &s}
}

// IntVal builds an integer field value.
func IntVal(i int) Value {
	s := strconv.Itoa(i)
	return Value{IntegerValue: &s}
}

// AsString returns the string content of the value, tolerating timestamp
// fields. Returns "" for any other type.
func (v Value) AsString() string {
	switch {
	case v.StringValue != nil:
		return *v.StringValue
	case v.TimestampValue != nil:
		return *v.TimestampValue
	default:
		return ""
	}
}

// AsInt returns the integer content of the value. Historical documents
// occasionally carry quantities as doubles or numeric strings; both are
// tolerated. Returns 0 otherwise.
func (v Value) AsInt() int {
	switch {
	case v.IntegerValue != nil:
		n, err := strconv.Atoi(*v.IntegerValue)
		if err != nil {
			return 0
		}
		return n
	case v.DoubleValue != nil:
		return int(*v.DoubleValue)
	case v.StringValue != nil:
		n, err := strconv.Atoi(strings.TrimSpace(*v.StringValue))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Document is a single record from a named collection. Fields is schemaless:
// absent keys simply do not appear in the map.
type Document struct {
	ID     string           // Last path segment of the wire-level name
	Fields map[string]Value // Typed field values
}

// GetString returns the named field as a string, or "" when absent.
func (d *Document) GetString(field string) string {
	return d.Fields[field].AsString()
}

// GetInt returns the named field as an int, or 0 when absent.
func (d *Document) GetInt(field string) int {
	return d.Fields[field].AsInt()
}

// wireDocument matches the REST representation of a document.
type wireDocument struct {
	Name   string           `json:"name,omitempty"`
	Fields map[string]Value `json:"fields,omitempty"`
}

// FirestoreClient talks to the document store's REST API. Every call carries
// the caller's upstream ID token so the store's own authorization rules stay
// in force regardless of what the gateway enforces locally.
type FirestoreClient struct {
	baseURL    string // {endpoint}/v1/projects/{pid}/databases/(default)/documents
	httpClient *http.Client
}

// NewFirestoreClient creates a document store client from configuration.
func NewFirestoreClient(cfg *config.FirebaseConfig) *FirestoreClient {
	return &FirestoreClient{
		baseURL: fmt.Sprintf("%s/v1/projects/%s/databases/(default)/documents",
			strings.TrimSuffix(cfg.FirestoreEndpoint, "/"), cfg.ProjectID),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// GetDocument fetches a single document by id. Returns ErrNotFound when the
// document does not exist.
func (c *FirestoreClient) GetDocument(ctx context.Context, idToken, collection, id string) (*Document, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id))

	var wire wireDocument
	if err := c.do(ctx, idToken, http.MethodGet, endpoint, nil, &wire); err != nil {
		return nil, err
	}
	return documentFrom(&wire), nil
}

// SetDocument writes fields to a document. With merge set, only the listed
// fields are touched (the wire-level updateMask carries exactly the keys of
// fields); without it the whole document is replaced.
func (c *FirestoreClient) SetDocument(ctx context.Context, idToken, collection, id string, fields map[string]Value, merge bool) error {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id))
	if merge {
		params := url.Values{}
		for field := range fields {
			params.Add("updateMask.fieldPaths", field)
		}
		endpoint += "?" + params.Encode()
	}

	body := wireDocument{Fields: fields}
	return c.do(ctx, idToken, http.MethodPatch, endpoint, &body, nil)
}

// AddDocument creates a document with a store-generated id and returns that id.
func (c *FirestoreClient) AddDocument(ctx context.Context, idToken, collection string, fields map[string]Value) (string, error) {
	endpoint := fmt.Sprintf("%s/%s", c.baseURL, url.PathEscape(collection))

	body := wireDocument{Fields: fields}
	var created wireDocument
	if err := c.do(ctx, idToken, http.MethodPost, endpoint, &body, &created); err != nil {
		return "", err
	}

	id := idFromName(created.Name)
	if id == "" {
		return "", fmt.Errorf("store returned document without a name")
	}
	return id, nil
}

// DeleteDocument removes a document by id. Deleting an absent document is
// not an error upstream, and is not treated as one here.
func (c *FirestoreClient) DeleteDocument(ctx context.Context, idToken, collection, id string) error {
	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, url.PathEscape(collection), url.PathEscape(id))
	return c.do(ctx, idToken, http.MethodDelete, endpoint, nil, nil)
}

// ListDocuments fetches the full contents of a collection. The catalog is
// small by design (no pagination in the product), so a single large page is
// requested; a missing collection reads as empty.
func (c *FirestoreClient) ListDocuments(ctx context.Context, idToken, collection string) ([]*Document, error) {
	endpoint := fmt.Sprintf("%s/%s?pageSize=1000", c.baseURL, url.PathEscape(collection))

	var resp struct {
		Documents []wireDocument `json:"documents"`
	}
	if err := c.do(ctx, idToken, http.MethodGet, endpoint, nil, &resp); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	docs := make([]*Document, 0, len(resp.Documents))
	for i := range resp.Documents {
		docs = append(docs, documentFrom(&resp.Documents[i]))
	}
	return docs, nil
}

// QueryEquals runs a server-side equality query on one field and returns the
// matching documents.
func (c *FirestoreClient) QueryEquals(ctx context.Context, idToken, collection, field, value string) ([]*Document, error) {
	endpoint := c.baseURL + ":runQuery"

	query := map[string]any{
		"structuredQuery": map[string]any{
			"from": []map[string]any{{"collectionId": collection}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]any{"fieldPath": field},
					"op":    "EQUAL",
					"value": StringVal(value),
				},
			},
		},
	}

	payload, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	c.setHeaders(req, idToken)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("document store unreachable: %w", err)
	}
	defer httpResp.Body.Close()

	if err := checkStatus(httpResp); err != nil {
		return nil, err
	}

	// runQuery streams an array of result envelopes; entries without a
	// document (bare readTime markers) are skipped.
	var results []struct {
		Document *wireDocument `json:"document"`
	}
	if err := json.NewDecoder(httpResp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	var docs []*Document
	for _, result := range results {
		if result.Document != nil {
			docs = append(docs, documentFrom(result.Document))
		}
	}
	return docs, nil
}

// do performs one REST call, decoding a success body into out when non-nil.
func (c *FirestoreClient) do(ctx context.Context, idToken, method, endpoint string, body *wireDocument, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	c.setHeaders(req, idToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("document store unreachable: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// setHeaders applies the Bearer token and content type to a request.
func (c *FirestoreClient) setHeaders(req *http.Request, idToken string) {
	if idToken != "" {
		req.Header.Set("Authorization", "Bearer "+idToken)
	}
	req.Header.Set("Content-Type", "application/json")
}

// checkStatus maps HTTP failure statuses onto sentinel errors.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		log.Warn().Int("status", resp.StatusCode).Msg("Document store rejected credentials")
		return ErrPermissionDenied
	case resp.StatusCode >= 400:
		return fmt.Errorf("document store error: status %d", resp.StatusCode)
	default:
		return nil
	}
}

// documentFrom converts a wire document, extracting the id from its name.
func documentFrom(wire *wireDocument) *Document {
	fields := wire.Fields
	if fields == nil {
		fields = map[string]Value{}
	}
	return &Document{
		ID:     idFromName(wire.Name),
		Fields: fields,
	}
}

// idFromName extracts the final path segment of a wire-level document name,
// e.g. "projects/p/databases/(default)/documents/produtos/aX3kQ9" -> "aX3kQ9".
func idFromName(name string) string {
	if name == "" {
		return ""
	}
	if idx := strings.LastIndex(name, "/"); idx != -1 {
		return name[idx+1:]
	}
	return name
}
