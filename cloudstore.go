package main

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// cloudStoreClient is a thin wrapper around the remote document store's HTTP
// API, in the same shape as the teacher's PrusaLinkClient/SpoolmanClient
// (prusalink.go, spoolman.go): a struct holding a configured *http.Client and
// a base URL, one method per logical operation, %w-wrapped errors. spec.md §6
// specifies only the logical operations (listQueued/get/patch); the wire
// format modeled here is Firestore's REST document representation, which is
// the tagged string/integer/timestamp/null/map value scheme spec.md §3
// describes almost verbatim.
type cloudStoreClient struct {
	baseURL    string
	projectID  string
	httpClient *http.Client
}

func newCloudStoreClient(projectID string) *cloudStoreClient {
	return &cloudStoreClient{
		baseURL:   "https://firestore.googleapis.com/v1",
		projectID: projectID,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     30 * time.Second,
			},
		},
	}
}

// fsValue is Firestore's tagged value representation (spec.md §3 "Field
// values use a tagged representation: string/integer/timestamp/null/map").
type fsValue struct {
	StringValue    *string             `json:"stringValue,omitempty"`
	IntegerValue   *string             `json:"integerValue,omitempty"`
	TimestampValue *string             `json:"timestampValue,omitempty"`
	NullValue      *interface{}        `json:"nullValue,omitempty"`
	MapValue       *fsMapValue         `json:"mapValue,omitempty"`
}

type fsMapValue struct {
	Fields map[string]fsValue `json:"fields"`
}

type fsDocument struct {
	Name   string             `json:"name"`
	Fields map[string]fsValue `json:"fields"`
}

type fsRunQueryRequest struct {
	StructuredQuery fsStructuredQuery `json:"structuredQuery"`
}

type fsStructuredQuery struct {
	From  []fsCollectionSelector `json:"from"`
	Where fsFilter               `json:"where"`
	Limit int                    `json:"limit"`
}

type fsCollectionSelector struct {
	CollectionID string `json:"collectionId"`
}

type fsFilter struct {
	FieldFilter fsFieldFilter `json:"fieldFilter"`
}

type fsFieldFilter struct {
	Field    fsFieldRef `json:"field"`
	Op       string     `json:"op"`
	Value    fsValue    `json:"value"`
}

type fsFieldRef struct {
	FieldPath string `json:"fieldPath"`
}

type fsRunQueryResponseItem struct {
	Document *fsDocument `json:"document"`
}

func stringVal(s string) fsValue { return fsValue{StringValue: &s} }

func intVal(n int) fsValue {
	s := strconv.Itoa(n)
	return fsValue{IntegerValue: &s}
}

func timestampVal(t time.Time) fsValue {
	s := t.UTC().Format(time.RFC3339)
	return fsValue{TimestampValue: &s}
}

func nullVal() fsValue {
	var n interface{}
	return fsValue{NullValue: &n}
}

func mapVal(fields map[string]fsValue) fsValue {
	return fsValue{MapValue: &fsMapValue{Fields: fields}}
}

func (v fsValue) asString() string {
	if v.StringValue != nil {
		return *v.StringValue
	}
	return ""
}

func (v fsValue) asInt() int {
	if v.IntegerValue != nil {
		n, _ := strconv.Atoi(*v.IntegerValue)
		return n
	}
	return 0
}

// decodeJob converts a Firestore document into our PrintJob model.
func decodeJob(doc *fsDocument) PrintJob {
	f := doc.Fields
	job := PrintJob{
		ID:          lastPathSegment(doc.Name),
		Status:      f["status"].asString(),
		PayloadB64:  f["payload"].asString(),
		PaperWidth:  f["paperWidth"].asInt(),
		Attempts:    f["attempts"].asInt(),
		MaxAttempts: f["maxAttempts"].asInt(),
		OrderID:     f["orderId"].asString(),
		Error:       f["error"].asString(),
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = DefaultMaxAttempts
	}
	job.ClaimedBy = f["claimedBy"].asString()
	job.ClaimedByName = f["claimedByName"].asString()

	if target, ok := f["target"]; ok && target.MapValue != nil {
		tf := target.MapValue.Fields
		job.Target.Type = tf["type"].asString()
		job.Target.IP = tf["ip"].asString()
		job.Target.Port = tf["port"].asInt()
		if job.Target.Port == 0 {
			job.Target.Port = DefaultLANPrintPort
		}
		job.Target.PrinterName = tf["printerName"].asString()
	}
	return job
}

func lastPathSegment(name string) string {
	idx := strings.LastIndexByte(name, '/')
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}

func (c *cloudStoreClient) documentsURL(path string) string {
	return fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s", c.baseURL, c.projectID, path)
}

// listQueued lists up to limit documents with status=queued in the collection
// collectionID under parentPath (spec.md §4.F, §6). A 404 means the collection is absent and yields an empty
// list, not an error.
func (c *cloudStoreClient) listQueued(collectionID, parentPath string, limit int) ([]PrintJob, error) {
	query := fsRunQueryRequest{
		StructuredQuery: fsStructuredQuery{
			From:  []fsCollectionSelector{{CollectionID: collectionID}},
			Where: fsFilter{FieldFilter: fsFieldFilter{Field: fsFieldRef{FieldPath: "status"}, Op: "EQUAL", Value: stringVal(JobStatusQueued)}},
			Limit: limit,
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to encode listQueued request: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/databases/(default)/documents/%s:runQuery", c.baseURL, c.projectID, parentPath)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build listQueued request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listQueued transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("listQueued API error: %d - %s", resp.StatusCode, string(data))
	}

	var items []fsRunQueryResponseItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("failed to decode listQueued response: %w", err)
	}

	jobs := make([]PrintJob, 0, len(items))
	for _, item := range items {
		if item.Document == nil {
			continue
		}
		jobs = append(jobs, decodeJob(item.Document))
	}
	return jobs, nil
}

// get reads a single document at docPath.
func (c *cloudStoreClient) get(docPath string) (PrintJob, bool, error) {
	req, err := http.NewRequest(http.MethodGet, c.documentsURL(docPath), nil)
	if err != nil {
		return PrintJob{}, false, fmt.Errorf("failed to build get request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return PrintJob{}, false, fmt.Errorf("get transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return PrintJob{}, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return PrintJob{}, false, fmt.Errorf("get API error: %d - %s", resp.StatusCode, string(data))
	}

	var doc fsDocument
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return PrintJob{}, false, fmt.Errorf("failed to decode get response: %w", err)
	}
	return decodeJob(&doc), true, nil
}

// patch updates fieldMap on docPath, restricting the update to exactly those
// field paths (spec.md §6 "patch(docPath, fieldMap, fieldMask)"). The request
// carries no precondition on the document's current state.
func (c *cloudStoreClient) patch(docPath string, fields map[string]fsValue) error {
	body, err := json.Marshal(fsDocument{Fields: fields})
	if err != nil {
		return fmt.Errorf("failed to encode patch request: %w", err)
	}

	url := c.documentsURL(docPath)
	sep := "?"
	for field := range fields {
		url += sep + "updateMask.fieldPaths=" + field
		sep = "&"
	}

	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build patch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("patch transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("patch API error: %d - %s", resp.StatusCode, string(data))
	}
	return nil
}

// decodeBase64Payload decodes the job payload, bounding it per SPEC_FULL.md §C.
func decodeBase64Payload(encoded string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	if len(data) > MaxCloudJobPayload {
		return nil, fmt.Errorf("%s", ErrPayloadTooLarge)
	}
	return data, nil
}
