// Package httprequest provides the HTTP request node implementation.
package httprequest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/weftlabs/weft/pkg/models"
	"github.com/weftlabs/weft/pkg/protocol"
)

// maxResponseBytes bounds how much of a response body is read into an item.
const maxResponseBytes = 16 << 20

// HTTPRequestNode performs one request per input item and emits one result
// item per request, in input order.
type HTTPRequestNode struct {
	name   string
	client *http.Client
}

// Execute runs the configured request for every input item. A non-2xx status
// is still a successful node run; callers branch on status_code downstream.
func (n *HTTPRequestNode) Execute(ctx context.Context, req *protocol.ExecuteRequest) (*protocol.ExecuteResult, error) {
	input := req.AllInputItems()
	output := make([]models.ExecutionItem, 0, len(input))

	for index := range input {
		parameters, err := req.Parameters(index)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve parameters for item %d: %w", index, err)
		}

		item, err := n.request(ctx, req, parameters, index)
		if err != nil {
			return nil, fmt.Errorf("request for item %d failed: %w", index, err)
		}

		output = append(output, item)
	}

	return &protocol.ExecuteResult{Outputs: [][]models.ExecutionItem{output}}, nil
}

func (n *HTTPRequestNode) request(ctx context.Context, req *protocol.ExecuteRequest, parameters map[string]any, index int) (models.ExecutionItem, error) {
	url, _ := parameters["url"].(string)
	if url == "" {
		return models.ExecutionItem{}, fmt.Errorf("missing required parameter url")
	}

	method := http.MethodGet
	if raw, ok := parameters["method"].(string); ok && raw != "" {
		method = strings.ToUpper(raw)
	}

	body, contentType, err := requestBody(parameters["body"])
	if err != nil {
		return models.ExecutionItem{}, err
	}

	request, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return models.ExecutionItem{}, fmt.Errorf("failed to build request: %w", err)
	}

	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}

	if headers, ok := parameters["headers"].(map[string]any); ok {
		for key, value := range headers {
			if text, ok := value.(string); ok {
				request.Header.Set(key, text)
			}
		}
	}

	response, err := n.client.Do(request)
	if err != nil {
		return models.ExecutionItem{}, err
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return models.ExecutionItem{}, fmt.Errorf("failed to read response body: %w", err)
	}

	binaryResponse, _ := parameters["binary_response"].(bool)

	item := models.NewItem(map[string]any{
		"status_code": response.StatusCode,
		"headers":     flattenHeader(response.Header),
	})
	item.PairedItem = []models.PairedItem{{Item: index}}

	if binaryResponse {
		binary := &models.BinaryItem{
			MimeType: response.Header.Get("Content-Type"),
			FileSize: int64(len(payload)),
		}

		if req.Binary != nil && req.Execution != nil {
			if err := req.Binary.Store(ctx, binary, payload, req.Execution.ID); err != nil {
				return models.ExecutionItem{}, fmt.Errorf("failed to store response body: %w", err)
			}
		}

		item.Binary = map[string]models.BinaryItem{"data": *binary}

		return item, nil
	}

	var decoded any
	if json.Unmarshal(payload, &decoded) == nil {
		item.JSON["body"] = decoded
	} else {
		item.JSON["body"] = string(payload)
	}

	return item, nil
}

func requestBody(raw any) (io.Reader, string, error) {
	switch body := raw.(type) {
	case nil:
		return nil, "", nil
	case string:
		if body == "" {
			return nil, "", nil
		}

		return strings.NewReader(body), "", nil
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}

		return bytes.NewReader(encoded), "application/json", nil
	}
}

func flattenHeader(header http.Header) map[string]any {
	flat := make(map[string]any, len(header))
	for key := range header {
		flat[key] = header.Get(key)
	}

	return flat
}
