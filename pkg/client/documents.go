package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// allowedUploadExts is the client-side gate on document uploads. The
// authority re-checks by sniffing content.
var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// maxUploadSize mirrors the authority's per-file limit.
const maxUploadSize = 10 << 20

// UploadProforma attaches a proforma invoice to a pending request.
// Uploading again replaces the previous proforma.
func (c *Client) UploadProforma(ctx context.Context, requestID, fileName string, file io.Reader) (*Document, error) {
	cl, err := uploadCall("/api/proformas", requestID, fileName, file)
	if err != nil {
		return nil, err
	}
	var result Document
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UploadReceipt attaches a receipt to an approved request. Receipts
// accumulate.
func (c *Client) UploadReceipt(ctx context.Context, requestID, fileName string, file io.Reader) (*Receipt, error) {
	cl, err := uploadCall("/api/receipts", requestID, fileName, file)
	if err != nil {
		return nil, err
	}
	var result Receipt
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ValidateReceipt asks the authority to reconcile a pending receipt.
// The outcome is terminal: valid or discrepancy.
func (c *Client) ValidateReceipt(ctx context.Context, receiptID string) (*Receipt, error) {
	cl := call{method: http.MethodPost, path: "/api/receipts/" + url.PathEscape(receiptID) + "/validate"}
	var result Receipt
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PurchaseOrders lists generated purchase orders visible to the caller.
func (c *Client) PurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	cl := call{method: http.MethodGet, path: "/api/purchase-orders"}
	var raw json.RawMessage
	if err := c.do(ctx, cl, &raw); err != nil {
		return nil, err
	}

	var bare []PurchaseOrder
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}
	var wrapped struct {
		Items   []PurchaseOrder `json:"items"`
		Results []PurchaseOrder `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &APIError{Kind: KindTransportError, Message: fmt.Sprintf("malformed purchase order list: %v", err)}
	}
	if wrapped.Items != nil {
		return wrapped.Items, nil
	}
	return wrapped.Results, nil
}

// GetPurchaseOrder fetches one purchase order by id.
func (c *Client) GetPurchaseOrder(ctx context.Context, id string) (*PurchaseOrder, error) {
	cl := call{method: http.MethodGet, path: "/api/purchase-orders/" + url.PathEscape(id)}
	var result PurchaseOrder
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// uploadCall builds a multipart call with the request id and file. The
// whole body is buffered so the session manager can replay it.
func uploadCall(path, requestID, fileName string, file io.Reader) (call, error) {
	if requestID == "" {
		return call{}, validationError("request id is required")
	}
	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedUploadExts[ext] {
		return call{}, validationError("file type %q is not allowed (PDF, PNG or JPG)", ext)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("request", requestID); err != nil {
		return call{}, err
	}
	part, err := w.CreateFormFile("file", filepath.Base(fileName))
	if err != nil {
		return call{}, err
	}
	n, err := io.Copy(part, io.LimitReader(file, maxUploadSize+1))
	if err != nil {
		return call{}, err
	}
	if n > maxUploadSize {
		return call{}, validationError("file exceeds the %d byte limit", maxUploadSize)
	}
	if err := w.Close(); err != nil {
		return call{}, err
	}

	return call{
		method:      http.MethodPost,
		path:        path,
		body:        buf.Bytes(),
		contentType: w.FormDataContentType(),
	}, nil
}
