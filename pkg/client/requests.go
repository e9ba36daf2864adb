package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// RequestState is the explicit internal projection of a request's
// position in the workflow. The wire status stays three-valued; the
// PendingLevel2 state makes "pending but level-1 already signed off"
// distinguishable without inspecting side fields.
type RequestState string

const (
	StatePending       RequestState = "pending"
	StatePendingLevel2 RequestState = "pending_level_2"
	StateApproved      RequestState = "approved"
	StateRejected      RequestState = "rejected"
)

// RequestItem is one line of a purchase request.
type RequestItem struct {
	ID          string          `json:"id,omitempty"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TotalPrice  decimal.Decimal `json:"total_price,omitempty"`
}

// Document is an attached proforma invoice.
type Document struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	FileName   string `json:"file_name,omitempty"`
	UploadedAt string `json:"uploaded_at"`
}

// Receipt is a post-purchase proof document with a validation outcome.
type Receipt struct {
	ID               string   `json:"id"`
	File             string   `json:"file"`
	ValidationStatus string   `json:"validation_status"`
	Discrepancies    []string `json:"discrepancies,omitempty"`
	UploadedAt       string   `json:"uploaded_at"`
	ValidatedAt      *string  `json:"validated_at,omitempty"`
}

// Receipt validation outcomes.
const (
	ReceiptPending     = "pending"
	ReceiptValid       = "valid"
	ReceiptDiscrepancy = "discrepancy"
)

// PurchaseOrder is the artifact generated after final approval.
type PurchaseOrder struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id"`
	PONumber    string          `json:"po_number"`
	File        string          `json:"file,omitempty"`
	VendorName  string          `json:"vendor_name,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	GeneratedAt string          `json:"generated_at"`
}

// PurchaseRequest mirrors the authority's view of a request. The flags
// canBeEdited and requiresLevelNApproval are authority-computed policy;
// the client respects them and never derives them locally.
type PurchaseRequest struct {
	ID                     string          `json:"id"`
	Title                  string          `json:"title"`
	Description            string          `json:"description"`
	Amount                 decimal.Decimal `json:"amount"`
	Status                 string          `json:"status"`
	CreatedBy              User            `json:"created_by"`
	ApprovedByLevel1       *User           `json:"approved_by_level_1,omitempty"`
	ApprovedByLevel2       *User           `json:"approved_by_level_2,omitempty"`
	CreatedAt              string          `json:"created_at"`
	UpdatedAt              string          `json:"updated_at"`
	ApprovedAt             *string         `json:"approved_at,omitempty"`
	RejectedAt             *string         `json:"rejected_at,omitempty"`
	RejectionReason        string          `json:"rejection_reason,omitempty"`
	Items                  []RequestItem   `json:"items"`
	CanBeEdited            bool            `json:"can_be_edited"`
	RequiresLevel1Approval bool            `json:"requires_level_1_approval"`
	RequiresLevel2Approval bool            `json:"requires_level_2_approval"`
	Proforma               *Document       `json:"proforma,omitempty"`
	PurchaseOrder          *PurchaseOrder  `json:"purchase_order,omitempty"`
	Receipts               []Receipt       `json:"receipts"`
}

// State projects the wire status plus the level-1 side field into the
// explicit four-state view.
func (r *PurchaseRequest) State() RequestState {
	switch r.Status {
	case "approved":
		return StateApproved
	case "rejected":
		return StateRejected
	}
	if r.ApprovedByLevel1 != nil {
		return StatePendingLevel2
	}
	return StatePending
}

// AwaitingPurchaseOrder reports the transient sub-state between final
// approval and asynchronous purchase order generation.
func (r *PurchaseRequest) AwaitingPurchaseOrder() bool {
	return r.Status == "approved" && r.PurchaseOrder == nil
}

// RequestInput is the payload for create and update.
type RequestInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Items       []RequestItem   `json:"items"`
}

// normalize validates the input and recomputes Amount from items when
// items are present, so the transmitted amount is always consistent.
func (in *RequestInput) normalize() error {
	if strings.TrimSpace(in.Title) == "" {
		return validationError("title is required")
	}
	if strings.TrimSpace(in.Description) == "" {
		return validationError("description is required")
	}
	if len(in.Items) == 0 {
		if in.Amount.LessThanOrEqual(decimal.Zero) {
			return validationError("amount must be positive")
		}
		return nil
	}

	total := decimal.Zero
	for i, item := range in.Items {
		if strings.TrimSpace(item.Description) == "" {
			return validationError("item %d: description is required", i+1)
		}
		if item.Quantity <= 0 {
			return validationError("item %d: quantity must be positive", i+1)
		}
		if item.UnitPrice.IsNegative() {
			return validationError("item %d: unit price must not be negative", i+1)
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	in.Amount = total
	return nil
}

// ListFilter narrows ListRequests. Zero values mean no filter and
// server-side pagination defaults.
type ListFilter struct {
	Status string
	Page   int
	Limit  int
}

// CreateRequest submits a new purchase request. The result is pending
// and owned by the caller.
func (c *Client) CreateRequest(ctx context.Context, in RequestInput) (*PurchaseRequest, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	cl, err := jsonCall(http.MethodPost, "/api/requests", in)
	if err != nil {
		return nil, err
	}
	var result PurchaseRequest
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateRequest replaces the editable fields of a pending request. The
// snapshot's canBeEdited flag gates the call locally; the authority
// re-checks and answers with a conflict if the snapshot is stale.
func (c *Client) UpdateRequest(ctx context.Context, snapshot *PurchaseRequest, in RequestInput) (*PurchaseRequest, error) {
	if snapshot == nil {
		return nil, validationError("request snapshot is required")
	}
	if !snapshot.CanBeEdited {
		return nil, &APIError{Kind: KindConflictError, Message: "request can no longer be edited"}
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	cl, err := jsonCall(http.MethodPut, "/api/requests/"+url.PathEscape(snapshot.ID), in)
	if err != nil {
		return nil, err
	}
	var result PurchaseRequest
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRequest fetches one request by id, subject to role visibility.
func (c *Client) GetRequest(ctx context.Context, id string) (*PurchaseRequest, error) {
	cl := call{method: http.MethodGet, path: "/api/requests/" + url.PathEscape(id)}
	var result PurchaseRequest
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListRequests returns the requests visible to the caller's role.
func (c *Client) ListRequests(ctx context.Context, filter ListFilter) ([]PurchaseRequest, error) {
	path := "/api/requests"
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", filter.Status)
	}
	if filter.Page > 0 {
		query.Set("page", fmt.Sprint(filter.Page))
	}
	if filter.Limit > 0 {
		query.Set("limit", fmt.Sprint(filter.Limit))
	}
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	cl := call{method: http.MethodGet, path: path}
	var raw json.RawMessage
	if err := c.do(ctx, cl, &raw); err != nil {
		return nil, err
	}
	return decodeRequestList(raw)
}

// decodeRequestList accepts the page-wrapped shapes and a bare array.
func decodeRequestList(raw json.RawMessage) ([]PurchaseRequest, error) {
	var bare []PurchaseRequest
	if err := json.Unmarshal(raw, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Items   []PurchaseRequest `json:"items"`
		Results []PurchaseRequest `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, &APIError{Kind: KindTransportError, Message: fmt.Sprintf("malformed request list: %v", err)}
	}
	if wrapped.Items != nil {
		return wrapped.Items, nil
	}
	return wrapped.Results, nil
}

// Approve records an approval at the caller's level. On a two-level
// request a level-1 approval leaves the request pending for level 2.
func (c *Client) Approve(ctx context.Context, snapshot *PurchaseRequest) (*PurchaseRequest, error) {
	if snapshot == nil {
		return nil, validationError("request snapshot is required")
	}
	if snapshot.Status != "pending" {
		return nil, &APIError{Kind: KindConflictError, Message: "request is already decided"}
	}

	cl := call{method: http.MethodPatch, path: "/api/requests/" + url.PathEscape(snapshot.ID) + "/approve"}
	var result PurchaseRequest
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reject terminally rejects a pending request. The reason is
// mandatory.
func (c *Client) Reject(ctx context.Context, snapshot *PurchaseRequest, reason string) (*PurchaseRequest, error) {
	if snapshot == nil {
		return nil, validationError("request snapshot is required")
	}
	if strings.TrimSpace(reason) == "" {
		return nil, validationError("rejection reason is required")
	}
	if snapshot.Status != "pending" {
		return nil, &APIError{Kind: KindConflictError, Message: "request is already decided"}
	}

	cl, err := jsonCall(http.MethodPatch, "/api/requests/"+url.PathEscape(snapshot.ID)+"/reject", map[string]string{"reason": reason})
	if err != nil {
		return nil, err
	}
	var result PurchaseRequest
	if err := c.do(ctx, cl, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// HistoryEntry is one recorded decision on a request.
type HistoryEntry struct {
	Level     int    `json:"level"`
	Approver  string `json:"approver"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
}

// History returns the decision trail for a request.
func (c *Client) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	cl := call{method: http.MethodGet, path: "/api/requests/" + url.PathEscape(id) + "/history"}
	var entries []HistoryEntry
	if err := c.do(ctx, cl, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
