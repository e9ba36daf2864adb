package handler

import (
	"context"
	"mime/multipart"

	"backend/internal/service"
)

// Function-field mocks for the service interfaces.

type mockAuthService struct {
	RegisterFunc func(ctx context.Context, req service.RegisterRequest) (*service.UserResponse, error)
	LoginFunc    func(ctx context.Context, req service.LoginRequest) (*service.LoginResponse, error)
	RefreshFunc  func(ctx context.Context, req service.RefreshRequest) (*service.TokenPairResponse, error)
	LogoutFunc   func(ctx context.Context, refreshToken string) error
	GetUserFunc  func(ctx context.Context, id string) (*service.UserResponse, error)
}

func (m *mockAuthService) Register(ctx context.Context, req service.RegisterRequest) (*service.UserResponse, error) {
	return m.RegisterFunc(ctx, req)
}

func (m *mockAuthService) Login(ctx context.Context, req service.LoginRequest) (*service.LoginResponse, error) {
	return m.LoginFunc(ctx, req)
}

func (m *mockAuthService) Refresh(ctx context.Context, req service.RefreshRequest) (*service.TokenPairResponse, error) {
	return m.RefreshFunc(ctx, req)
}

func (m *mockAuthService) Logout(ctx context.Context, refreshToken string) error {
	return m.LogoutFunc(ctx, refreshToken)
}

func (m *mockAuthService) GetUser(ctx context.Context, id string) (*service.UserResponse, error) {
	return m.GetUserFunc(ctx, id)
}

type mockRequestService struct {
	CreateFunc  func(ctx context.Context, actor service.Actor, req service.CreateRequestDTO) (*service.RequestResponse, error)
	UpdateFunc  func(ctx context.Context, actor service.Actor, id string, req service.CreateRequestDTO) (*service.RequestResponse, error)
	GetFunc     func(ctx context.Context, actor service.Actor, id string) (*service.RequestResponse, error)
	ListFunc    func(ctx context.Context, actor service.Actor, filter service.RequestFilter) ([]service.RequestResponse, int64, error)
	ApproveFunc func(ctx context.Context, actor service.Actor, id string) (*service.RequestResponse, error)
	RejectFunc  func(ctx context.Context, actor service.Actor, id string, reason string) (*service.RequestResponse, error)
	HistoryFunc func(ctx context.Context, actor service.Actor, id string) ([]service.HistoryEntry, error)
}

func (m *mockRequestService) Create(ctx context.Context, actor service.Actor, req service.CreateRequestDTO) (*service.RequestResponse, error) {
	return m.CreateFunc(ctx, actor, req)
}

func (m *mockRequestService) Update(ctx context.Context, actor service.Actor, id string, req service.CreateRequestDTO) (*service.RequestResponse, error) {
	return m.UpdateFunc(ctx, actor, id, req)
}

func (m *mockRequestService) Get(ctx context.Context, actor service.Actor, id string) (*service.RequestResponse, error) {
	return m.GetFunc(ctx, actor, id)
}

func (m *mockRequestService) List(ctx context.Context, actor service.Actor, filter service.RequestFilter) ([]service.RequestResponse, int64, error) {
	return m.ListFunc(ctx, actor, filter)
}

func (m *mockRequestService) Approve(ctx context.Context, actor service.Actor, id string) (*service.RequestResponse, error) {
	return m.ApproveFunc(ctx, actor, id)
}

func (m *mockRequestService) Reject(ctx context.Context, actor service.Actor, id string, reason string) (*service.RequestResponse, error) {
	return m.RejectFunc(ctx, actor, id, reason)
}

func (m *mockRequestService) History(ctx context.Context, actor service.Actor, id string) ([]service.HistoryEntry, error) {
	return m.HistoryFunc(ctx, actor, id)
}

type mockDocumentService struct {
	UploadProformaFunc     func(ctx context.Context, actor service.Actor, requestID string, fh *multipart.FileHeader) (*service.ProformaResponse, error)
	UploadReceiptFunc      func(ctx context.Context, actor service.Actor, requestID string, fh *multipart.FileHeader) (*service.ReceiptResponse, error)
	ValidateReceiptFunc    func(ctx context.Context, actor service.Actor, receiptID string) (*service.ReceiptResponse, error)
	ListPurchaseOrdersFunc func(ctx context.Context, actor service.Actor, page, limit int) ([]service.PurchaseOrderResponse, int64, error)
	GetPurchaseOrderFunc   func(ctx context.Context, actor service.Actor, id string) (*service.PurchaseOrderResponse, error)
}

func (m *mockDocumentService) UploadProforma(ctx context.Context, actor service.Actor, requestID string, fh *multipart.FileHeader) (*service.ProformaResponse, error) {
	return m.UploadProformaFunc(ctx, actor, requestID, fh)
}

func (m *mockDocumentService) UploadReceipt(ctx context.Context, actor service.Actor, requestID string, fh *multipart.FileHeader) (*service.ReceiptResponse, error) {
	return m.UploadReceiptFunc(ctx, actor, requestID, fh)
}

func (m *mockDocumentService) ValidateReceipt(ctx context.Context, actor service.Actor, receiptID string) (*service.ReceiptResponse, error) {
	return m.ValidateReceiptFunc(ctx, actor, receiptID)
}

func (m *mockDocumentService) ListPurchaseOrders(ctx context.Context, actor service.Actor, page, limit int) ([]service.PurchaseOrderResponse, int64, error) {
	return m.ListPurchaseOrdersFunc(ctx, actor, page, limit)
}

func (m *mockDocumentService) GetPurchaseOrder(ctx context.Context, actor service.Actor, id string) (*service.PurchaseOrderResponse, error) {
	return m.GetPurchaseOrderFunc(ctx, actor, id)
}
