package service

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/storage"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// pdfUpload builds a real multipart file header carrying a minimal PDF,
// since the store sniffs content rather than trusting the file name.
func pdfUpload(t *testing.T, name string) *multipart.FileHeader {
	t.Helper()
	return upload(t, name, []byte("%PDF-1.4\n1 0 obj\n<< >>\nendobj\ntrailer\n%%EOF\n"))
}

func upload(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("parse multipart form: %v", err)
	}
	return req.MultipartForm.File["file"][0]
}

func newDocumentService(t *testing.T, db *gorm.DB) DocumentService {
	t.Helper()

	store, err := storage.NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}
	return NewDocumentService(db, repository.NewUserRepository(db), store, AmountReconciler{}, nil)
}

func seedRequest(t *testing.T, db *gorm.DB, creator *model.User, amount int64, status string) *model.PurchaseRequest {
	t.Helper()

	request := &model.PurchaseRequest{
		Title:       "Laptops",
		Description: "Laptops for the new hires",
		Amount:      decimal.NewFromInt(amount),
		Status:      status,
		CreatedByID: creator.ID,
	}
	if status == model.StatusApproved {
		now := time.Now()
		request.ApprovedAt = &now
	}
	if err := db.Create(request).Error; err != nil {
		t.Fatalf("seed request: %v", err)
	}
	return request
}

func TestUploadProformaReplacesPrevious(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	request := seedRequest(t, db, staff, 500, model.StatusPending)

	first, err := svc.UploadProforma(context.Background(), asActor(staff), request.ID.String(), pdfUpload(t, "quote-v1.pdf"))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}

	second, err := svc.UploadProforma(context.Background(), asActor(staff), request.ID.String(), pdfUpload(t, "quote-v2.pdf"))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	if second.FileName != "quote-v2.pdf" {
		t.Errorf("file name = %q", second.FileName)
	}
	if second.File == first.File {
		t.Error("replacement should produce a new file reference")
	}

	var count int64
	if err := db.Model(&model.Proforma{}).Where("request_id = ?", request.ID).Count(&count).Error; err != nil {
		t.Fatalf("count proformas: %v", err)
	}
	if count != 1 {
		t.Errorf("proforma count = %d, want exactly 1 after replacement", count)
	}
}

func TestUploadProformaOnlyWhilePending(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	request := seedRequest(t, db, staff, 500, model.StatusApproved)

	if _, err := svc.UploadProforma(context.Background(), asActor(staff), request.ID.String(), pdfUpload(t, "late.pdf")); !errors.Is(err, ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestUploadProformaForbiddenForStrangers(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	other := seedUser(t, db, "dave", model.RoleStaff)
	request := seedRequest(t, db, staff, 500, model.StatusPending)

	if _, err := svc.UploadProforma(context.Background(), asActor(other), request.ID.String(), pdfUpload(t, "quote.pdf")); !errors.Is(err, ErrForbidden) {
		t.Errorf("err = %v, want ErrForbidden", err)
	}
}

func TestUploadRejectsDisallowedFileType(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	request := seedRequest(t, db, staff, 500, model.StatusPending)

	fh := upload(t, "notes.txt", []byte("plain text, not a document"))
	if _, err := svc.UploadProforma(context.Background(), asActor(staff), request.ID.String(), fh); !errors.Is(err, ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestUploadReceiptAppendsOnApprovedOnly(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	pending := seedRequest(t, db, staff, 500, model.StatusPending)
	approved := seedRequest(t, db, staff, 500, model.StatusApproved)

	if _, err := svc.UploadReceipt(context.Background(), asActor(staff), pending.ID.String(), pdfUpload(t, "early.pdf")); !errors.Is(err, ErrConflict) {
		t.Fatalf("receipt on pending: err = %v, want ErrConflict", err)
	}

	first, err := svc.UploadReceipt(context.Background(), asActor(staff), approved.ID.String(), pdfUpload(t, "receipt-1.pdf"))
	if err != nil {
		t.Fatalf("first receipt: %v", err)
	}
	if first.ValidationStatus != model.ReceiptPending {
		t.Errorf("validation status = %q, want pending", first.ValidationStatus)
	}

	if _, err := svc.UploadReceipt(context.Background(), asActor(staff), approved.ID.String(), pdfUpload(t, "receipt-2.pdf")); err != nil {
		t.Fatalf("second receipt: %v", err)
	}

	var count int64
	if err := db.Model(&model.Receipt{}).Where("request_id = ?", approved.ID).Count(&count).Error; err != nil {
		t.Fatalf("count receipts: %v", err)
	}
	if count != 2 {
		t.Errorf("receipt count = %d, want 2 (receipts append)", count)
	}
}

func TestValidateReceiptRequiresPurchaseOrder(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	approved := seedRequest(t, db, staff, 500, model.StatusApproved)

	receipt, err := svc.UploadReceipt(context.Background(), asActor(staff), approved.ID.String(), pdfUpload(t, "receipt.pdf"))
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}

	if _, err := svc.ValidateReceipt(context.Background(), asActor(staff), receipt.ID); !errors.Is(err, ErrValidation) {
		t.Errorf("validate without PO: err = %v, want ErrValidation", err)
	}
}

func TestValidateReceiptOutcomes(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	finance := seedUser(t, db, "frank", model.RoleFinance)

	matching := seedRequest(t, db, staff, 500, model.StatusApproved)
	mismatched := seedRequest(t, db, staff, 800, model.StatusApproved)

	for i, r := range []*model.PurchaseRequest{matching, mismatched} {
		po := &model.PurchaseOrder{
			RequestID:   r.ID,
			PONumber:    []string{"PO-20260830-0001", "PO-20260830-0002"}[i],
			TotalAmount: decimal.NewFromInt(500),
		}
		if err := db.Create(po).Error; err != nil {
			t.Fatalf("seed purchase order: %v", err)
		}
	}

	good, err := svc.UploadReceipt(context.Background(), asActor(staff), matching.ID.String(), pdfUpload(t, "receipt.pdf"))
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}
	validated, err := svc.ValidateReceipt(context.Background(), asActor(finance), good.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if validated.ValidationStatus != model.ReceiptValid {
		t.Errorf("status = %q, want valid", validated.ValidationStatus)
	}
	if validated.ValidatedAt == nil {
		t.Error("validatedAt should be set")
	}

	bad, err := svc.UploadReceipt(context.Background(), asActor(staff), mismatched.ID.String(), pdfUpload(t, "receipt.pdf"))
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}
	flagged, err := svc.ValidateReceipt(context.Background(), asActor(finance), bad.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if flagged.ValidationStatus != model.ReceiptDiscrepancy {
		t.Errorf("status = %q, want discrepancy", flagged.ValidationStatus)
	}
	if len(flagged.Discrepancies) == 0 {
		t.Error("discrepancy outcome should carry the mismatch details")
	}
}

func TestValidateReceiptHidesForeignRequestsFromStaff(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	staff := seedUser(t, db, "alice", model.RoleStaff)
	other := seedUser(t, db, "dave", model.RoleStaff)
	approved := seedRequest(t, db, staff, 500, model.StatusApproved)

	receipt, err := svc.UploadReceipt(context.Background(), asActor(staff), approved.ID.String(), pdfUpload(t, "receipt.pdf"))
	if err != nil {
		t.Fatalf("upload receipt: %v", err)
	}

	if _, err := svc.ValidateReceipt(context.Background(), asActor(other), receipt.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestPurchaseOrderVisibility(t *testing.T) {
	db := testDB(t)
	svc := newDocumentService(t, db)
	alice := seedUser(t, db, "alice", model.RoleStaff)
	dave := seedUser(t, db, "dave", model.RoleStaff)
	finance := seedUser(t, db, "frank", model.RoleFinance)

	mine := seedRequest(t, db, alice, 500, model.StatusApproved)
	theirs := seedRequest(t, db, dave, 700, model.StatusApproved)
	for i, r := range []*model.PurchaseRequest{mine, theirs} {
		po := &model.PurchaseOrder{
			RequestID:   r.ID,
			PONumber:    []string{"PO-20260830-0001", "PO-20260830-0002"}[i],
			TotalAmount: r.Amount,
		}
		if err := db.Create(po).Error; err != nil {
			t.Fatalf("seed purchase order: %v", err)
		}
	}

	staffView, total, err := svc.ListPurchaseOrders(context.Background(), asActor(alice), 1, 20)
	if err != nil {
		t.Fatalf("list as staff: %v", err)
	}
	if total != 1 || len(staffView) != 1 || staffView[0].RequestID != mine.ID.String() {
		t.Errorf("staff should only see their own purchase orders, got %d", total)
	}

	_, total, err = svc.ListPurchaseOrders(context.Background(), asActor(finance), 1, 20)
	if err != nil {
		t.Fatalf("list as finance: %v", err)
	}
	if total != 2 {
		t.Errorf("finance should see every purchase order, got %d", total)
	}

	if _, err := svc.GetPurchaseOrder(context.Background(), asActor(alice), staffView[0].ID); err != nil {
		t.Errorf("get own purchase order: %v", err)
	}
}
